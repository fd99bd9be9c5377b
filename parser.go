package recordconv

// parser is the pull side of the pipeline. One implementation exists per
// input format; all of them share the same contract so the converter never
// needs format-specific handling.
//
// drain consumes as many complete records as the buffer holds, advancing
// the buffer's read cursor past each record it returns. Bytes belonging to
// an incomplete record stay in the buffer; the parser carries whatever
// state it needs to resume mid-record on the next call.
//
// eof is called once when the host signals end of input. It closes a final
// record reachable from the current state (a CSV row without a trailing
// newline, an NDJSON line without LF) or reports malformed input (an
// unclosed quote, an open element, an unterminated array).
type parser interface {
	drain(buf *buffer) ([]*Record, error)
	eof(buf *buffer) ([]*Record, error)
}

// emitter is the push side. begin returns the format prelude, writeRecord
// returns the encoded bytes for one record (self-delimited except for JSON
// array comma framing), and end returns the postlude. Emitters buffer
// nothing beyond the record being written.
type emitter interface {
	begin() []byte
	writeRecord(rec *Record, index int64) ([]byte, error)
	end() ([]byte, error)
}

// newParser constructs the parser for a resolved (non-auto) input format.
func newParser(format Format, cfg *config) parser {
	switch format {
	case FormatCSV:
		return newCSVParser(cfg.csv)
	case FormatNDJSON:
		return newNDJSONParser()
	case FormatJSON:
		return newJSONParser()
	case FormatXML:
		return newXMLParser(cfg.xml)
	default:
		return nil
	}
}

// newEmitter constructs the emitter for an output format.
func newEmitter(format Format, cfg *config) emitter {
	switch format {
	case FormatCSV:
		return newCSVEmitter(cfg.csv)
	case FormatNDJSON:
		return newNDJSONEmitter()
	case FormatJSON:
		return newJSONEmitter()
	case FormatXML:
		return newXMLEmitter(cfg.xml)
	default:
		return nil
	}
}
