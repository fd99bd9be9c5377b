package recordconv

import "strings"

// Format identifies one of the record-oriented textual formats the engine
// reads and writes.
type Format int

const (
	// FormatUnknown is the zero value, returned by detection when the
	// sample cannot be classified.
	FormatUnknown Format = iota
	// FormatCSV represents delimited text (comma, tab, pipe, semicolon).
	FormatCSV
	// FormatNDJSON represents newline-delimited JSON, one value per line.
	FormatNDJSON
	// FormatJSON represents a document whose root is an array of records.
	FormatJSON
	// FormatXML represents a document with repeated record elements under
	// a single root element.
	FormatXML
	// FormatAuto is accepted only as an input format; the first pushed
	// bytes are sampled to detect the actual format.
	FormatAuto
)

// String returns the string representation of the Format.
func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatNDJSON:
		return "ndjson"
	case FormatJSON:
		return "json"
	case FormatXML:
		return "xml"
	case FormatAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseFormat converts a format name to a Format. It accepts the names
// returned by String plus common aliases ("jsonl", "tsv").
//
// Example:
//
//	f, ok := recordconv.ParseFormat("ndjson") // FormatNDJSON, true
func ParseFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "tsv":
		return FormatCSV, true
	case "ndjson", "jsonl":
		return FormatNDJSON, true
	case "json":
		return FormatJSON, true
	case "xml":
		return FormatXML, true
	case "auto":
		return FormatAuto, true
	default:
		return FormatUnknown, false
	}
}

// validInput reports whether f can be used as an input format.
func (f Format) validInput() bool {
	switch f {
	case FormatCSV, FormatNDJSON, FormatJSON, FormatXML, FormatAuto:
		return true
	default:
		return false
	}
}

// validOutput reports whether f can be used as an output format.
func (f Format) validOutput() bool {
	switch f {
	case FormatCSV, FormatNDJSON, FormatJSON, FormatXML:
		return true
	default:
		return false
	}
}
