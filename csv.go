package recordconv

import (
	"strconv"
	"strings"
)

// csvConfig carries the delimiter/quoting knobs shared by the CSV parser
// and emitter.
type csvConfig struct {
	delimiter      byte
	quote          byte
	hasHeaders     bool
	trimWhitespace bool
	// header, when set, overrides inference entirely (synthesized names
	// from detection, or caller-provided).
	header []string
}

func defaultCSVConfig() csvConfig {
	return csvConfig{delimiter: ',', quote: '"', hasHeaders: true}
}

// csvState enumerates the tokenizer states. The state plus the decoded
// partial field are the only cross-chunk carry.
type csvState int

const (
	csvFieldStart csvState = iota
	csvInField
	csvInQuoted
	csvQuoteInQuoted
)

// csvParser is a streaming state-machine tokenizer for delimited text.
// It scans the buffer window from a resume offset and only advances the
// buffer cursor when a full record has been produced, so the buffer always
// holds exactly the current partial row.
type csvParser struct {
	cfg       csvConfig
	unquoted  *structuralSet // delimiter, CR, LF
	quoted    *structuralSet // quote, backslash
	header    []string
	headerSet bool

	state       csvState
	scanPos     int
	fields      []string
	field       []byte
	fieldQuoted bool
	rowQuoted   bool
}

func newCSVParser(cfg csvConfig) *csvParser {
	p := &csvParser{
		cfg:      cfg,
		unquoted: newStructuralSet(cfg.delimiter, '\r', '\n'),
		quoted:   newStructuralSet(cfg.quote, '\\'),
	}
	if len(cfg.header) > 0 {
		p.header = cfg.header
		p.headerSet = true
	}
	return p
}

func (p *csvParser) drain(buf *buffer) ([]*Record, error) {
	return p.run(buf, false)
}

func (p *csvParser) eof(buf *buffer) ([]*Record, error) {
	recs, err := p.run(buf, true)
	if err != nil {
		return recs, err
	}
	if p.state == csvInQuoted {
		return recs, newParseError(FormatCSV, buf.consumed()+int64(p.scanPos), "unclosed quoted field at end of input")
	}
	// A missing trailing newline still closes the last row.
	if len(p.fields) > 0 || len(p.field) > 0 || p.rowQuoted || p.state == csvQuoteInQuoted {
		rec := p.endRecord()
		buf.advance(p.scanPos)
		p.scanPos = 0
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// run tokenizes the buffer window. atEOF resolves the two lookahead cases
// (CR without a following byte, backslash without a following byte) that
// otherwise pause the scan at a chunk boundary.
func (p *csvParser) run(buf *buffer, atEOF bool) ([]*Record, error) {
	var recs []*Record
	w := buf.window()
	i := p.scanPos
	for i < len(w) {
		c := w[i]
		switch p.state {
		case csvFieldStart:
			switch c {
			case p.cfg.quote:
				p.state = csvInQuoted
				p.fieldQuoted = true
				i++
			case p.cfg.delimiter:
				p.endField()
				i++
			case '\n':
				i++
				if rec := p.closeRow(buf, &i, &w); rec != nil {
					recs = append(recs, rec)
				}
			case '\r':
				done, rec := p.handleCR(buf, &i, &w, atEOF)
				if done {
					p.scanPos = i
					return recs, nil
				}
				if rec != nil {
					recs = append(recs, rec)
				}
			default:
				p.state = csvInField
			}
		case csvInField:
			j := p.unquoted.index(w[i:])
			if j < 0 {
				p.field = append(p.field, w[i:]...)
				i = len(w)
				break
			}
			p.field = append(p.field, w[i:i+j]...)
			i += j
			switch w[i] {
			case p.cfg.delimiter:
				p.endField()
				p.state = csvFieldStart
				i++
			case '\n':
				i++
				if rec := p.closeRow(buf, &i, &w); rec != nil {
					recs = append(recs, rec)
				}
			case '\r':
				done, rec := p.handleCR(buf, &i, &w, atEOF)
				if done {
					p.scanPos = i
					return recs, nil
				}
				if rec != nil {
					recs = append(recs, rec)
				}
			}
		case csvInQuoted:
			j := p.quoted.index(w[i:])
			if j < 0 {
				p.field = append(p.field, w[i:]...)
				i = len(w)
				break
			}
			p.field = append(p.field, w[i:i+j]...)
			i += j
			if w[i] == '\\' {
				if i+1 >= len(w) {
					if !atEOF {
						p.scanPos = i
						return recs, nil
					}
					p.field = append(p.field, '\\')
					i++
					break
				}
				// Lenient producers escape quotes with a backslash.
				if w[i+1] == p.cfg.quote {
					p.field = append(p.field, p.cfg.quote)
					i += 2
				} else {
					p.field = append(p.field, '\\')
					i++
				}
				break
			}
			p.state = csvQuoteInQuoted
			i++
		case csvQuoteInQuoted:
			switch c {
			case p.cfg.quote:
				p.field = append(p.field, p.cfg.quote)
				p.state = csvInQuoted
				i++
			case p.cfg.delimiter:
				p.endField()
				p.state = csvFieldStart
				i++
			case '\n':
				i++
				if rec := p.closeRow(buf, &i, &w); rec != nil {
					recs = append(recs, rec)
				}
			case '\r':
				done, rec := p.handleCR(buf, &i, &w, atEOF)
				if done {
					p.scanPos = i
					return recs, nil
				}
				if rec != nil {
					recs = append(recs, rec)
				}
			default:
				// Lenient: the quote closed the field, the rest rides
				// along unquoted.
				p.state = csvInField
			}
		}
	}
	p.scanPos = i
	return recs, nil
}

// handleCR deals with a CR at w[*i]. CRLF terminates the record; a lone CR
// is ordinary whitespace inside the field. When the CR is the last byte of
// the window and more input may come, the scan pauses before it (done=true).
func (p *csvParser) handleCR(buf *buffer, i *int, w *[]byte, atEOF bool) (done bool, rec *Record) {
	win := *w
	if *i+1 >= len(win) {
		if !atEOF {
			return true, nil
		}
		p.field = append(p.field, '\r')
		p.state = csvInField
		*i++
		return false, nil
	}
	if win[*i+1] == '\n' {
		*i += 2
		return false, p.closeRow(buf, i, w)
	}
	p.field = append(p.field, '\r')
	p.state = csvInField
	*i++
	return false, nil
}

// closeRow finishes the current record, advances the buffer past it, and
// rebases the scan window. Blank lines produce no record.
func (p *csvParser) closeRow(buf *buffer, i *int, w *[]byte) *Record {
	rec := p.endRecord()
	buf.advance(*i)
	*i = 0
	p.scanPos = 0
	*w = buf.window()
	return rec
}

// endField closes the in-progress field, applying whitespace trimming to
// unquoted fields only.
func (p *csvParser) endField() {
	s := string(p.field)
	if p.cfg.trimWhitespace && !p.fieldQuoted {
		s = strings.TrimSpace(s)
	}
	p.fields = append(p.fields, s)
	p.field = p.field[:0]
	p.rowQuoted = p.rowQuoted || p.fieldQuoted
	p.fieldQuoted = false
	p.state = csvFieldStart
}

// endRecord turns the accumulated fields into a Record under the header,
// consuming the header row itself when configured. Returns nil for rows
// that produce no record (the header, blank lines).
func (p *csvParser) endRecord() *Record {
	p.endField()
	row := p.fields
	p.fields = nil
	rowQuoted := p.rowQuoted
	p.rowQuoted = false

	if len(row) == 1 && row[0] == "" && !rowQuoted {
		return nil // blank line
	}
	if !p.headerSet {
		p.headerSet = true
		if p.cfg.hasHeaders {
			p.header = row
			return nil
		}
		p.header = synthesizeHeader(len(row))
	}
	rec := NewRecord(max(len(p.header), len(row)))
	for k, name := range p.header {
		v := ""
		if k < len(row) {
			v = row[k]
		}
		rec.Append(name, String(v))
	}
	// Rows longer than the header keep their extras under synthesized
	// names rather than dropping them.
	for k := len(p.header); k < len(row); k++ {
		rec.Append(syntheticColumnName(k), String(row[k]))
	}
	return rec
}

func synthesizeHeader(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = syntheticColumnName(i)
	}
	return names
}

func syntheticColumnName(i int) string {
	return "col_" + strconv.Itoa(i)
}

// csvEmitter writes one row per record with a header row in front. The
// header is fixed by the first record (or configuration); missing fields
// become empty cells and fields outside the header are not representable.
type csvEmitter struct {
	cfg         csvConfig
	header      []string
	wroteHeader bool
}

func newCSVEmitter(cfg csvConfig) *csvEmitter {
	return &csvEmitter{cfg: cfg}
}

func (e *csvEmitter) begin() []byte {
	return nil
}

func (e *csvEmitter) writeRecord(rec *Record, index int64) ([]byte, error) {
	var out []byte
	if !e.wroteHeader {
		if len(e.cfg.header) > 0 {
			e.header = e.cfg.header
		} else {
			e.header = rec.Names()
		}
		out = e.appendRow(out, e.header)
		e.wroteHeader = true
	}
	row := make([]string, len(e.header))
	for i, name := range e.header {
		if v, ok := rec.Get(name); ok {
			row[i] = csvCellText(v)
		}
	}
	return e.appendRow(out, row), nil
}

func (e *csvEmitter) end() ([]byte, error) {
	return nil, nil
}

func (e *csvEmitter) appendRow(dst []byte, cells []string) []byte {
	for i, cell := range cells {
		if i > 0 {
			dst = append(dst, e.cfg.delimiter)
		}
		dst = e.appendCell(dst, cell)
	}
	return append(dst, '\n')
}

func (e *csvEmitter) appendCell(dst []byte, cell string) []byte {
	if !e.needsQuoting(cell) {
		return append(dst, cell...)
	}
	dst = append(dst, e.cfg.quote)
	for i := 0; i < len(cell); i++ {
		if cell[i] == e.cfg.quote {
			dst = append(dst, e.cfg.quote, e.cfg.quote)
			continue
		}
		dst = append(dst, cell[i])
	}
	return append(dst, e.cfg.quote)
}

func (e *csvEmitter) needsQuoting(cell string) bool {
	for i := 0; i < len(cell); i++ {
		switch cell[i] {
		case e.cfg.delimiter, e.cfg.quote, '"', '\r', '\n':
			return true
		}
	}
	return false
}

// csvCellText renders a value as cell text; composites become compact JSON
// so they survive a textual round trip.
func csvCellText(v Value) string {
	if s, ok := v.scalarText(); ok {
		return s
	}
	return string(appendJSONValue(nil, v))
}
