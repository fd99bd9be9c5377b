package recordconv

import (
	"bytes"
	"strconv"
	"strings"
)

// DetectedStructure describes what detection concluded about a sample:
// the format plus the parameters a parser needs for it.
type DetectedStructure struct {
	Format Format
	// Delimiter is the inferred CSV field delimiter.
	Delimiter byte
	// HasHeaders reports whether the first CSV row looks like a header.
	HasHeaders bool
	// RecordElement is the inferred XML record element name.
	RecordElement string
	// Fields are the record field names seen in the sample: the CSV
	// header (or synthesized column names), the keys of the first JSON
	// object, or the union of XML record children.
	Fields []string
}

// csvDelimiterCandidates are scored in this fixed order, which also breaks
// exact ties, so identical samples always detect identically.
var csvDelimiterCandidates = []byte{',', '\t', '|', ';'}

// DetectFormat classifies a sample by its first structural byte: '[' is a
// JSON array document, '{' is NDJSON, '<' is XML, and anything else that
// looks like text is delimited. It returns FormatUnknown instead of
// guessing at empty or binary input; it never fails on ambiguous input.
func DetectFormat(sample []byte) Format {
	s := trimSampleStart(sample)
	if len(s) == 0 {
		return FormatUnknown
	}
	switch s[0] {
	case '[':
		if jsonArrayPlausible(s) {
			return FormatJSON
		}
		return FormatUnknown
	case '{':
		return FormatNDJSON
	case '<':
		return FormatXML
	}
	if bytes.IndexByte(s, 0) >= 0 {
		return FormatUnknown
	}
	return FormatCSV
}

// DetectStructure inspects a sample and returns the detected structure, or
// nil when the sample cannot be classified. A non-auto hint skips format
// classification and only infers that format's parameters.
func DetectStructure(sample []byte, hint Format) *DetectedStructure {
	s := trimSampleStart(sample)
	format := hint
	if format == FormatAuto || format == FormatUnknown {
		format = DetectFormat(sample)
	}
	switch format {
	case FormatJSON:
		return &DetectedStructure{Format: FormatJSON, Fields: firstJSONElementFields(s)}
	case FormatNDJSON:
		return &DetectedStructure{Format: FormatNDJSON, Fields: firstNDJSONLineFields(s)}
	case FormatXML:
		return detectXMLStructure(s)
	case FormatCSV:
		return detectCSVStructure(s)
	default:
		return nil
	}
}

// trimSampleStart drops a UTF-8 BOM and leading whitespace.
func trimSampleStart(s []byte) []byte {
	s = bytes.TrimPrefix(s, []byte{0xEF, 0xBB, 0xBF})
	return bytes.TrimLeft(s, " \t\r\n")
}

// jsonArrayPlausible confirms the first array element is an object, a
// primitive, or a nested array, or that the array is empty.
func jsonArrayPlausible(s []byte) bool {
	i := skipJSONSpace(s, 1)
	if i >= len(s) {
		return true // nothing after '[' yet; still plausible
	}
	switch c := s[i]; {
	case c == '{' || c == '[' || c == ']' || c == '"' || c == '-':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == 't' || c == 'f' || c == 'n':
		return true
	default:
		return false
	}
}

// firstJSONElementFields extracts the key list of the first array element
// when it is an object, best-effort: a sample cut mid-element yields nil.
func firstJSONElementFields(s []byte) []string {
	i := skipJSONSpace(s, 1)
	if i >= len(s) || s[i] != '{' {
		return nil
	}
	v, _, err := parseJSONValue(s, i)
	if err != nil {
		return nil
	}
	if obj, ok := v.AsObject(); ok {
		return obj.Names()
	}
	return nil
}

// firstNDJSONLineFields extracts the key list of the first complete line.
func firstNDJSONLineFields(s []byte) []string {
	line := s
	if nl := bytes.IndexByte(s, '\n'); nl >= 0 {
		line = s[:nl]
	}
	line = bytes.TrimSuffix(line, []byte{'\r'})
	v, err := parseJSONDocument(line)
	if err != nil {
		return nil
	}
	if obj, ok := v.AsObject(); ok {
		return obj.Names()
	}
	return nil
}

// detectXMLStructure feeds the sample through the record-scoped parser so
// the record element and field inference match what parsing will do. The
// union of field names across the sample's complete records is reported.
func detectXMLStructure(s []byte) *DetectedStructure {
	p := newXMLParser(defaultXMLConfig())
	buf := newBuffer(0)
	buf.append(s)
	recs, err := p.drain(buf)
	ds := &DetectedStructure{Format: FormatXML, RecordElement: p.recordName}
	seen := make(map[string]bool)
	for _, rec := range recs {
		for _, name := range rec.Names() {
			if !seen[name] {
				seen[name] = true
				ds.Fields = append(ds.Fields, name)
			}
		}
	}
	// A sample cut inside the first record still names the fields
	// assembled so far.
	if err == nil && len(ds.Fields) == 0 && len(p.nodeStack) > 0 {
		for _, f := range p.nodeStack[0].children {
			if !seen[f.Name] {
				seen[f.Name] = true
				ds.Fields = append(ds.Fields, f.Name)
			}
		}
	}
	return ds
}

// detectCSVStructure scores the delimiter candidates over the first few
// complete lines and infers whether the first row is a header.
func detectCSVStructure(s []byte) *DetectedStructure {
	lines := sampleLines(s, 10)
	if len(lines) == 0 {
		return nil
	}

	best := byte(',')
	bestFound := false
	bestTotal := 0
	for _, cand := range csvDelimiterCandidates {
		consistent := true
		count := countCSVColumns(lines[0], cand)
		for _, line := range lines[1:] {
			if countCSVColumns(line, cand) != count {
				consistent = false
				break
			}
		}
		if !consistent || count < 2 {
			continue
		}
		total := bytes.Count(s, []byte{cand})
		if !bestFound || total > bestTotal {
			best = cand
			bestFound = true
			bestTotal = total
		}
	}

	ds := &DetectedStructure{Format: FormatCSV, Delimiter: best}
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = splitCSVLine(line, best)
	}
	ds.HasHeaders = looksLikeHeader(rows)
	if ds.HasHeaders {
		ds.Fields = rows[0]
	} else {
		ds.Fields = synthesizeHeader(len(rows[0]))
	}
	return ds
}

// sampleLines returns up to limit non-empty complete lines. A sample
// without a newline is treated as one line.
func sampleLines(s []byte, limit int) [][]byte {
	var lines [][]byte
	rest := s
	complete := bytes.IndexByte(s, '\n') >= 0
	for len(rest) > 0 && len(lines) < limit {
		nl := bytes.IndexByte(rest, '\n')
		var line []byte
		if nl < 0 {
			// Trailing fragment: only usable when it is all there is.
			if complete {
				break
			}
			line, rest = rest, nil
		} else {
			line, rest = rest[:nl], rest[nl+1:]
		}
		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// countCSVColumns counts delimiter-separated columns, ignoring delimiters
// inside double quotes.
func countCSVColumns(line []byte, delim byte) int {
	n := 1
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '"':
			inQuote = !inQuote
		case delim:
			if !inQuote {
				n++
			}
		}
	}
	return n
}

// splitCSVLine splits one line into cells, honoring double quotes the same
// way the streaming parser does (doubled quotes collapse).
func splitCSVLine(line []byte, delim byte) []string {
	var cells []string
	var cell []byte
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuote && i+1 < len(line) && line[i+1] == '"' {
				cell = append(cell, '"')
				i++
				continue
			}
			inQuote = !inQuote
		case c == delim && !inQuote:
			cells = append(cells, string(cell))
			cell = cell[:0]
		default:
			cell = append(cell, c)
		}
	}
	return append(cells, string(cell))
}

// looksLikeHeader applies the header heuristic: the first row is a header
// when its cells are mostly non-numeric and its values are disjoint from
// the rows below it.
func looksLikeHeader(rows [][]string) bool {
	first := rows[0]
	if len(first) == 0 {
		return false
	}
	nonNumeric := 0
	for _, cell := range first {
		if !isNumericCell(cell) {
			nonNumeric++
		}
	}
	if nonNumeric*2 <= len(first) {
		return false
	}
	if len(rows) == 1 {
		return nonNumeric == len(first)
	}
	headerValues := make(map[string]bool, len(first))
	for _, cell := range first {
		headerValues[strings.TrimSpace(cell)] = true
	}
	for _, row := range rows[1:] {
		for _, cell := range row {
			if headerValues[strings.TrimSpace(cell)] {
				return false
			}
		}
	}
	return true
}

func isNumericCell(cell string) bool {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return false
	}
	_, err := strconv.ParseFloat(cell, 64)
	return err == nil
}
