package recordconv

import (
	"strconv"
	"strings"
	"testing"
)

// benchmarkCSV builds a CSV document with the given number of rows.
func benchmarkCSV(rows int) []byte {
	var sb strings.Builder
	sb.WriteString("id,name,email,score\n")
	for i := 0; i < rows; i++ {
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(",user_")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(",user")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString("@example.com,")
		sb.WriteString(strconv.Itoa(i % 100))
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

// benchmarkNDJSON builds an NDJSON document with the given number of lines.
func benchmarkNDJSON(rows int) []byte {
	var sb strings.Builder
	for i := 0; i < rows; i++ {
		sb.WriteString(`{"id":`)
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(`,"name":"user_`)
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(`","active":true}`)
		sb.WriteString("\n")
	}
	return []byte(sb.String())
}

func BenchmarkCSVToNDJSON(b *testing.B) {
	data := benchmarkCSV(1000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(data, FormatCSV, FormatNDJSON); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkNDJSONToCSV(b *testing.B) {
	data := benchmarkNDJSON(1000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(data, FormatNDJSON, FormatCSV); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkJSONToNDJSON(b *testing.B) {
	ndjson := benchmarkNDJSON(1000)
	data, err := Convert(ndjson, FormatNDJSON, FormatJSON)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(data, FormatJSON, FormatNDJSON); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCSVToXML(b *testing.B) {
	data := benchmarkCSV(1000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(data, FormatCSV, FormatXML); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCSVToNDJSONChunked(b *testing.B) {
	data := benchmarkCSV(1000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		conv, err := NewConverter(FormatCSV, FormatNDJSON)
		if err != nil {
			b.Fatal(err)
		}
		for off := 0; off < len(data); off += 4096 {
			end := min(off+4096, len(data))
			if _, err := conv.Push(data[off:end]); err != nil {
				b.Fatal(err)
			}
		}
		if _, err := conv.Finish(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkStructuralScan(b *testing.B) {
	set := newStructuralSet(',', '"', '\r', '\n')
	data := []byte(strings.Repeat("abcdefghijklmnop", 4096) + ",")
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if set.index(data) < 0 {
			b.Fatal("target not found")
		}
	}
}
