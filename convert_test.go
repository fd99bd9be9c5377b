package recordconv

import (
	"bytes"
	"compress/gzip"
	"errors"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

func TestConvertOneShot(t *testing.T) {
	t.Parallel()

	out, err := Convert([]byte("name,age\nAda,36\n"), FormatCSV, FormatNDJSON)
	if err != nil {
		t.Fatal(err)
	}
	if want := "{\"name\":\"Ada\",\"age\":\"36\"}\n"; string(out) != want {
		t.Errorf("Convert = %q, want %q", out, want)
	}
}

func TestConvertPropagatesErrors(t *testing.T) {
	t.Parallel()

	if _, err := Convert([]byte(`[{"a":1}`), FormatJSON, FormatCSV); !errors.Is(err, ErrParse) {
		t.Errorf("error = %v, want ErrParse", err)
	}
	if _, err := Convert(nil, FormatCSV, FormatAuto); !errors.Is(err, ErrConfigInvalid) {
		t.Errorf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestConvertReaderResult(t *testing.T) {
	t.Parallel()

	res, err := ConvertReader(strings.NewReader("a;b\n1;2\n"), FormatAuto, FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	if want := `[{"a":"1","b":"2"}]`; string(res.Output) != want {
		t.Errorf("Output = %q, want %q", res.Output, want)
	}
	if res.Format != FormatJSON {
		t.Errorf("Format = %s, want json", res.Format)
	}
	if res.Detected == nil || res.Detected.Format != FormatCSV || res.Detected.Delimiter != ';' {
		t.Errorf("Detected = %+v, want csv with ';'", res.Detected)
	}
	if res.Stats.BytesIn != 8 {
		t.Errorf("Stats.BytesIn = %d, want 8", res.Stats.BytesIn)
	}
}

func TestConvertKeepsPartialOutputOnError(t *testing.T) {
	t.Parallel()

	// Two good records, then a malformed line: the output emitted before
	// the failure comes back alongside the error.
	input := "{\"a\":1}\n{\"a\":2}\n{bad}\n"
	res, err := ConvertReader(strings.NewReader(input), FormatNDJSON, FormatJSON)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("error = %v, want ErrParse", err)
	}
	if res == nil {
		t.Fatal("Result is nil on mid-stream failure")
	}
	if want := `[{"a":1},{"a":2}`; string(res.Output) != want {
		t.Errorf("partial Output = %q, want %q", res.Output, want)
	}
	if res.Stats.RecordsProcessed != 2 {
		t.Errorf("RecordsProcessed = %d, want 2", res.Stats.RecordsProcessed)
	}

	out, err := Convert([]byte(input), FormatNDJSON, FormatJSON)
	if !errors.Is(err, ErrParse) {
		t.Fatalf("Convert error = %v, want ErrParse", err)
	}
	if want := `[{"a":1},{"a":2}`; string(out) != want {
		t.Errorf("Convert partial output = %q, want %q", out, want)
	}
}

func TestConvertCompressedInput(t *testing.T) {
	t.Parallel()

	plain := []byte("name,age\nAda,36\nLinus,54\n")
	want, err := Convert(plain, FormatCSV, FormatNDJSON)
	if err != nil {
		t.Fatal(err)
	}

	compressors := []struct {
		name     string
		compress func([]byte) ([]byte, error)
	}{
		{
			name: "gzip",
			compress: func(data []byte) ([]byte, error) {
				var buf bytes.Buffer
				w := gzip.NewWriter(&buf)
				if _, err := w.Write(data); err != nil {
					return nil, err
				}
				if err := w.Close(); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			},
		},
		{
			name: "zstd",
			compress: func(data []byte) ([]byte, error) {
				var buf bytes.Buffer
				w, err := zstd.NewWriter(&buf)
				if err != nil {
					return nil, err
				}
				if _, err := w.Write(data); err != nil {
					return nil, err
				}
				if err := w.Close(); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			},
		},
		{
			name: "xz",
			compress: func(data []byte) ([]byte, error) {
				var buf bytes.Buffer
				w, err := xz.NewWriter(&buf)
				if err != nil {
					return nil, err
				}
				if _, err := w.Write(data); err != nil {
					return nil, err
				}
				if err := w.Close(); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			},
		},
	}

	for _, tt := range compressors {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			compressed, err := tt.compress(plain)
			if err != nil {
				t.Fatal(err)
			}
			got, err := Convert(compressed, FormatCSV, FormatNDJSON)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("compressed conversion = %q, want %q", got, want)
			}
		})
	}
}

func TestDetectCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix []byte
		want   compressionType
	}{
		{"gzip", []byte{0x1F, 0x8B, 0x08, 0, 0, 0}, compressionGZ},
		{"bzip2", []byte("BZh91AY"), compressionBZ2},
		{"xz", []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}, compressionXZ},
		{"zstd", []byte{0x28, 0xB5, 0x2F, 0xFD, 0, 0}, compressionZSTD},
		{"plain text", []byte("a,b\n1,"), compressionNone},
		{"short prefix", []byte{0x1F}, compressionNone},
		{"empty", nil, compressionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := detectCompression(tt.prefix); got != tt.want {
				t.Errorf("detectCompression = %v, want %v", got, tt.want)
			}
		})
	}
}
