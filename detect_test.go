package recordconv

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDetectFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample string
		want   Format
	}{
		{"json array", `[{"a":1}]`, FormatJSON},
		{"json array of primitives", `[1,2,3]`, FormatJSON},
		{"empty json array", `[]`, FormatJSON},
		{"ndjson", "{\"a\":1}\n{\"a\":2}\n", FormatNDJSON},
		{"single object", `{"a":1}`, FormatNDJSON},
		{"xml", "<rs><r/></rs>", FormatXML},
		{"xml with declaration", "<?xml version=\"1.0\"?><rs/>", FormatXML},
		{"csv", "a,b\n1,2\n", FormatCSV},
		{"plain text is csv", "hello world\n", FormatCSV},
		{"leading whitespace skipped", "   \n\t[1]", FormatJSON},
		{"bom skipped", "\xEF\xBB\xBFa,b\n", FormatCSV},
		{"empty", "", FormatUnknown},
		{"whitespace only", "  \n ", FormatUnknown},
		{"binary", "ab\x00cd", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectFormat([]byte(tt.sample)); got != tt.want {
				t.Errorf("DetectFormat(%q) = %s, want %s", tt.sample, got, tt.want)
			}
		})
	}
}

func TestDetectStructureCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		sample     string
		wantDelim  byte
		wantHeader bool
		wantFields []string
	}{
		{
			name:       "comma with header",
			sample:     "name,age\nAda,36\nLinus,54\n",
			wantDelim:  ',',
			wantHeader: true,
			wantFields: []string{"name", "age"},
		},
		{
			name:       "tab delimited",
			sample:     "name\tage\nAda\t36\n",
			wantDelim:  '\t',
			wantHeader: true,
			wantFields: []string{"name", "age"},
		},
		{
			name:       "pipe delimited",
			sample:     "a|b|c\n1|2|3\n",
			wantDelim:  '|',
			wantHeader: true,
			wantFields: []string{"a", "b", "c"},
		},
		{
			name:       "semicolon delimited",
			sample:     "a;b\nx;y\n",
			wantDelim:  ';',
			wantHeader: true,
			wantFields: []string{"a", "b"},
		},
		{
			name:       "numeric first row means no header",
			sample:     "1,2\n3,4\n",
			wantDelim:  ',',
			wantHeader: false,
			wantFields: []string{"col_0", "col_1"},
		},
		{
			name:       "repeated values mean no header",
			sample:     "x,y\nx,z\n",
			wantDelim:  ',',
			wantHeader: false,
			wantFields: []string{"col_0", "col_1"},
		},
		{
			name:       "quoted delimiter does not split",
			sample:     "a,b\n\"1,5\",2\n",
			wantDelim:  ',',
			wantHeader: true,
			wantFields: []string{"a", "b"},
		},
		{
			name:       "single non-numeric column reads as header",
			sample:     "word\nanother\n",
			wantDelim:  ',',
			wantHeader: true,
			wantFields: []string{"word"},
		},
		{
			name:       "single numeric column",
			sample:     "1\n2\n3\n",
			wantDelim:  ',',
			wantHeader: false,
			wantFields: []string{"col_0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ds := DetectStructure([]byte(tt.sample), FormatAuto)
			if ds == nil {
				t.Fatal("DetectStructure returned nil")
			}
			if ds.Format != FormatCSV {
				t.Fatalf("Format = %s, want csv", ds.Format)
			}
			if ds.Delimiter != tt.wantDelim {
				t.Errorf("Delimiter = %q, want %q", ds.Delimiter, tt.wantDelim)
			}
			if ds.HasHeaders != tt.wantHeader {
				t.Errorf("HasHeaders = %v, want %v", ds.HasHeaders, tt.wantHeader)
			}
			if diff := cmp.Diff(tt.wantFields, ds.Fields); diff != "" {
				t.Errorf("Fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectStructureXML(t *testing.T) {
	t.Parallel()

	sample := "<people><person><name>Ada</name><age>36</age></person><person><name>Linus</name><email>l@x</email></person></people>"
	ds := DetectStructure([]byte(sample), FormatAuto)
	if ds == nil || ds.Format != FormatXML {
		t.Fatalf("DetectStructure = %+v, want xml", ds)
	}
	if ds.RecordElement != "person" {
		t.Errorf("RecordElement = %q, want person", ds.RecordElement)
	}
	want := []string{"name", "age", "email"}
	if diff := cmp.Diff(want, ds.Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectStructureXMLPartialRecord(t *testing.T) {
	t.Parallel()

	// Sample cut inside the first record still names the record element.
	sample := "<people><person><name>Ada</name><ag"
	ds := DetectStructure([]byte(sample), FormatAuto)
	if ds == nil || ds.Format != FormatXML {
		t.Fatalf("DetectStructure = %+v, want xml", ds)
	}
	if ds.RecordElement != "person" {
		t.Errorf("RecordElement = %q, want person", ds.RecordElement)
	}
	if diff := cmp.Diff([]string{"name"}, ds.Fields); diff != "" {
		t.Errorf("Fields mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectStructureJSONAndNDJSON(t *testing.T) {
	t.Parallel()

	t.Run("json object element keys", func(t *testing.T) {
		t.Parallel()
		ds := DetectStructure([]byte(`[{"a":1,"b":2},{"c":3}]`), FormatAuto)
		if ds == nil || ds.Format != FormatJSON {
			t.Fatalf("DetectStructure = %+v, want json", ds)
		}
		if diff := cmp.Diff([]string{"a", "b"}, ds.Fields); diff != "" {
			t.Errorf("Fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("ndjson first line keys", func(t *testing.T) {
		t.Parallel()
		ds := DetectStructure([]byte("{\"x\":1,\"y\":2}\n{\"z\":3}\n"), FormatAuto)
		if ds == nil || ds.Format != FormatNDJSON {
			t.Fatalf("DetectStructure = %+v, want ndjson", ds)
		}
		if diff := cmp.Diff([]string{"x", "y"}, ds.Fields); diff != "" {
			t.Errorf("Fields mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("truncated sample yields no fields", func(t *testing.T) {
		t.Parallel()
		ds := DetectStructure([]byte(`[{"a":`), FormatAuto)
		if ds == nil || ds.Format != FormatJSON {
			t.Fatalf("DetectStructure = %+v, want json", ds)
		}
		if ds.Fields != nil {
			t.Errorf("Fields = %v, want nil", ds.Fields)
		}
	})
}

func TestDetectDeterminism(t *testing.T) {
	t.Parallel()

	samples := []string{
		"a,b\n1,2\n",
		"a;b\tc\n1;2\t3\n",
		"{\"a\":1}\n",
		"<r><x><y>1</y></x></r>",
	}
	for _, sample := range samples {
		first := DetectStructure([]byte(sample), FormatAuto)
		for i := 0; i < 3; i++ {
			again := DetectStructure([]byte(sample), FormatAuto)
			if diff := cmp.Diff(first, again); diff != "" {
				t.Errorf("sample %q: detection not deterministic (-first +again):\n%s", sample, diff)
			}
		}
	}
}

func TestDetectStructureHint(t *testing.T) {
	t.Parallel()

	// A CSV hint skips classification even for JSON-looking input.
	ds := DetectStructure([]byte("[1,2]\n[3,4]\n"), FormatCSV)
	if ds == nil || ds.Format != FormatCSV || ds.Delimiter != ',' {
		t.Fatalf("DetectStructure with hint = %+v", ds)
	}
}
