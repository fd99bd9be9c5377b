package recordconv

// Field is one named value inside a Record.
type Field struct {
	Name  string
	Value Value
}

// Record is an ordered mapping from field name to value: one CSV row, one
// NDJSON line, one JSON array element, or one XML record element. Field
// order is preserved from the parser through to the emitter.
//
// Records are short-lived: the parser produces one, the transform stage may
// rewrite it, and the emitter consumes it before the next record is parsed.
type Record struct {
	fields []Field
	// bare marks a record that wraps a single non-object value (an NDJSON
	// line or JSON array element that was a scalar or array). JSON-shaped
	// emitters unwrap it; tabular emitters keep the synthetic "value" field.
	bare bool
}

// bareValueField is the field name under which non-object records are
// promoted to mappings for tabular output.
const bareValueField = "value"

// NewRecord creates an empty record with capacity for n fields.
func NewRecord(n int) *Record {
	return &Record{fields: make([]Field, 0, n)}
}

// newBareRecord wraps a single non-object value.
func newBareRecord(v Value) *Record {
	return &Record{fields: []Field{{Name: bareValueField, Value: v}}, bare: true}
}

// Len returns the number of fields.
func (r *Record) Len() int {
	return len(r.fields)
}

// Fields returns the underlying field slice in order. The slice is shared
// with the record; callers must not grow it.
func (r *Record) Fields() []Field {
	return r.fields
}

// Get returns the value of the first field with the given name.
func (r *Record) Get(name string) (Value, bool) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			return r.fields[i].Value, true
		}
	}
	return Value{}, false
}

// At returns the i-th field. It panics if i is out of range.
func (r *Record) At(i int) Field {
	return r.fields[i]
}

// Set replaces the value of the existing field with the given name,
// preserving its position, or appends a new field. Last write wins.
func (r *Record) Set(name string, v Value) {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Name: name, Value: v})
	r.bare = false
}

// Append adds a field without checking for an existing one with the same
// name. Parsers use it to preserve input order cheaply.
func (r *Record) Append(name string, v Value) {
	r.fields = append(r.fields, Field{Name: name, Value: v})
}

// Delete removes the first field with the given name and reports whether
// a field was removed.
func (r *Record) Delete(name string) bool {
	for i := range r.fields {
		if r.fields[i].Name == name {
			r.fields = append(r.fields[:i], r.fields[i+1:]...)
			r.bare = false
			return true
		}
	}
	return false
}

// Rename changes the name of the first field called from, keeping its
// position and value.
func (r *Record) Rename(from, to string) bool {
	for i := range r.fields {
		if r.fields[i].Name == from {
			r.fields[i].Name = to
			r.bare = false
			return true
		}
	}
	return false
}

// Names returns the field names in order.
func (r *Record) Names() []string {
	names := make([]string, len(r.fields))
	for i := range r.fields {
		names[i] = r.fields[i].Name
	}
	return names
}

// Equal reports deep equality including field order. It makes *Record
// usable with go-cmp.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if len(r.fields) != len(o.fields) {
		return false
	}
	for i := range r.fields {
		if r.fields[i].Name != o.fields[i].Name || !r.fields[i].Value.Equal(o.fields[i].Value) {
			return false
		}
	}
	return true
}
