package recordconv

import "strconv"

// Kind identifies the dynamic type carried by a Value.
type Kind uint8

const (
	// KindNull represents an absent value (JSON null). Empty XML elements
	// parse as empty strings, not null.
	KindNull Kind = iota
	// KindBool represents a boolean.
	KindBool
	// KindInt represents an integer that fits in a signed 64-bit range.
	KindInt
	// KindFloat represents a double-precision floating-point number.
	KindFloat
	// KindString represents a UTF-8 string.
	KindString
	// KindNumber represents a numeric literal kept in its textual form
	// because converting through float64 would lose precision.
	KindNumber
	// KindArray represents an ordered list of values.
	KindArray
	// KindObject represents a nested record.
	KindObject
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "invalid"
	}
}

// Value is a tagged variant holding one field value. Parsers produce Values,
// the transform stage may rewrite them, and emitters encode them. The zero
// Value is null.
//
// Numeric literals whose textual representation cannot round-trip through
// float64 (more than 15 significant digits) are stored as KindNumber and
// re-emitted verbatim.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	a    []Value
	o    *Record
}

// Null returns the null Value.
func Null() Value {
	return Value{}
}

// Bool returns a boolean Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Int returns an integer Value.
func Int(i int64) Value {
	return Value{kind: KindInt, i: i}
}

// Float returns a floating-point Value.
func Float(f float64) Value {
	return Value{kind: KindFloat, f: f}
}

// String returns a string Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Number returns a Value carrying a numeric literal verbatim. The literal
// is emitted exactly as given; callers must pass valid JSON number syntax.
func Number(literal string) Value {
	return Value{kind: KindNumber, s: literal}
}

// Array returns an array Value.
func Array(vs ...Value) Value {
	return Value{kind: KindArray, a: vs}
}

// Object returns a Value wrapping a nested record.
func Object(r *Record) Value {
	return Value{kind: KindObject, o: r}
}

// Kind returns the dynamic type of the value.
func (v Value) Kind() Kind {
	return v.kind
}

// IsNull reports whether the value is null.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// AsBool returns the boolean payload. ok is false for non-bool values.
func (v Value) AsBool() (b bool, ok bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt returns the value as an int64. Ints convert directly; Numbers are
// parsed when they carry an integral literal. ok is false otherwise.
func (v Value) AsInt() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindNumber:
		if i, err := strconv.ParseInt(v.s, 10, 64); err == nil {
			return i, true
		}
	}
	return 0, false
}

// AsFloat returns the value as a float64. Ints, Floats, and Numbers convert;
// ok is false otherwise.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	case KindNumber:
		if f, err := strconv.ParseFloat(v.s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// Text returns the raw string payload of a String value or the literal text
// of a Number value. ok is false for every other kind.
func (v Value) Text() (string, bool) {
	if v.kind == KindString || v.kind == KindNumber {
		return v.s, true
	}
	return "", false
}

// AsArray returns the element slice of an array Value. The slice is shared,
// not copied.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.a, true
}

// AsObject returns the nested record of an object Value.
func (v Value) AsObject() (*Record, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	return v.o, true
}

// scalarText renders a scalar value as plain text the way the CSV and XML
// emitters write cells: null becomes the empty string, numbers keep their
// shortest round-trip form. It returns ok=false for arrays and objects.
func (v Value) scalarText() (string, bool) {
	switch v.kind {
	case KindNull:
		return "", true
	case KindBool:
		if v.b {
			return "true", true
		}
		return "false", true
	case KindInt:
		return strconv.FormatInt(v.i, 10), true
	case KindFloat:
		return formatFloat(v.f), true
	case KindString, KindNumber:
		return v.s, true
	default:
		return "", false
	}
}

// formatFloat renders a float64 in its shortest form that parses back to
// the same value.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal reports deep equality. It makes Value usable with go-cmp.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == w.b
	case KindInt:
		return v.i == w.i
	case KindFloat:
		return v.f == w.f
	case KindString, KindNumber:
		return v.s == w.s
	case KindArray:
		if len(v.a) != len(w.a) {
			return false
		}
		for i := range v.a {
			if !v.a[i].Equal(w.a[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.o.Equal(w.o)
	default:
		return false
	}
}
