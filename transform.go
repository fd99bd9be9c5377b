package recordconv

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// TransformMode controls how the field operation list shapes the output
// record.
type TransformMode int

const (
	// ModeAugment keeps every source field and applies the operations on
	// top: renames and coercions rewrite fields in place, computes append
	// (or overwrite, last write wins).
	ModeAugment TransformMode = iota
	// ModeReplace builds the output record from exactly the listed
	// operations, in order.
	ModeReplace
)

// CoerceType selects the target type of a field coercion.
type CoerceType int

const (
	// CoerceNone leaves the value untouched.
	CoerceNone CoerceType = iota
	// CoerceString renders the value as text; composites become JSON.
	CoerceString
	// CoerceF64 converts to a float64.
	CoerceF64
	// CoerceI64 converts to an int64, truncating fractional parts the way
	// "123.0" is expected to become 123.
	CoerceI64
	// CoerceBool accepts true/false, 1/0, yes/no, on/off.
	CoerceBool
	// CoerceTimestampMS parses timestamps into milliseconds since the
	// Unix epoch.
	CoerceTimestampMS
)

// OpKind discriminates field operations.
type OpKind int

const (
	// OpKeep includes a source field, optionally renaming and coercing it.
	OpKeep OpKind = iota
	// OpDrop excludes a source field.
	OpDrop
	// OpCompute derives a new field from the whole input record.
	OpCompute
)

// ComputeFunc derives a value from the input record.
type ComputeFunc func(rec *Record) (Value, error)

// FilterFunc decides whether a record passes. Returning false drops the
// record without emitting it.
type FilterFunc func(rec *Record) (bool, error)

// FieldOp is one step of the transform pipeline.
type FieldOp struct {
	Kind   OpKind
	Source string      // field read by Keep/Drop
	Target string      // new name for Keep (optional), field written by Compute
	Coerce CoerceType  // applied to the kept or computed value
	Trim   bool        // trim whitespace on string values before coercion
	Normalize bool     // normalize string values to Unicode NFC
	Compute ComputeFunc // required for OpCompute
}

// Keep returns a keep operation for a source field.
func Keep(source string) FieldOp {
	return FieldOp{Kind: OpKeep, Source: source}
}

// Rename returns a keep operation that renames source to target.
func Rename(source, target string) FieldOp {
	return FieldOp{Kind: OpKeep, Source: source, Target: target}
}

// Drop returns a drop operation for a source field.
func Drop(source string) FieldOp {
	return FieldOp{Kind: OpDrop, Source: source}
}

// Compute returns a compute operation writing target.
func Compute(target string, fn ComputeFunc) FieldOp {
	return FieldOp{Kind: OpCompute, Target: target, Compute: fn}
}

// WithCoerce returns a copy of the operation with a coercion target.
func (op FieldOp) WithCoerce(t CoerceType) FieldOp {
	op.Coerce = t
	return op
}

// Transform is the per-record stage between parser and emitter: an ordered
// operation list, an optional record filter, and a shaping mode.
type Transform struct {
	Ops    []FieldOp
	Filter FilterFunc
	Mode   TransformMode
	// SkipOnCoerceError drops records whose coercions fail instead of
	// aborting the conversion.
	SkipOnCoerceError bool
}

// validate rejects operation lists that cannot run.
func (t *Transform) validate() error {
	for i, op := range t.Ops {
		switch op.Kind {
		case OpKeep, OpDrop:
			if op.Source == "" {
				return fmt.Errorf("%w: transform op %d has no source field", ErrConfigInvalid, i)
			}
		case OpCompute:
			if op.Target == "" {
				return fmt.Errorf("%w: transform op %d has no target field", ErrConfigInvalid, i)
			}
			if op.Compute == nil {
				return fmt.Errorf("%w: transform op %d has no compute function", ErrConfigInvalid, i)
			}
		default:
			return fmt.Errorf("%w: transform op %d has unknown kind", ErrConfigInvalid, i)
		}
	}
	return nil
}

// apply runs the transform on one record. skip is true when the record is
// dropped (by the filter, or by a coercion failure under
// SkipOnCoerceError).
func (t *Transform) apply(rec *Record, index int64) (out *Record, skip bool, err error) {
	if t.Filter != nil {
		pass, err := t.Filter(rec)
		if err != nil {
			return nil, false, newTransformError(index, "", "filter: "+err.Error())
		}
		if !pass {
			return nil, true, nil
		}
	}
	if t.Mode == ModeReplace {
		out, err = t.applyReplace(rec, index)
	} else {
		out, err = t.applyAugment(rec, index)
	}
	if err != nil {
		if t.SkipOnCoerceError {
			return nil, true, nil
		}
		return nil, false, err
	}
	return out, false, nil
}

func (t *Transform) applyReplace(rec *Record, index int64) (*Record, error) {
	out := NewRecord(len(t.Ops))
	for _, op := range t.Ops {
		switch op.Kind {
		case OpKeep:
			v, _ := rec.Get(op.Source)
			v, err := op.applyValue(v, index)
			if err != nil {
				return nil, err
			}
			name := op.Target
			if name == "" {
				name = op.Source
			}
			out.Set(name, v)
		case OpCompute:
			v, err := op.Compute(rec)
			if err != nil {
				return nil, newTransformError(index, op.Target, err.Error())
			}
			v, err = op.applyValue(v, index)
			if err != nil {
				return nil, err
			}
			out.Set(op.Target, v)
		case OpDrop:
			out.Delete(op.Source)
		}
	}
	return out, nil
}

func (t *Transform) applyAugment(rec *Record, index int64) (*Record, error) {
	for _, op := range t.Ops {
		switch op.Kind {
		case OpKeep:
			v, ok := rec.Get(op.Source)
			if !ok {
				continue
			}
			v, err := op.applyValue(v, index)
			if err != nil {
				return nil, err
			}
			rec.Set(op.Source, v)
			if op.Target != "" && op.Target != op.Source {
				rec.Rename(op.Source, op.Target)
			}
		case OpDrop:
			rec.Delete(op.Source)
		case OpCompute:
			v, err := op.Compute(rec)
			if err != nil {
				return nil, newTransformError(index, op.Target, err.Error())
			}
			v, err = op.applyValue(v, index)
			if err != nil {
				return nil, err
			}
			// Last write wins when a computed field shares a name with an
			// input field.
			rec.Set(op.Target, v)
		}
	}
	return rec, nil
}

// applyValue runs the per-value hygiene flags and coercion of one op.
func (op FieldOp) applyValue(v Value, index int64) (Value, error) {
	if op.Trim || op.Normalize {
		if s, ok := v.Text(); ok && v.Kind() == KindString {
			if op.Trim {
				s = strings.TrimSpace(s)
			}
			if op.Normalize {
				s = norm.NFC.String(s)
			}
			v = String(s)
		}
	}
	if op.Coerce == CoerceNone {
		return v, nil
	}
	field := op.Target
	if field == "" {
		field = op.Source
	}
	out, err := coerceValue(v, op.Coerce)
	if err != nil {
		return Value{}, newTransformError(index, field, err.Error())
	}
	return out, nil
}

func coerceValue(v Value, target CoerceType) (Value, error) {
	switch target {
	case CoerceString:
		if s, ok := v.scalarText(); ok {
			return String(s), nil
		}
		return String(string(appendJSONValue(nil, v))), nil
	case CoerceF64:
		f, err := valueToFloat(v)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	case CoerceI64:
		f, err := valueToFloat(v)
		if err != nil {
			return Value{}, err
		}
		return Int(int64(f)), nil
	case CoerceBool:
		return valueToBool(v)
	case CoerceTimestampMS:
		return valueToTimestampMS(v)
	default:
		return v, nil
	}
}

func valueToFloat(v Value) (float64, error) {
	if f, ok := v.AsFloat(); ok {
		return f, nil
	}
	if b, ok := v.AsBool(); ok {
		if b {
			return 1, nil
		}
		return 0, nil
	}
	if s, ok := v.Text(); ok {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot coerce %q to number", s)
		}
		return f, nil
	}
	return 0, fmt.Errorf("cannot coerce %s to number", v.Kind())
}

func valueToBool(v Value) (Value, error) {
	if b, ok := v.AsBool(); ok {
		return Bool(b), nil
	}
	if i, ok := v.AsInt(); ok {
		return Bool(i != 0), nil
	}
	if s, ok := v.Text(); ok {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "yes", "on":
			return Bool(true), nil
		case "false", "0", "no", "off":
			return Bool(false), nil
		}
		return Value{}, fmt.Errorf("cannot coerce %q to bool", s)
	}
	return Value{}, fmt.Errorf("cannot coerce %s to bool", v.Kind())
}

// timestampLayouts are tried in order for textual timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func valueToTimestampMS(v Value) (Value, error) {
	if i, ok := v.AsInt(); ok {
		return Int(i), nil
	}
	if f, ok := v.AsFloat(); ok {
		return Int(int64(f)), nil
	}
	s, ok := v.Text()
	if !ok {
		return Value{}, fmt.Errorf("cannot coerce %s to timestamp", v.Kind())
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return Int(ts.UnixMilli()), nil
		}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Int(int64(f)), nil
	}
	return Value{}, fmt.Errorf("cannot coerce %q to timestamp", s)
}
