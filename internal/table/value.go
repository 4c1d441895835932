package table

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind identifies the type every non-null cell of a column shares.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindDate
)

// String returns the lowercase name used in API payloads
func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	default:
		return "string"
	}
}

// MarshalText implements encoding.TextMarshaler
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// IsNumeric reports whether values of this kind can be summed and averaged
func (k Kind) IsNumeric() bool {
	return k == KindInt || k == KindFloat
}

// IsOrdered reports whether values of this kind support min/max
func (k Kind) IsOrdered() bool {
	return k.IsNumeric() || k == KindDate
}

// Value is a single cell. The raw text read from the source is always kept
// so that exports reproduce the uploaded representation.
type Value struct {
	kind Kind
	null bool
	raw  string
	i    int64
	f    float64
	t    time.Time
}

// Null returns an empty cell of the given kind.
func Null(kind Kind, raw string) Value {
	return Value{kind: kind, null: true, raw: raw}
}

// StringValue returns a string cell.
func StringValue(s string) Value {
	return Value{kind: KindString, raw: s}
}

// IntValue returns an integer cell.
func IntValue(i int64) Value {
	return Value{kind: KindInt, raw: strconv.FormatInt(i, 10), i: i}
}

// FloatValue returns a float cell. NaN is stored as null.
func FloatValue(f float64) Value {
	if math.IsNaN(f) {
		return Null(KindFloat, "")
	}
	return Value{kind: KindFloat, raw: strconv.FormatFloat(f, 'f', -1, 64), f: f}
}

// DateValue returns a date cell rendered with layout.
func DateValue(t time.Time, layout string) Value {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return Value{kind: KindDate, raw: t.Format(layout), t: t}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.null }
func (v Value) Raw() string     { return v.raw }
func (v Value) Int() int64      { return v.i }
func (v Value) Time() time.Time { return v.t }

// Float returns the numeric value of an int or float cell.
func (v Value) Float() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Number returns the cell as float64 when it is a non-null numeric value.
func (v Value) Number() (float64, bool) {
	if v.null || !v.kind.IsNumeric() {
		return 0, false
	}
	return v.Float(), true
}

// MarshalJSON renders nulls as null, numbers as JSON numbers and dates and
// strings as their raw text.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.null {
		return []byte("null"), nil
	}
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindFloat:
		if math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.f, 'f', -1, 64)), nil
	default:
		return json.Marshal(v.raw)
	}
}

// Compare orders two non-null values of the same kind. Numeric kinds compare
// by magnitude, dates chronologically and strings lexically.
func Compare(a, b Value) int {
	switch {
	case a.kind.IsNumeric() && b.kind.IsNumeric():
		af, bf := a.Float(), b.Float()
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	case a.kind == KindDate && b.kind == KindDate:
		return a.t.Compare(b.t)
	default:
		return strings.Compare(a.raw, b.raw)
	}
}
