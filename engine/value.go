package engine

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Kind identifies which scalar a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindInteger
	KindFloat
	KindText
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindBlob:
		return "blob"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a single result cell: exactly one of null, integer, floating
// point, text or binary.
type Value struct {
	kind Kind
	i    int64
	f    float64
	s    string
	b    []byte
}

// Null returns the NULL value.
func Null() Value { return Value{} }

// Integer returns an integer value.
func Integer(v int64) Value { return Value{kind: KindInteger, i: v} }

// Float returns a floating point value.
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }

// Text returns a text value.
func Text(v string) Value { return Value{kind: KindText, s: v} }

// Blob returns a binary value. The slice is not copied.
func Blob(v []byte) Value {
	if v == nil {
		v = []byte{}
	}
	return Value{kind: KindBlob, b: v}
}

// sqliteTimeLayout is the layout the driver writes time.Time values with.
const sqliteTimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// valueOf converts a value produced by database/sql scanning into a Value.
// The driver reports DATE/DATETIME/TIMESTAMP columns as time.Time and BOOLEAN
// columns as bool; they are folded back into text and integer.
func valueOf(v any) Value {
	switch actual := v.(type) {
	case nil:
		return Null()
	case int64:
		return Integer(actual)
	case int:
		return Integer(int64(actual))
	case int32:
		return Integer(int64(actual))
	case float64:
		return Float(actual)
	case float32:
		return Float(float64(actual))
	case string:
		return Text(actual)
	case []byte:
		return Blob(append([]byte{}, actual...))
	case bool:
		if actual {
			return Integer(1)
		}
		return Integer(0)
	case time.Time:
		return Text(actual.Format(sqliteTimeLayout))
	default:
		return Text(fmt.Sprint(actual))
	}
}

// Kind reports the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Int returns the integer and true when the value is an integer.
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInteger }

// Float returns the float and true when the value is a floating point number.
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }

// Text returns the string and true when the value is text.
func (v Value) Text() (string, bool) { return v.s, v.kind == KindText }

// Blob returns the bytes and true when the value is binary.
func (v Value) Blob() ([]byte, bool) { return v.b, v.kind == KindBlob }

// Interface returns the value as nil, int64, float64, string or []byte.
func (v Value) Interface() any {
	switch v.kind {
	case KindInteger:
		return v.i
	case KindFloat:
		return v.f
	case KindText:
		return v.s
	case KindBlob:
		return v.b
	default:
		return nil
	}
}

// String renders the value for display. NULL renders as "NULL" and blobs as
// an X'..' hex literal.
func (v Value) String() string {
	switch v.kind {
	case KindInteger:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindText:
		return v.s
	case KindBlob:
		return fmt.Sprintf("X'%X'", v.b)
	default:
		return "NULL"
	}
}

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInteger:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindText:
		return v.s == o.s
	case KindBlob:
		return string(v.b) == string(o.b)
	default:
		return true
	}
}

// MarshalJSON encodes blobs as base64 strings, infinities and NaN as the
// strings "Inf", "-Inf" and "NaN", and everything else natively.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBlob:
		return json.Marshal(base64.StdEncoding.EncodeToString(v.b))
	case KindFloat:
		switch {
		case math.IsInf(v.f, 1):
			return json.Marshal("Inf")
		case math.IsInf(v.f, -1):
			return json.Marshal("-Inf")
		case math.IsNaN(v.f):
			return json.Marshal("NaN")
		}
		return json.Marshal(v.f)
	default:
		return json.Marshal(v.Interface())
	}
}

// MarshalYAML mirrors MarshalJSON for YAML encoders.
func (v Value) MarshalYAML() (any, error) {
	if v.kind == KindBlob {
		return base64.StdEncoding.EncodeToString(v.b), nil
	}
	return v.Interface(), nil
}
