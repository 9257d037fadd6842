package doc

import (
	"fmt"
	"math"
	"time"

	"github.com/roach88/flowdoc/internal/errs"
)

// Marshaler is implemented by domain types that own their storage
// representation: enumerations emitting their value, resource specifications
// expanding into a mapping, and so on. FromGo consults it before any other
// conversion, at any nesting depth.
type Marshaler interface {
	ToDocument() (Value, error)
}

// FromGo converts a Go value into a document value.
//
// Supported inputs are the document types themselves, Marshaler
// implementations, nil, strings, booleans, all integer kinds that fit in
// int64, finite floats, time.Time (and pointers to it), and slices or
// string-keyed maps of those. Anything else returns a serialization error,
// as does a map using the reserved "$date" key.
func FromGo(v any) (Value, error) {
	d, err := fromGo(v)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "doc.from_go", err, "no storage-safe representation")
	}
	return d, nil
}

// MapFromGo converts a string-keyed Go map into a Map.
func MapFromGo(m map[string]any) (Map, error) {
	if m == nil {
		return nil, nil
	}
	d, err := FromGo(m)
	if err != nil {
		return nil, err
	}
	return d.(Map), nil
}

func fromGo(v any) (Value, error) {
	if m, ok := v.(Marshaler); ok {
		d, err := marshal(m)
		if err != nil {
			return nil, err
		}
		return fromGo(d)
	}

	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Null, String, Int, Bool, Time:
		return val.(Value), nil
	case Float:
		return checkFloat(float64(val))
	case Array:
		return fromGoSlice(len(val), func(i int) any { return val[i] })
	case Map:
		return fromGoMap(val)
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint:
		if uint64(val) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", val)
		}
		return Int(val), nil
	case float32:
		return checkFloat(float64(val))
	case float64:
		return checkFloat(val)
	case time.Time:
		return NewTime(val), nil
	case *time.Time:
		if val == nil {
			return Null{}, nil
		}
		return NewTime(*val), nil
	case *string:
		if val == nil {
			return Null{}, nil
		}
		return String(*val), nil
	case []any:
		return fromGoSlice(len(val), func(i int) any { return val[i] })
	case []string:
		return Strings(val), nil
	case []int:
		return fromGoSlice(len(val), func(i int) any { return val[i] })
	case []int64:
		return fromGoSlice(len(val), func(i int) any { return val[i] })
	case []float64:
		return fromGoSlice(len(val), func(i int) any { return val[i] })
	case map[string]any:
		return fromGoMap(val)
	case map[string]string:
		if err := checkReservedKey(val); err != nil {
			return nil, err
		}
		m := make(Map, len(val))
		for k, s := range val {
			m[k] = String(s)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// marshal calls m.ToDocument. A nil pointer to a type with a value-receiver
// ToDocument panics inside the call; that panic becomes an error.
func marshal(m Marshaler) (d Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("%T: %v", m, r)
		}
	}()
	return m.ToDocument()
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v", f)
	}
	return Float(f), nil
}

func fromGoSlice(n int, at func(int) any) (Value, error) {
	arr := make(Array, n)
	for i := 0; i < n; i++ {
		d, err := fromGo(at(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr[i] = d
	}
	return arr, nil
}

func fromGoMap[V any](src map[string]V) (Value, error) {
	if err := checkReservedKey(src); err != nil {
		return nil, err
	}
	m := make(Map, len(src))
	for k, elem := range src {
		d, err := fromGo(elem)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		m[k] = d
	}
	return m, nil
}

// ToGo converts a document value into plain Go values: nil, string, int64,
// float64, bool, time.Time, []any and map[string]any.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case String:
		return string(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case Bool:
		return bool(val)
	case Time:
		return val.Std()
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToGo(elem)
		}
		return out
	case Map:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToGo(elem)
		}
		return out
	default:
		return nil
	}
}
