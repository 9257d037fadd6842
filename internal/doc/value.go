package doc

import (
	"slices"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface representing storage-safe document values.
// Only Null, String, Int, Float, Bool, Time, Array and Map implement it.
type Value interface {
	docValue() // Sealed - only these types implement it
}

// Null represents an explicit null field.
type Null struct{}

func (Null) docValue() {}

// String represents a string value.
type String string

func (String) docValue() {}

// Int represents an integer value. Always int64.
type Int int64

func (Int) docValue() {}

// Float represents a finite floating point value.
type Float float64

func (Float) docValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) docValue() {}

// Time represents a timestamp. Documents hold timestamps in UTC with
// millisecond precision; use NewTime to normalize.
type Time time.Time

func (Time) docValue() {}

// Std returns the timestamp as a time.Time.
func (t Time) Std() time.Time {
	return time.Time(t)
}

// Array represents an ordered sequence of values.
type Array []Value

func (Array) docValue() {}

// Map represents a string-keyed mapping of values.
// Use SortedKeys() for deterministic iteration.
type Map map[string]Value

func (Map) docValue() {}

// NewTime normalizes t to UTC with millisecond precision.
func NewTime(t time.Time) Time {
	return Time(NormalizeTime(t))
}

// NormalizeTime truncates t to the precision documents preserve.
// It also strips the monotonic clock reading.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Strings builds an Array of String values.
func Strings(ss []string) Array {
	arr := make(Array, len(ss))
	for i, s := range ss {
		arr[i] = String(s)
	}
	return arr
}

// OptString returns String(*s), or Null when s is nil.
func OptString(s *string) Value {
	if s == nil {
		return Null{}
	}
	return String(*s)
}

// OptTime returns the normalized timestamp, or Null when t is nil.
func OptTime(t *time.Time) Value {
	if t == nil {
		return Null{}
	}
	return NewTime(*t)
}

// IsNull reports whether v is nil or Null.
func IsNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order, which differs for some runes.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := min(len(a16), len(b16))
	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}
