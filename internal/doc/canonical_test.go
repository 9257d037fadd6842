package doc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/errs"
)

func TestMarshalBasic(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC)

	tests := []struct {
		name     string
		input    Value
		expected string
	}{
		{"null", Null{}, "null"},
		{"string", String("hello"), `"hello"`},
		{"empty string", String(""), `""`},
		{"int", Int(42), "42"},
		{"negative int", Int(-100), "-100"},
		{"max int64", Int(9223372036854775807), "9223372036854775807"},
		{"float", Float(1.5), "1.5"},
		{"integral float", Float(2), "2.0"},
		{"large float", Float(1e21), "1e+21"},
		{"bool true", Bool(true), "true"},
		{"bool false", Bool(false), "false"},
		{"time", NewTime(ts), `{"$date":"2024-03-01T12:30:00.123Z"}`},
		{"empty array", Array{}, "[]"},
		{"empty map", Map{}, "{}"},
		{"array", Array{Int(1), String("a"), Null{}}, `[1,"a",null]`},
		{"no html escaping", String("<a&b>"), `"<a&b>"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Marshal(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestMarshalSortedKeys(t *testing.T) {
	m := Map{
		"zebra": Int(1),
		"alpha": Map{"b": Int(1), "a": Int(2)},
		"beta":  Int(3),
	}

	out, err := Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":{"a":2,"b":1},"beta":3,"zebra":1}`, string(out))
}

func TestMarshalDeterministic(t *testing.T) {
	m := Map{"b": Array{Int(1), Float(0.25)}, "a": String("x"), "c": Bool(true)}

	first, err := Marshal(m)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Marshal(m)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalNFC(t *testing.T) {
	// "e" + combining acute accent normalizes to a single rune.
	out, err := Marshal(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(out))
}

func TestMarshalLineSeparatorsLiteral(t *testing.T) {
	out, err := Marshal(String("a\u2028b\u2029"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\u2029\"", string(out))

	// a literal backslash followed by "u2028" stays escaped
	out, err = Marshal(String(`a\u2028b`))
	require.NoError(t, err)
	assert.Equal(t, `"a\\u2028b"`, string(out))
}

func TestMarshalRejects(t *testing.T) {
	tests := []struct {
		name  string
		input Value
	}{
		{"nil", nil},
		{"NaN", Float(math.NaN())},
		{"inf", Float(math.Inf(1))},
		{"nested nil", Map{"a": Array{nil}}},
		{"reserved date key", Map{"stored": Map{"$date": String("2024-01-01T00:00:00.000Z")}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Marshal(tt.input)
			require.Error(t, err)
			assert.True(t, errs.IsSerialization(err))
		})
	}
}

func TestUnmarshalRoundTrip(t *testing.T) {
	ts := NewTime(time.Date(2023, 12, 31, 23, 59, 59, 999_000_000, time.UTC))
	original := Map{
		"name":    String("relax"),
		"count":   Int(3),
		"ratio":   Float(0.5),
		"whole":   Float(4),
		"ok":      Bool(false),
		"missing": Null{},
		"when":    ts,
		"tags":    Array{String("a"), String("b")},
		"nested":  Map{"deep": Map{"x": Int(-1)}},
	}

	data, err := Marshal(original)
	require.NoError(t, err)

	decoded, err := UnmarshalMap(data)
	require.NoError(t, err)
	assert.Equal(t, original, decoded)
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := Unmarshal([]byte(`{"a":`))
	assert.True(t, errs.IsSerialization(err))

	_, err = UnmarshalMap([]byte(`[1,2]`))
	assert.True(t, errs.IsSerialization(err))

	_, err = Unmarshal([]byte(`99999999999999999999`))
	assert.True(t, errs.IsSerialization(err))

	_, err = Unmarshal([]byte(`{"$date":"yesterday"}`))
	assert.True(t, errs.IsSerialization(err))
}

func TestUnmarshalDateNeedsSoleStringKey(t *testing.T) {
	for _, in := range []string{
		`{"$date":"2024-01-01T00:00:00.000Z","other":1}`,
		`{"$date":5}`,
	} {
		_, err := Unmarshal([]byte(in))
		assert.True(t, errs.IsSerialization(err), in)
	}
}
