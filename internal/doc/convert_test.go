package doc

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/flowdoc/internal/errs"
)

type color string

func (c color) ToDocument() (Value, error) { return String("color:" + string(c)), nil }

func TestFromGo(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 10_500_000, time.FixedZone("X", 3600))

	tests := []struct {
		name     string
		input    any
		expected Value
	}{
		{"nil", nil, Null{}},
		{"string", "x", String("x")},
		{"int", 7, Int(7)},
		{"int32", int32(-3), Int(-3)},
		{"uint64", uint64(12), Int(12)},
		{"float", 2.5, Float(2.5)},
		{"bool", true, Bool(true)},
		{"time normalized", ts, NewTime(time.Date(2024, 5, 6, 6, 8, 9, 10_000_000, time.UTC))},
		{"nil time pointer", (*time.Time)(nil), Null{}},
		{"string slice", []string{"a", "b"}, Array{String("a"), String("b")}},
		{"string map", map[string]string{"k": "v"}, Map{"k": String("v")}},
		{"marshaler", color("red"), String("color:red")},
		{"nested", map[string]any{"a": []any{1, "b", map[string]any{"c": nil}}},
			Map{"a": Array{Int(1), String("b"), Map{"c": Null{}}}}},
		{"marshaler nested", map[string]any{"c": color("blue")}, Map{"c": String("color:blue")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromGo(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestFromGoRejects(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"channel", make(chan int)},
		{"func", func() {}},
		{"NaN", math.NaN()},
		{"overflow", uint64(math.MaxUint64)},
		{"nested struct", map[string]any{"a": []any{struct{}{}}}},
		{"nil marshaler pointer", (*color)(nil)},
		{"reserved date key", map[string]any{"meta": map[string]any{"$date": "2024-01-01T00:00:00.000Z"}}},
		{"reserved date key in string map", map[string]string{"$date": "x"}},
		{"nested nil marshaler pointer", map[string]any{"a": []any{(*color)(nil)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromGo(tt.input)
			require.Error(t, err)
			assert.True(t, errs.IsSerialization(err))
		})
	}
}

func TestMapFromGoNil(t *testing.T) {
	m, err := MapFromGo(nil)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestToGo(t *testing.T) {
	ts := NewTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	v := Map{
		"a": Int(1),
		"b": Array{String("x"), Null{}},
		"c": ts,
		"d": Float(0.5),
	}

	got := ToGo(v)
	assert.Equal(t, map[string]any{
		"a": int64(1),
		"b": []any{"x", nil},
		"c": ts.Std(),
		"d": 0.5,
	}, got)

	back, err := FromGo(got)
	require.NoError(t, err)
	assert.Equal(t, Value(v), back)
}
