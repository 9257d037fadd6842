package doc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/flowdoc/internal/errs"
)

// Unmarshal decodes JSON into a document value.
//
// Integers decode as Int, numbers with a fraction or exponent as Float, and
// objects of the form {"$date": "..."} as Time. Any other object using the
// "$date" key is a serialization error.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "doc.unmarshal", err, "invalid JSON")
	}
	v, err := fromJSON(raw)
	if err != nil {
		return nil, errs.Wrap(errs.KindSerialization, "doc.unmarshal", err, "invalid document")
	}
	return v, nil
}

// UnmarshalMap decodes a JSON object into a Map.
func UnmarshalMap(data []byte) (Map, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Map)
	if !ok {
		return nil, errs.Serialization("doc.unmarshal", "expected object, got %T", v)
	}
	return m, nil
}

// UnmarshalJSON implements json.Unmarshaler for Map.
func (m *Map) UnmarshalJSON(data []byte) error {
	out, err := UnmarshalMap(data)
	if err != nil {
		return err
	}
	*m = out
	return nil
}

func fromJSON(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		s := string(val)
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, fmt.Errorf("number %s: %w", s, err)
			}
			return Float(f), nil
		}
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("number out of int64 range: %s", s)
		}
		return Int(n), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			d, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = d
		}
		return arr, nil
	case map[string]any:
		if date, ok := val[dateKey]; ok {
			s, isString := date.(string)
			if len(val) != 1 || !isString {
				return nil, fmt.Errorf("%s must be the only key and hold a string", dateKey)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", dateKey, err)
			}
			return NewTime(t), nil
		}
		m := make(Map, len(val))
		for k, elem := range val {
			d, err := fromJSON(elem)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			m[k] = d
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unsupported JSON value %T", v)
	}
}
