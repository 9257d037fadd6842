package doc

import (
	"strings"

	"github.com/roach88/flowdoc/internal/errs"
)

// Update is a partial-update payload: dotted field paths mapped to the values
// they are set to. Intermediate mappings are created as needed.
//
//	Update{"remote.step_attempts": Int(0), "remote.error": Null{}}
type Update map[string]Value

// Paths returns the update paths in canonical order.
func (u Update) Paths() []string {
	return Map(u).SortedKeys()
}

// Merge returns a new Update holding u's paths overlaid with other's.
func (u Update) Merge(other Update) Update {
	out := make(Update, len(u)+len(other))
	for k, v := range u {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Apply returns a deep copy of m with every path in u set. m is not modified.
// Setting a path through a non-mapping value returns a serialization error
// and no partial result.
func Apply(m Map, u Update) (Map, error) {
	out := Clone(m).(Map)
	if out == nil {
		out = Map{}
	}
	for _, path := range u.Paths() {
		if err := setPath(out, path, Clone(u[path])); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func setPath(m Map, path string, v Value) error {
	parts := strings.Split(path, ".")
	cur := m
	for i, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || IsNull(next) {
			child := Map{}
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(Map)
		if !ok {
			return errs.Serialization("doc.apply", "path %q: %q is %T, not a mapping",
				path, strings.Join(parts[:i+1], "."), next)
		}
		cur = child
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

// Lookup returns the value at a dotted path.
func (m Map) Lookup(path string) (Value, bool) {
	var cur Value = m
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(Map)
		if !ok {
			return nil, false
		}
		cur, ok = obj[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Project returns a Map holding only the given dotted paths. Missing paths
// are skipped; nested paths keep their nesting.
func (m Map) Project(paths []string) Map {
	out := Map{}
	for _, path := range paths {
		v, ok := m.Lookup(path)
		if !ok {
			continue
		}
		// paths come from a fixed projection list, setPath cannot hit a scalar
		_ = setPath(out, path, Clone(v))
	}
	return out
}

// Clone returns a deep copy of v.
func Clone(v Value) Value {
	switch val := v.(type) {
	case Array:
		if val == nil {
			return Array(nil)
		}
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Map:
		if val == nil {
			return Map(nil)
		}
		out := make(Map, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return v
	}
}
