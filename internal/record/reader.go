package record

import (
	"time"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
)

// fieldReader reads typed fields out of a document. The first failure is
// kept and every later read is a no-op returning zero values.
type fieldReader struct {
	op     string
	prefix string
	m      doc.Map
	err    error
}

func newReader(op string, m doc.Map) *fieldReader {
	return &fieldReader{op: op, m: m}
}

func (r *fieldReader) sub(key string) *fieldReader {
	child := &fieldReader{op: r.op, prefix: r.path(key) + "."}
	if r.err != nil {
		child.err = r.err
		return child
	}
	v, ok := r.m[key]
	if !ok || doc.IsNull(v) {
		child.m = doc.Map{}
		return child
	}
	m, ok := v.(doc.Map)
	if !ok {
		child.err = r.fail(key, "mapping", v)
		return child
	}
	child.m = m
	return child
}

func (r *fieldReader) path(key string) string {
	return r.prefix + key
}

func (r *fieldReader) fail(key, want string, got doc.Value) error {
	if r.err == nil {
		r.err = errs.Validation(r.op, "field %q: want %s, got %T", r.path(key), want, got)
	}
	return r.err
}

func (r *fieldReader) value(key string) (doc.Value, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.m[key]
	if !ok || doc.IsNull(v) {
		return nil, false
	}
	return v, true
}

func (r *fieldReader) require(key string) (doc.Value, bool) {
	if r.err != nil {
		return nil, false
	}
	v, ok := r.value(key)
	if !ok {
		r.err = errs.Validation(r.op, "field %q: missing", r.path(key))
	}
	return v, ok
}

func (r *fieldReader) str(key string) string {
	v, ok := r.require(key)
	if !ok {
		return ""
	}
	s, ok := v.(doc.String)
	if !ok {
		r.fail(key, "string", v)
	}
	return string(s)
}

func (r *fieldReader) optStr(key string) *string {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	s, ok := v.(doc.String)
	if !ok {
		r.fail(key, "string", v)
		return nil
	}
	out := string(s)
	return &out
}

func (r *fieldReader) integer(key string) int64 {
	v, ok := r.require(key)
	if !ok {
		return 0
	}
	n, ok := v.(doc.Int)
	if !ok {
		r.fail(key, "integer", v)
	}
	return int64(n)
}

// optInteger reads an integer that defaults to zero when absent.
func (r *fieldReader) optInteger(key string) int64 {
	if _, ok := r.value(key); !ok {
		return 0
	}
	return r.integer(key)
}

func (r *fieldReader) time(key string) time.Time {
	v, ok := r.require(key)
	if !ok {
		return time.Time{}
	}
	t, ok := v.(doc.Time)
	if !ok {
		r.fail(key, "timestamp", v)
	}
	return t.Std()
}

func (r *fieldReader) optTime(key string) *time.Time {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	t, ok := v.(doc.Time)
	if !ok {
		r.fail(key, "timestamp", v)
		return nil
	}
	out := t.Std()
	return &out
}

// strings reads a list of strings. An absent or null field reads as nil.
func (r *fieldReader) strings(key string) []string {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	arr, ok := v.(doc.Array)
	if !ok {
		r.fail(key, "list", v)
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, elem := range arr {
		s, ok := elem.(doc.String)
		if !ok {
			r.fail(key, "list of strings", elem)
			return nil
		}
		out = append(out, string(s))
	}
	return out
}

// mapping reads a nested document. An absent or null field reads as nil.
func (r *fieldReader) mapping(key string) doc.Map {
	v, ok := r.value(key)
	if !ok {
		return nil
	}
	m, ok := v.(doc.Map)
	if !ok {
		r.fail(key, "mapping", v)
		return nil
	}
	return m
}

// merge adopts the first failure of a reader obtained from sub.
func (r *fieldReader) merge(child *fieldReader) {
	if r.err == nil {
		r.err = child.err
	}
}
