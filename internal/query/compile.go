package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/flowdoc/internal/doc"
	"github.com/roach88/flowdoc/internal/errs"
)

// Table is the documents table queried by compiled SQL.
const Table = "documents"

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// Compile converts q to parameterized SQLite SQL selecting (key, doc) rows.
func Compile(q Query) (string, []any, error) {
	const op = "query.compile"

	if q.Collection == "" {
		return "", nil, errs.Validation(op, "collection is required")
	}

	var sb strings.Builder
	params := []any{q.Collection}
	sb.WriteString("SELECT key, doc FROM " + Table + " WHERE collection = ?")

	if q.Filter != nil {
		where, whereParams, err := compilePredicate(q.Filter)
		if err != nil {
			return "", nil, errs.Wrap(errs.KindValidation, op, err, "filter")
		}
		sb.WriteString(" AND (" + where + ")")
		params = append(params, whereParams...)
	}

	sb.WriteString(" ORDER BY ")
	for _, field := range q.OrderBy {
		path, err := jsonPath(field)
		if err != nil {
			return "", nil, errs.Wrap(errs.KindValidation, op, err, "order by")
		}
		sb.WriteString("json_extract(doc, ?) ASC, ")
		params = append(params, path)
	}
	// key is unique within a collection, which makes the order total
	sb.WriteString("key COLLATE BINARY ASC")

	return sb.String(), params, nil
}

func compilePredicate(p Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case Equals:
		return compileEquals(pred)
	case *Equals:
		return compileEquals(*pred)
	case In:
		return compileIn(pred)
	case *In:
		return compileIn(*pred)
	case And:
		return compileAnd(pred)
	case *And:
		return compileAnd(*pred)
	case nil:
		return "1 = 1", nil, nil
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func compileEquals(eq Equals) (string, []any, error) {
	path, err := jsonPath(eq.Field)
	if err != nil {
		return "", nil, err
	}
	if doc.IsNull(eq.Value) {
		return "json_extract(doc, ?) IS NULL", []any{path}, nil
	}
	param, err := valueToParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", eq.Field, err)
	}
	return "json_extract(doc, ?) = ?", []any{path, param}, nil
}

func compileIn(in In) (string, []any, error) {
	path, err := jsonPath(in.Field)
	if err != nil {
		return "", nil, err
	}
	if len(in.Values) == 0 {
		return "0 = 1", nil, nil
	}
	params := []any{path}
	marks := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("%s[%d]: %w", in.Field, i, err)
		}
		params = append(params, param)
		marks[i] = "?"
	}
	return "json_extract(doc, ?) IN (" + strings.Join(marks, ", ") + ")", params, nil
}

func compileAnd(and And) (string, []any, error) {
	if len(and.Predicates) == 0 {
		return "1 = 1", nil, nil
	}
	parts := make([]string, 0, len(and.Predicates))
	var params []any
	for _, pred := range and.Predicates {
		sql, ps, err := compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, ") AND (") + ")", params, nil
}

func jsonPath(field string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid field path %q", field)
	}
	return "$." + field, nil
}

// valueToParam converts a scalar document value to the value json_extract
// yields for it. Booleans come back from SQLite JSON as 0 and 1.
func valueToParam(v doc.Value) (any, error) {
	switch val := v.(type) {
	case doc.String:
		return string(val), nil
	case doc.Int:
		return int64(val), nil
	case doc.Float:
		return float64(val), nil
	case doc.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	default:
		return nil, fmt.Errorf("unsupported comparison value %T", v)
	}
}
