package query

import "github.com/roach88/flowdoc/internal/doc"

// Predicate is a filter over documents.
//
// This is a sealed interface: only Equals, In and And implement it, so
// compilers can switch over it exhaustively.
type Predicate interface {
	predicateNode()
}

// Equals matches documents whose field equals Value. A Null value matches
// documents where the field is null or absent.
type Equals struct {
	Field string
	Value doc.Value
}

func (Equals) predicateNode() {}

// In matches documents whose field equals any of Values. An empty list
// matches nothing.
type In struct {
	Field  string
	Values []doc.Value
}

func (In) predicateNode() {}

// And matches documents matching every predicate. An empty And matches
// everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Query selects documents of one collection.
type Query struct {
	Collection string
	Filter     Predicate // nil = every document
	OrderBy    []string  // field paths, ascending
}

// FieldEquals is shorthand for an Equals on a string value.
func FieldEquals(field, value string) Equals {
	return Equals{Field: field, Value: doc.String(value)}
}

// FieldIn is shorthand for an In over string values.
func FieldIn(field string, values ...string) In {
	vs := make([]doc.Value, len(values))
	for i, v := range values {
		vs[i] = doc.String(v)
	}
	return In{Field: field, Values: vs}
}
