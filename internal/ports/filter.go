package ports

import "strings"

// Op enumerates the comparison operators a store adapter must interpret.
type Op string

const (
	OpEq     Op = "eq"
	OpNeq    Op = "neq"
	OpIn     Op = "in"
	OpBefore Op = "before"
	OpAfter  Op = "after"
)

// Criteria is a serializable filter clause (field, operator, value list).
// Filters cross the store boundary as plain values, never as executable
// predicates, so the store adapter translates them into its native query
// language and the application stays testable without a real database.
type Criteria struct {
	Field  string
	Op     Op
	Values []string
}

// ListOptions carries ordering and pagination for list queries.
type ListOptions struct {
	OrderBy    string
	Descending bool
	Page       int
	PerPage    int
}

// Normalize clamps pagination to usable bounds.
func (o ListOptions) Normalize() ListOptions {
	if o.Page < 1 {
		o.Page = 1
	}
	if o.PerPage < 1 {
		o.PerPage = 20
	}
	if o.PerPage > 200 {
		o.PerPage = 200
	}
	return o
}

// Offset is the row offset implied by the normalized page settings.
func (o ListOptions) Offset() int {
	n := o.Normalize()
	return (n.Page - 1) * n.PerPage
}

// Eq builds a single-value equality clause.
func Eq(field, value string) Criteria {
	return Criteria{Field: field, Op: OpEq, Values: []string{value}}
}

// In builds a multi-value membership clause.
func In(field string, values ...string) Criteria {
	return Criteria{Field: field, Op: OpIn, Values: values}
}

// CanonicalString renders the clause deterministically for cache signatures.
func (c Criteria) CanonicalString() string {
	return c.Field + ":" + string(c.Op) + ":" + strings.Join(c.Values, ",")
}
