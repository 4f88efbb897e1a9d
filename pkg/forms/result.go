package forms

import (
	"fmt"
	"sort"
	"strings"
)

// Result collects field-level errors for one validation pass. It is
// recomputed from scratch whenever a field changes and is consumed by the
// step transition guard.
type Result struct {
	// Errors contains validation errors keyed by field name.
	Errors map[string][]string
}

// NewResult creates an empty (valid) result.
func NewResult() *Result {
	return &Result{Errors: make(map[string][]string)}
}

// Check runs validators against value and records the first failure for field.
func (r *Result) Check(field string, value any, validators ...Validator) *Result {
	for _, v := range validators {
		if err := v.Validate(value); err != nil {
			r.Add(field, v.Message())
			return r
		}
	}
	return r
}

// Require is shorthand for Check(field, value, Required()).
func (r *Result) Require(field string, value any) *Result {
	return r.Check(field, value, Required())
}

// Add records an error for field.
func (r *Result) Add(field, message string) *Result {
	r.Errors[field] = append(r.Errors[field], message)
	return r
}

// Merge copies every error of other into r.
func (r *Result) Merge(other *Result) *Result {
	if other == nil {
		return r
	}
	for field, msgs := range other.Errors {
		r.Errors[field] = append(r.Errors[field], msgs...)
	}
	return r
}

// Valid reports whether no error was recorded.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// Has reports whether field has errors.
func (r *Result) Has(field string) bool {
	return len(r.Errors[field]) > 0
}

// First returns the first error for field.
func (r *Result) First(field string) string {
	if errs := r.Errors[field]; len(errs) > 0 {
		return errs[0]
	}
	return ""
}

// Fields returns the failing field names in sorted order.
func (r *Result) Fields() []string {
	fields := make([]string, 0, len(r.Errors))
	for f := range r.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// Error renders every failure as "field message" pairs.
func (r *Result) Error() string {
	var msgs []string
	for _, field := range r.Fields() {
		for _, msg := range r.Errors[field] {
			msgs = append(msgs, fmt.Sprintf("%s %s", field, msg))
		}
	}
	return strings.Join(msgs, ", ")
}
