package params

import (
	"fmt"
	"strings"
)

// Violation describes a single failed constraint on a parameter.
type Violation struct {
	Field    string // dotted parameter path, e.g. "bednets.dn0"
	Expected string // human-readable constraint
	Actual   string // offending value
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: expected %s, got %s", v.Field, v.Expected, v.Actual)
}

// ValidationError lists every violated constraint of a snapshot, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return fmt.Sprintf("invalid parameters (%d violations): %s", len(e.Violations), strings.Join(parts, "; "))
}

// Has reports whether a violation was recorded for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

// violations accumulates constraint failures while a snapshot is checked.
type violations []Violation

func (vs *violations) add(field, expected string, actual any) {
	*vs = append(*vs, Violation{Field: field, Expected: expected, Actual: fmt.Sprint(actual)})
}

func (vs violations) err() error {
	if len(vs) == 0 {
		return nil
	}
	return &ValidationError{Violations: vs}
}
