package models

import (
	"sort"
	"strings"
)

// ValidationError reports input that violates an operation's constraints, keyed by field.
type ValidationError struct {
	Fields map[string][]string `json:"errors"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(e.Fields[k], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a problem for field.
func (e *ValidationError) Add(field, problem string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], problem)
}

// OrNil returns nil when no field problems were recorded.
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// NewValidationError builds an error with a single field problem.
func NewValidationError(field, problem string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, problem)
	return v
}
