package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden indicates the actor may not act on the entity.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports user-correctable input problems keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

// Add records a field problem, keeping the first message per field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// TransitionError is returned when a status change is rejected. Current carries
// the state the order actually holds.
type TransitionError struct {
	OrderID string
	Current OrderStatus
	From    OrderStatus
	To      OrderStatus
	Reason  string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot move %s -> %s (current %s): %s", e.OrderID, e.From, e.To, e.Current, e.Reason)
}

// PartialOrderError means the order header was persisted but its items were not.
type PartialOrderError struct {
	OrderID     string
	OrderNumber string
	Compensated bool
	Err         error
}

func (e *PartialOrderError) Error() string {
	state := "left pending without items"
	if e.Compensated {
		state = "cancelled"
	}
	return fmt.Sprintf("order %s created but items not attached (%s): %v", e.OrderNumber, state, e.Err)
}

func (e *PartialOrderError) Unwrap() error {
	return e.Err
}
