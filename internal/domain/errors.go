package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across layers. The typed errors below
// unwrap to these so callers can branch on the class without inspecting the
// concrete type.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalidTransition = errors.New("invalid transition")
)

// NotFoundError reports a lookup miss for a role, work item, or session.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports a request that contradicts existing state: duplicate
// role names, duplicate session keys, or mutations of built-in role identity.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InvalidTransitionError reports a status change along an edge that is not in
// the entity's transition table. It indicates a caller bug, never a transient
// condition.
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: invalid transition %s -> %s", e.Entity, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
