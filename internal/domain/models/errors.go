package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData marks results declined for lack of samples.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrUpstreamUnavailable marks a failed or timed out collaborator call.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidConstraint marks caller input rejected before any collaborator call.
	ErrInvalidConstraint = errors.New("invalid constraint")
)

// ConstraintError describes one rejected input field.
type ConstraintError struct {
	Field  string
	Reason string
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("invalid constraint %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidConstraint.
func (e *ConstraintError) Unwrap() error { return ErrInvalidConstraint }

// InvalidConstraint builds a ConstraintError.
func InvalidConstraint(field, format string, a ...any) error {
	return &ConstraintError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// Upstream wraps a collaborator failure so callers can match ErrUpstreamUnavailable.
func Upstream(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUpstreamUnavailable, err)
}
