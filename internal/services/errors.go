package services

import (
	"errors"
	"fmt"

	"ozergarant/internal/models"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrNotFound               = errors.New("not found")
	ErrInvalidState           = errors.New("invalid state")
	ErrExpired                = errors.New("expired")
	ErrAuth                   = errors.New("wrong password")
	ErrSelfJoin               = errors.New("cannot join own deal")
	ErrNotVerified            = errors.New("user is not verified")
	ErrBanned                 = errors.New("user is banned")
	ErrForbidden              = errors.New("forbidden")
	ErrUnsupportedMethod      = errors.New("unsupported payment method")
	ErrTransitionNotSupported = errors.New("transition not supported")
	ErrCodeGeneration         = errors.New("could not generate unique deal code")
	ErrPersistence            = errors.New("persistence failure")
)

// ValidationError names the offending input field; matches ErrValidation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// InvalidStateError carries the persisted status so the caller can explain
// why the operation was refused.
type InvalidStateError struct {
	Current  models.DealStatus
	Required models.DealStatus
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("deal is %s, expected %s", e.Current, e.Required)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// persistence wraps an unexpected store error.
func persistence(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrPersistence, err)
}
