package model

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorCode represents a structured API error code.
type ErrorCode string

const (
	ErrValidation   ErrorCode = "VALIDATION_ERROR"
	ErrNotFound     ErrorCode = "NOT_FOUND"
	ErrConflict     ErrorCode = "CONFLICT"
	ErrUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrFinished     ErrorCode = "STUDY_FINISHED"
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
)

// APIError is a structured error returned by the sherpa API.
type APIError struct {
	Code    ErrorCode    `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// FieldError describes a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field,omitempty"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// NewValidationError creates an APIError with validation details.
func NewValidationError(msg string, details ...FieldError) *APIError {
	return &APIError{Code: ErrValidation, Message: msg, Details: details}
}

// NewNotFoundError creates a NOT_FOUND APIError.
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s '%s' not found", resource, id),
	}
}

// NewInternalError creates an INTERNAL_ERROR APIError.
func NewInternalError(msg string) *APIError {
	return &APIError{Code: ErrInternal, Message: msg}
}

// Scheduler contract errors. All are local, synchronous and non-retryable:
// the scheduler core does no I/O of its own, so every failure is a contract
// violation by the caller.

// ErrStudyFinished is returned by work requests after the study has met its
// finished-trial target. Reporting in-flight results remains valid.
var ErrStudyFinished = errors.New("study finished: no further trials will be issued")

// InvalidRungError is returned when a rung level lies outside [0, Max].
type InvalidRungError struct {
	Rung int
	Max  int
}

func (e *InvalidRungError) Error() string {
	return fmt.Sprintf("invalid rung %d: ladder has rungs 0..%d", e.Rung, e.Max)
}

// InvalidPromotionError is returned when a promotion is requested from a
// parent that is not completed or whose rung does not immediately precede
// the target rung.
type InvalidPromotionError struct {
	ParentID   int
	ParentRung int
	TargetRung int
	Reason     string
}

func (e *InvalidPromotionError) Error() string {
	return fmt.Sprintf("invalid promotion of trial %d from rung %d to rung %d: %s",
		e.ParentID, e.ParentRung, e.TargetRung, e.Reason)
}

// InvalidTransitionError is returned when a state transition is invalid.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s state transition: %s → %s (entity %s)", e.Entity, e.From, e.To, e.ID)
}

// NewTrialTransitionError builds an InvalidTransitionError for a trial.
func NewTrialTransitionError(id int, from, to TrialState) *InvalidTransitionError {
	return &InvalidTransitionError{
		Entity: "trial",
		ID:     strconv.Itoa(id),
		From:   from.String(),
		To:     to.String(),
	}
}

// NotFoundError is returned when an entity id is unknown.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NewTrialNotFound builds a NotFoundError for a trial id.
func NewTrialNotFound(id int) *NotFoundError {
	return &NotFoundError{Kind: "trial", ID: strconv.Itoa(id)}
}
