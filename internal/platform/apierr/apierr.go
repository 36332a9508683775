package apierr

import (
	"errors"
	"fmt"
)

// Stable error codes returned to clients. Recoverable codes carry enough
// context for the UI to offer a remedy (widen filters, wait for reset, top up).
const (
	CodeNoExercises          = "no_exercises"
	CodeFreeLimitExceeded    = "free_limit_exceeded"
	CodeInsufficientAiPoints = "insufficient_ai_points"
	CodeSessionNotFound      = "session_not_found"
	CodeNoActiveSession      = "no_active_session"
	CodeSessionClosed        = "session_closed"
	CodeGraderUnavailable    = "grader_unavailable"
	CodeIncompleteAnswer     = "incomplete_answer"
	CodeExerciseNotFound     = "exercise_not_found"
	CodeInvalidInput         = "invalid_input"
	CodeUnauthorized         = "unauthorized"
	CodeSubmissionInFlight   = "submission_in_flight"
	CodeSessionNotExhausted  = "session_not_exhausted"
)

type Error struct {
	Status int
	Code   string
	Err    error
	// Meta carries code-specific detail (remaining quota, AI cost, reset time)
	// and is serialized alongside the message.
	Meta map[string]any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func WithMeta(status int, code string, err error, meta map[string]any) *Error {
	return &Error{Status: status, Code: code, Err: err, Meta: meta}
}

// As unwraps err into *Error if possible.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// HasCode reports whether err carries the given API code.
func HasCode(err error, code string) bool {
	ae, ok := As(err)
	return ok && ae.Code == code
}
