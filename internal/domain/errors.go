package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies recoverable failures so the transport can map them to responses.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindMissingField      Kind = "missing_field"
	KindInvalidWindow     Kind = "invalid_window"
	KindNotFound          Kind = "not_found"
	KindDuplicate         Kind = "duplicate_submission"
	KindInvalidTransition Kind = "invalid_transition"
	KindDataIntegrity     Kind = "data_integrity"
	KindExamNotOpen       Kind = "exam_not_open"
	KindForbidden         Kind = "forbidden"
)

var (
	// ErrValidation is returned when required fields are missing or malformed.
	ErrValidation = errors.New("validation failed")
	// ErrMissingField is returned when a schedule lacks a required field.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidWindow is returned when a schedule ends at or before its start.
	ErrInvalidWindow = errors.New("endTime must be after startTime")
	// ErrNotFound is returned when an id does not resolve to a record.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateSubmission is returned when the student already submitted the exam.
	ErrDuplicateSubmission = errors.New("duplicate submission")
	// ErrInvalidTransition is returned for an illegal grading state move.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDataIntegrity is returned when a submission references data that no longer exists.
	ErrDataIntegrity = errors.New("data integrity violation")
	// ErrExamNotOpen is returned when no schedule admits the submission right now.
	ErrExamNotOpen = errors.New("exam is not open")
	// ErrForbidden is returned when the principal may not perform the operation.
	ErrForbidden = errors.New("forbidden")
)

var kindSentinels = map[Kind]error{
	KindValidation:        ErrValidation,
	KindMissingField:      ErrMissingField,
	KindInvalidWindow:     ErrInvalidWindow,
	KindNotFound:          ErrNotFound,
	KindDuplicate:         ErrDuplicateSubmission,
	KindInvalidTransition: ErrInvalidTransition,
	KindDataIntegrity:     ErrDataIntegrity,
	KindExamNotOpen:       ErrExamNotOpen,
	KindForbidden:         ErrForbidden,
}

// Error is a structured, recoverable failure carrying a kind and a readable message.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return e.Message + ": " + strings.Join(e.Fields, ", ")
}

// Is lets errors.Is match an *Error against its kind sentinel.
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// Errorf builds an *Error of the given kind.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError lists every offending field at once.
func NewValidationError(message string, fields []string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// NotFound builds a not_found error for an entity and id.
func NotFound(entity, id string) *Error {
	return Errorf(KindNotFound, "%s %q not found", entity, id)
}

// KindOf extracts the kind of err, or "" for unexpected failures.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}
