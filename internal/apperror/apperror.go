// Package apperror defines the closed set of error kinds the reconciliation flow can produce and
// their mapping onto HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by who is at fault and whether retrying can help.
type Kind int

const (
	// KindUnknown is reported for errors that carry no kind.
	KindUnknown Kind = iota
	// KindValidation means the client sent unusable input.
	KindValidation
	// KindNotFound means a stored reference points nowhere. It indicates corrupt data, not a
	// missing resource the client asked for.
	KindNotFound
	// KindStore means the contact store could not be reached or failed.
	KindStore
)

// String returns the kind's name as used in logs and metric labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements errors.Unwrap.
func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a KindValidation error with a client-facing message.
func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

// NotFound returns a KindNotFound error.
func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Store wraps err as a KindStore error. It returns nil if err is nil and leaves errors that
// already carry a kind untouched.
func Store(err error, message string) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return err
	}
	return &Error{Kind: KindStore, Message: message, Err: err}
}

// KindOf returns the kind of the first tagged error in err's chain.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return KindUnknown
}

// HTTPStatus maps an error onto the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message that may be shown to the client. Only validation errors
// reveal their text; everything else is described generically and logged in full instead.
func PublicMessage(err error) string {
	var tagged *Error
	if errors.As(err, &tagged) {
		switch tagged.Kind {
		case KindValidation:
			return tagged.Message
		case KindStore:
			return "contact store unavailable"
		}
	}
	return "internal error"
}
