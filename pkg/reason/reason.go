// Package reason defines the closed set of reasons a login attempt can be
// aborted with, and a structured error type carrying one of them.
package reason

import (
	"errors"
	"fmt"
	"net/http"
)

// Reason identifies why a login flow was aborted. Every aborted attempt
// carries exactly one Reason.
type Reason string

const (
	InvalidState          Reason = "InvalidState"
	MissingAuthCode       Reason = "MissingAuthCode"
	IdentityProviderError Reason = "IdentityProviderError"

	// Validation pipeline rules
	InvalidSubjectId           Reason = "InvalidSubjectId"
	InvalidEmail               Reason = "InvalidEmail"
	NotRequiredGroupMember     Reason = "NotRequiredGroupMember"
	NotAllowedSubsectionMember Reason = "NotAllowedSubsectionMember"

	// Account resolution and provisioning
	AccountNotFound           Reason = "AccountNotFound"
	AccountCreationNotAllowed Reason = "AccountCreationNotAllowed"
	AccountDisabled           Reason = "AccountDisabled"
	LoginNotEnabled           Reason = "LoginNotEnabled"

	// Unexpected is the catch-all for failures outside the taxonomy.
	Unexpected Reason = "Unexpected"
)

// All returns every known reason in taxonomy order.
func All() []Reason {
	return []Reason{
		InvalidState,
		MissingAuthCode,
		IdentityProviderError,
		InvalidSubjectId,
		InvalidEmail,
		NotRequiredGroupMember,
		NotAllowedSubsectionMember,
		AccountNotFound,
		AccountCreationNotAllowed,
		AccountDisabled,
		LoginNotEnabled,
		Unexpected,
	}
}

// Known reports whether r is part of the taxonomy.
func (r Reason) Known() bool {
	for _, k := range All() {
		if r == k {
			return true
		}
	}
	return false
}

func (r Reason) String() string {
	return string(r)
}

// Error is a structured error carrying an abort reason
type Error struct {
	Reason  Reason                 // Abort reason
	Message string                 // Log-facing message, never shown to users
	Details map[string]interface{} // Optional additional details
	Err     error                  // Wrapped underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Reason, e.Message)
}

// Unwrap returns the wrapped error for errors.Is and errors.As
func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail to the error
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// HTTPStatus returns the status code used when an abort has to be reported
// as a plain HTTP error instead of a redirect.
func (e *Error) HTTPStatus() int {
	return HTTPStatus(e.Reason)
}

// New creates a new Error with the given reason and message
func New(r Reason, message string) *Error {
	return &Error{
		Reason:  r,
		Message: message,
	}
}

// Newf creates a new Error with formatted message
func Newf(r Reason, format string, args ...interface{}) *Error {
	return &Error{
		Reason:  r,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with a reason and message
func Wrap(err error, r Reason, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Reason:  r,
		Message: message,
		Err:     err,
	}
}

// Of extracts the reason from an error.
// Returns Unexpected if the error does not carry one.
func Of(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return Unexpected
}

// Is checks if an error carries a specific reason
func Is(err error, r Reason) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason == r
	}
	return false
}

// HTTPStatus maps reasons to HTTP status codes
func HTTPStatus(r Reason) int {
	switch r {
	case InvalidState, MissingAuthCode:
		return http.StatusBadRequest
	case IdentityProviderError:
		return http.StatusBadGateway
	case InvalidSubjectId, InvalidEmail, NotRequiredGroupMember, NotAllowedSubsectionMember,
		AccountCreationNotAllowed, AccountDisabled, LoginNotEnabled:
		return http.StatusForbidden
	case AccountNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
