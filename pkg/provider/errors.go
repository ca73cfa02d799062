package provider

import (
	"errors"
	"fmt"
)

// ErrIdentityProvider matches every error returned by Client.
var ErrIdentityProvider = errors.New("identity provider error")

// Kind separates network failures from provider answers.
type Kind string

const (
	// KindTransport means the provider could not be reached.
	KindTransport Kind = "transport"
	// KindRejected means the provider answered with an error status.
	KindRejected Kind = "rejected"
	// KindMalformed means the provider answered 2xx with an unusable body.
	KindMalformed Kind = "malformed"
)

// Error describes a failed provider call. Code and Description carry the
// upstream OAuth2 error fields and must only be logged.
type Error struct {
	Op          string
	Kind        Kind
	StatusCode  int
	Code        string
	Description string
	Err         error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Code != "" {
		msg += ": " + e.Code
		if e.Description != "" {
			msg += ": " + e.Description
		}
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == ErrIdentityProvider
}

// LogAttrs returns key/value pairs for structured logging.
func (e *Error) LogAttrs() []any {
	attrs := []any{"op", e.Op, "kind", string(e.Kind)}
	if e.StatusCode != 0 {
		attrs = append(attrs, "status", e.StatusCode)
	}
	if e.Code != "" {
		attrs = append(attrs, "upstream_error", e.Code)
	}
	if e.Description != "" {
		attrs = append(attrs, "upstream_description", e.Description)
	}
	if e.Err != nil {
		attrs = append(attrs, "cause", e.Err.Error())
	}
	return attrs
}
