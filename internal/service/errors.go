package service

import (
	"errors"
)

// Reason is the stable, enumerable failure code returned to callers so they
// can render a specific message.
type Reason string

const (
	ReasonInvalid        Reason = "invalid"
	ReasonUnauthorized   Reason = "unauthorized"
	ReasonForbidden      Reason = "forbidden"
	ReasonNotFound       Reason = "not_found"
	ReasonParentNotFound Reason = "parent_not_found"
	ReasonMaxDepth       Reason = "max_depth"
	ReasonInvalidCode    Reason = "invalid_code"
	ReasonUsed           Reason = "used"
	ReasonExpired        Reason = "expired"
	ReasonEmailInUse     Reason = "email_in_use"
	ReasonUsernameInUse  Reason = "username_in_use"
	ReasonCreateFailed   Reason = "create_failed"
	ReasonServer         Reason = "server"
)

// Error is a domain failure tagged with its Reason.
type Error struct {
	reason Reason
	msg    string
}

func newError(reason Reason, msg string) *Error {
	return &Error{reason: reason, msg: msg}
}

func (e *Error) Error() string {
	return e.msg
}

func (e *Error) Reason() Reason {
	return e.reason
}

var (
	ErrInvalid        = newError(ReasonInvalid, "invalid input")
	ErrUnauthorized   = newError(ReasonUnauthorized, "authentication required")
	ErrForbidden      = newError(ReasonForbidden, "forbidden")
	ErrNotFound       = newError(ReasonNotFound, "not found")
	ErrParentNotFound = newError(ReasonParentNotFound, "parent comment not found")
	ErrMaxDepth       = newError(ReasonMaxDepth, "replies to replies are not allowed")

	ErrInvalidCode   = newError(ReasonInvalidCode, "invite code is invalid")
	ErrCodeUsed      = newError(ReasonUsed, "invite code has already been used")
	ErrCodeExpired   = newError(ReasonExpired, "invite code has expired")
	ErrEmailInUse    = newError(ReasonEmailInUse, "email is already registered")
	ErrUsernameInUse = newError(ReasonUsernameInUse, "username is already taken")
	ErrCreateFailed  = newError(ReasonCreateFailed, "failed to create account")
)

// ReasonOf maps err to its Reason. Errors that carry no Reason, such as
// wrapped store failures, report ReasonServer.
func ReasonOf(err error) Reason {
	if err == nil {
		return ""
	}
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.reason
	}
	return ReasonServer
}
