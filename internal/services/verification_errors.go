package services

import (
	"errors"
	"net/http"
)

// ErrorKind classifies a failed verification operation.
type ErrorKind int

const (
	KindConfiguration ErrorKind = iota + 1
	KindInvalidInput
	KindAuthRequired
	KindConflict
	KindNoActiveRequest
	KindAlreadyVerified
	KindProvider
	KindStorage
	KindStaleRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindInvalidInput:
		return "invalid_input"
	case KindAuthRequired:
		return "auth_required"
	case KindConflict:
		return "conflict"
	case KindNoActiveRequest:
		return "no_active_request"
	case KindAlreadyVerified:
		return "already_verified"
	case KindProvider:
		return "provider"
	case KindStorage:
		return "storage"
	case KindStaleRequest:
		return "stale_request"
	default:
		return "unknown"
	}
}

// VerificationError is returned by VerificationService. Message is safe to
// show to the caller; Err holds the internal cause and is only logged.
type VerificationError struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Message
}

func (e *VerificationError) Unwrap() error { return e.Err }

// User-facing messages.
const (
	MsgConfiguration     = "Server configuration error"
	MsgPhoneRequired     = "Phone number is required"
	MsgPhoneInvalid      = "Phone number must be in international format, e.g. +15551234567"
	MsgCodeRequired      = "Verification code is required"
	MsgCodeInvalid       = "Verification code must be 4-8 digits"
	MsgAuthRequired      = "Authentication required"
	MsgSessionInvalid    = "Invalid or expired session"
	MsgPhoneTaken        = "This phone number is already verified by another user"
	MsgNoActiveRequest   = "No active verification request. Please start verification first."
	MsgAlreadyVerified   = "Phone number is already verified"
	MsgStartFailed       = "Failed to start verification"
	MsgInvalidUpstream   = "Invalid response from verification service"
	MsgCheckFailed       = "Failed to verify code"
	MsgCodeIncorrect     = "Invalid verification code. Please try again."
	MsgCodeExpired       = "Verification code has expired. Please request a new one."
	MsgTooManyAttempts   = "Too many attempts. Please wait a few minutes and try again."
	MsgStorageFailed     = "Failed to save verification status"
	MsgLookupFailed      = "Failed to load verification status"
	MsgRequestSuperseded = "This verification request was replaced by a newer one. Please enter the latest code."
)

func newError(kind ErrorKind, status int, msg string, cause error) *VerificationError {
	return &VerificationError{Kind: kind, Status: status, Message: msg, Err: cause}
}

func configurationError(cause error) *VerificationError {
	return newError(KindConfiguration, http.StatusInternalServerError, MsgConfiguration, cause)
}

func invalidInput(msg string) *VerificationError {
	return newError(KindInvalidInput, http.StatusBadRequest, msg, nil)
}

func authRequired(msg string, cause error) *VerificationError {
	return newError(KindAuthRequired, http.StatusUnauthorized, msg, cause)
}

func storageError(msg string, cause error) *VerificationError {
	return newError(KindStorage, http.StatusInternalServerError, msg, cause)
}

// KindOf returns the kind of a *VerificationError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ve *VerificationError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return 0
}
