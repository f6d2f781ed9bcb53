package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// VerifyProvider issues and checks one-time SMS codes through an external
// verification service.
type VerifyProvider interface {
	// Issue sends a code to phone and returns the provider's request id.
	Issue(ctx context.Context, phone, brand string) (requestID string, err error)

	// Check submits code for a previously issued request.
	Check(ctx context.Context, requestID, code string) error

	// GetProviderName returns the name of the provider ("vonage")
	GetProviderName() string
}

// ErrMalformedProviderResponse is returned when the provider reports success
// but the body lacks the fields the flow depends on.
var ErrMalformedProviderResponse = errors.New("malformed provider response")

// ProviderFailure is the closed set of ways a provider call can fail that the
// flow tells apart.
type ProviderFailure int

const (
	FailureGeneric ProviderFailure = iota
	FailureInvalidCode
	FailureExpired
	FailureRateLimited
)

func (f ProviderFailure) String() string {
	switch f {
	case FailureInvalidCode:
		return "invalid_code"
	case FailureExpired:
		return "expired"
	case FailureRateLimited:
		return "rate_limited"
	default:
		return "generic"
	}
}

// ProviderError is a non-2xx answer from the provider, decoded from its
// problem-details body where one was sent.
type ProviderError struct {
	Op         string
	StatusCode int
	Type       string
	Title      string
	Detail     string
	Failure    ProviderFailure
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s failed with status %d", e.Op, e.StatusCode)
	if e.Type != "" {
		msg += " (" + e.Type + ")"
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	} else if e.Title != "" {
		msg += ": " + e.Title
	}
	return msg
}

// Describe returns the provider's own description, or "" when it sent none.
func (e *ProviderError) Describe() string {
	if d := strings.TrimSpace(e.Detail); d != "" {
		return d
	}
	return strings.TrimSpace(e.Title)
}

// ClassifyProviderError maps a provider status code and problem type URI to a
// ProviderFailure. The type fragment wins over the status code.
func ClassifyProviderError(status int, problemType string) ProviderFailure {
	fragment := strings.ToLower(problemType)
	if i := strings.LastIndexByte(fragment, '#'); i >= 0 {
		fragment = fragment[i+1:]
	}

	switch fragment {
	case "invalid-code", "incorrect-code":
		return FailureInvalidCode
	case "expired", "request-expired", "not-found", "already-verified":
		return FailureExpired
	case "throttled", "rate-limit", "too-many-attempts", "concurrent-verifications":
		return FailureRateLimited
	}

	switch status {
	case http.StatusTooManyRequests:
		return FailureRateLimited
	case http.StatusNotFound, http.StatusGone:
		return FailureExpired
	}
	return FailureGeneric
}

// checkFailureMessage is the text shown to the user when a code check fails.
func checkFailureMessage(pe *ProviderError) string {
	switch pe.Failure {
	case FailureInvalidCode:
		return MsgCodeIncorrect
	case FailureExpired:
		return MsgCodeExpired
	case FailureRateLimited:
		return MsgTooManyAttempts
	default:
		if d := pe.Describe(); d != "" {
			return d
		}
		return MsgCheckFailed
	}
}
