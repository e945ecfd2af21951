package provider

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy shared by every adapter.
type ErrorCategory string

const (
	// ErrorNetwork covers connection resets, DNS failures, and timeouts.
	ErrorNetwork ErrorCategory = "network"

	// ErrorAuthentication covers credential and permission failures. The
	// provider is effectively down until the credential is fixed.
	ErrorAuthentication ErrorCategory = "authentication"

	// ErrorRateLimit indicates the remote (or local) limiter rejected the call.
	ErrorRateLimit ErrorCategory = "rate_limit"

	// ErrorServer covers 5xx responses.
	ErrorServer ErrorCategory = "server"

	// ErrorClient covers 4xx responses other than auth and rate limiting.
	ErrorClient ErrorCategory = "client"

	// ErrorData indicates an unparseable or malformed payload.
	ErrorData ErrorCategory = "data"

	// ErrorUnknown is everything the classifier could not place.
	ErrorUnknown ErrorCategory = "unknown"
)

// Severity grades how loudly a failure should be surfaced.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error wraps adapter failures with the normalized category, severity, and
// retry hint the resilience layer acts on.
type Error struct {
	Category   ErrorCategory
	Severity   Severity
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.ProviderID, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.ProviderID, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a normalized provider error. Retryable and severity follow
// directly from the category: network, rate-limit, and server failures are
// transient; authentication and server failures are high severity so the
// alerting path picks them up.
func NewError(category ErrorCategory, providerID, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Severity:   severityFor(category),
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorNetwork || category == ErrorRateLimit || category == ErrorServer,
	}
}

func severityFor(category ErrorCategory) Severity {
	switch category {
	case ErrorAuthentication, ErrorServer:
		return SeverityHigh
	case ErrorNetwork, ErrorRateLimit:
		return SeverityMedium
	case ErrorClient, ErrorData:
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// IsRetryable checks whether an error is worth retrying.
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// CategoryOf extracts the category, defaulting to unknown for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorUnknown
}

// SeverityOf extracts the severity, defaulting to medium for foreign errors.
func SeverityOf(err error) Severity {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Severity
	}
	return SeverityMedium
}

// Sentinel errors shared across the pipeline.
var (
	ErrNotFound          = errors.New("venue not found")
	ErrProviderDisabled  = errors.New("provider disabled")
	ErrNoHealthyProvider = errors.New("no healthy providers available")
)
