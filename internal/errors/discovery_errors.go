package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Discovery-specific error types, layered onto the general taxonomy above.
// These back the Related-Paper Discovery Core's error kinds.
const (
	ErrorTypeInsufficientCredits ErrorType = "insufficient_credits"
	ErrorTypeSourceRateLimited   ErrorType = "source_rate_limited"
	ErrorTypeSourceCircuitOpen   ErrorType = "source_circuit_open"
	ErrorTypeSourceTransport     ErrorType = "source_transport_error"
	ErrorTypeSourceProtocol      ErrorType = "source_protocol_error"
	ErrorTypeCacheFault          ErrorType = "cache_fault"
	ErrorTypePersistenceFault    ErrorType = "persistence_fault"
	ErrorTypeCancelled           ErrorType = "cancelled"
)

// NewInvalidInputError creates the discovery core's INVALID_INPUT error.
// It reuses ErrorTypeValidation; the code distinguishes it from generic
// field validation so callers can match on Code rather than Type.
func NewInvalidInputError(message string, field string) *SciFindError {
	return NewError(ErrorTypeValidation, "INVALID_INPUT", message).
		WithDetail("field", field).
		WithStatusCode(http.StatusBadRequest).
		Retryable(false).
		Build()
}

// NewInsufficientCreditsError creates the fatal INSUFFICIENT_CREDITS error
// raised by the task substrate's cost hook before any worker runs.
func NewInsufficientCreditsError(userID, operation string) *SciFindError {
	return NewError(ErrorTypeInsufficientCredits, "INSUFFICIENT_CREDITS", "insufficient credits for operation").
		WithDetail("user_id", userID).
		WithDetail("operation", operation).
		WithStatusCode(http.StatusPaymentRequired).
		Retryable(false).
		Build()
}

// NewSourceRateLimitedError marks a worker failure caused by its own
// rate limiter (C1) refusing a permit, not an upstream 429.
func NewSourceRateLimitedError(source string) *SciFindError {
	return NewError(ErrorTypeSourceRateLimited, "SOURCE_RATE_LIMITED", fmt.Sprintf("%s rate limited", source)).
		WithComponent(source).
		WithStatusCode(http.StatusTooManyRequests).
		Retryable(true).
		Build()
}

// NewSourceCircuitOpenError marks a worker failure because C1's breaker
// for that source is open; the caller did not touch the network.
func NewSourceCircuitOpenError(source string) *SciFindError {
	return NewError(ErrorTypeSourceCircuitOpen, "SOURCE_CIRCUIT_OPEN", fmt.Sprintf("circuit open for %s", source)).
		WithComponent(source).
		WithStatusCode(http.StatusServiceUnavailable).
		Retryable(false).
		Build()
}

// NewSourceTransportError marks a network or 5xx failure inside a worker,
// eligible for retry up to the worker's attempt budget.
func NewSourceTransportError(source string, cause error) *SciFindError {
	return NewError(ErrorTypeSourceTransport, "SOURCE_TRANSPORT_ERROR", fmt.Sprintf("%s transport failure", source)).
		WithComponent(source).
		WithCause(cause).
		WithStatusCode(http.StatusBadGateway).
		Retryable(true).
		Build()
}

// NewSourceProtocolError marks a 4xx or schema-mismatch failure inside a
// worker; never retried.
func NewSourceProtocolError(source string, message string) *SciFindError {
	return NewError(ErrorTypeSourceProtocol, "SOURCE_PROTOCOL_ERROR", message).
		WithComponent(source).
		WithStatusCode(http.StatusBadGateway).
		Retryable(false).
		Build()
}

// NewDiscoveryTimeoutError creates a TIMEOUT error at the per-request,
// per-worker, or overall-run level.
func NewDiscoveryTimeoutError(scope string) *SciFindError {
	return NewError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s deadline exceeded", scope)).
		WithDetail("scope", scope).
		WithStatusCode(http.StatusGatewayTimeout).
		Retryable(false).
		Build()
}

// NewCacheFaultError is non-fatal: callers fall through to live discovery.
func NewCacheFaultError(tier string, cause error) *SciFindError {
	return NewError(ErrorTypeCacheFault, "CACHE_FAULT", fmt.Sprintf("%s cache fault", tier)).
		WithCause(cause).
		WithStatusCode(http.StatusOK).
		Retryable(false).
		Build()
}

// NewPersistenceFaultError is non-fatal for the caller but marks the run
// with a completed-with-warnings condition.
func NewPersistenceFaultError(operation string, cause error) *SciFindError {
	return NewError(ErrorTypePersistenceFault, "PERSISTENCE_FAULT", "failed to persist discovery result").
		WithOperation(operation).
		WithCause(cause).
		WithStatusCode(http.StatusOK).
		Retryable(false).
		Build()
}

// NewCancelledError is the terminal non-error state produced when a run
// or task is cancelled cooperatively.
func NewCancelledError(scope string) *SciFindError {
	return NewError(ErrorTypeCancelled, "CANCELLED", fmt.Sprintf("%s cancelled", scope)).
		WithStatusCode(http.StatusOK).
		Retryable(false).
		Build()
}

// IsTransientSourceError reports whether a worker error kind is eligible
// for retry inside the worker's own attempt budget.
func IsTransientSourceError(err *SciFindError) bool {
	if err == nil {
		return false
	}
	switch err.Type {
	case ErrorTypeSourceTransport, ErrorTypeTimeout, ErrorTypeTransient, ErrorTypeNetwork:
		return true
	default:
		return false
	}
}

// AsSciFindError unwraps a generic error into a *SciFindError, or nil
// if it isn't one.
func AsSciFindError(err error) *SciFindError {
	var sfe *SciFindError
	if errors.As(err, &sfe) {
		return sfe
	}
	return nil
}
