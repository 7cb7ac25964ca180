// Package classify turns send failures into an error type and a retry
// decision. Rules are checked in order; the first match wins, so
// transport symptoms outrank upstream status codes.
package classify

import (
	"errors"
	"strings"

	"notify-gateway/internal/provider"
)

// Error types recorded on failed attempts.
const (
	KindNetworkError        = "NETWORK_ERROR"
	KindRateLimit           = "RATE_LIMIT"
	KindAuthenticationError = "AUTHENTICATION_ERROR"
	KindInvalidData         = "INVALID_DATA"
	KindProviderError       = "PROVIDER_ERROR"
	KindRetryable           = "RETRYABLE"
	// KindNonRetryable marks internal failures recorded without a
	// provider attempt, such as an enqueue that could not be completed.
	KindNonRetryable = "NON_RETRYABLE"
)

// Classification is the outcome of classifying one failure.
type Classification struct {
	Type      string
	Retryable bool
}

var networkCodes = map[string]bool{
	"ETIMEDOUT":    true,
	"ECONNREFUSED": true,
	"ENOTFOUND":    true,
	"ECONNRESET":   true,
}

// Classify maps a send failure onto an error type and retry decision.
func Classify(err error) Classification {
	var perr *provider.Error
	isProvider := errors.As(err, &perr)

	var code, message string
	status := 0
	var hint *bool
	if isProvider {
		code = perr.ErrorCode
		status = perr.StatusCode
		message = perr.Message
		hint = perr.RetryableHint
	} else if err != nil {
		message = err.Error()
	}
	msg := strings.ToLower(message)

	switch {
	case networkCodes[code],
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "network"):
		return Classification{Type: KindNetworkError, Retryable: true}

	case status == 429,
		strings.Contains(msg, "rate limit"):
		return Classification{Type: KindRateLimit, Retryable: true}

	case status == 502, status == 503,
		strings.Contains(msg, "service unavailable"):
		return Classification{Type: KindNetworkError, Retryable: true}

	case status == 401, status == 403,
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "forbidden"):
		return Classification{Type: KindAuthenticationError, Retryable: false}

	case code == provider.ErrCodeNotConfigured,
		status == 400,
		strings.Contains(msg, "invalid"),
		strings.Contains(msg, "not found"),
		strings.Contains(msg, "bad request"):
		return Classification{Type: KindInvalidData, Retryable: false}

	case isProvider:
		retryable := true
		if hint != nil {
			retryable = *hint
		}
		return Classification{Type: KindProviderError, Retryable: retryable}

	default:
		return Classification{Type: KindRetryable, Retryable: true}
	}
}
