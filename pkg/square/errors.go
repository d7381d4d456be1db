package square

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequestBlocked is wrapped when a request is refused locally during a
// provider rate-limit cool-down.
var ErrRequestBlocked = errors.New("request blocked by rate limit cool-down")

// ErrorClass represents a classification of provider errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 responses and local cool-down refusals.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents transport failures and undecodable bodies.
	ErrorClassNetwork ErrorClass = "network"
)

// ProviderError is returned for any failed Square request.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("square %s error on %s (status %d): %s: %v",
			e.Class, e.Endpoint, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("square %s error on %s (status %d): %s",
		e.Class, e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status to an ErrorClass.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// describeErrors joins Square's error details into a single message.
func describeErrors(apiErrors []APIError) string {
	msg := ""
	for i, e := range apiErrors {
		if i > 0 {
			msg += "; "
		}
		msg += e.Code
		if e.Detail != "" {
			msg += ": " + e.Detail
		}
	}
	return msg
}
