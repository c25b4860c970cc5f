// Package kc is a typed client for the Kite Connect v3 REST API: session
// exchange, user, market-quote, order, and portfolio endpoints, plus a
// persistent access-token cache.
package kc

import (
	"errors"
	"fmt"
)

// Kite Connect exception classes returned in the error envelope's
// error_type field.
const (
	ExceptionToken   = "TokenException"
	ExceptionUser    = "UserException"
	ExceptionOrder   = "OrderException"
	ExceptionInput   = "InputException"
	ExceptionMargin  = "MarginException"
	ExceptionHolding = "HoldingException"
	ExceptionNetwork = "NetworkException"
	ExceptionData    = "DataException"
	ExceptionGeneral = "GeneralException"
)

// APIError is a structured error returned by the Kite Connect API.
type APIError struct {
	Code      int    // HTTP status code
	ErrorType string // Kite exception class, e.g. TokenException
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("kite api error (%s): %s", e.ErrorType, e.Message)
}

// IsTokenException reports whether err indicates an expired or invalidated
// access token, i.e. the user must log in again.
func IsTokenException(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorType == ExceptionToken
}

// IsInputException reports whether err indicates a malformed request.
func IsInputException(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorType == ExceptionInput
}
