package shared

import (
	"errors"
	"fmt"
)

// RequestError is used when we want a specific error message and StatusCode.
// sane defaults are listed below. For routes that need custom error messages,
// a request error can be generated and a handler expects the router to return
// the exact message inside the request error msg
//
// Error codes should be bubbled where the RequestError msg is expected to be
// returned to the user. If the user should see a generic error message but
// the error chain should include more detail for logging purposes, then a
// generic error should be added that provides context
type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

var (
	ErrMissingAuth   = &RequestError{Err: errors.New("missing authorization header"), StatusCode: 401}
	ErrInvalidFormat = &RequestError{Err: errors.New("invalid authentication format"), StatusCode: 401}
	ErrInvalidKeyLen = &RequestError{Err: errors.New("invalid API key length"), StatusCode: 401}
	ErrUnauthorized  = &RequestError{Err: errors.New("unauthorized"), StatusCode: 401}

	ErrUsernameTaken = &RequestError{Err: errors.New("username already taken"), StatusCode: 409}
	ErrAccountLocked = &RequestError{Err: errors.New("account locked"), StatusCode: 403}
	ErrNotFound      = &RequestError{Err: errors.New("not found"), StatusCode: 404}
	ErrBadRequest    = &RequestError{Err: errors.New("bad request"), StatusCode: 400}

	ErrInvalidRequest      = &RequestError{Err: errors.New("invalid request body"), StatusCode: 400}
	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}

	ErrModelRequest      = errors.New("failed to send http request to model")
	ErrModelStatus       = errors.New("model responded with non-200")
	ErrModelRead         = errors.New("failed to read model response")
	ErrModelMissingDone  = errors.New("missing [DONE] token")
	ErrEmptyMessages     = &RequestError{Err: errors.New("messages are required"), StatusCode: 400}
	ErrMalformedMessages = &RequestError{Err: errors.New("malformed message history"), StatusCode: 400}
)
