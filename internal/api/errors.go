package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when an authenticated request is answered with 401. By the
// time a caller sees it the session has already been cleared.
var ErrUnauthorized = errors.New("api: unauthorized")

// RequestError is a transport failure: the server could not be reached or its answer
// could not be read.
type RequestError struct {
	Op  string
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ServerRejection is a structured non-2xx answer.
type ServerRejection struct {
	Status  int
	Message string
}

func (e *ServerRejection) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server rejected request: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server rejected request: %d %s", e.Status, e.Message)
}

// Message reduces any error to the single line shown on the active step.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var rejection *ServerRejection
	var reqErr *RequestError
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "Your session has expired. Please log in again."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to answer. Please try again."
	case errors.As(err, &rejection):
		if rejection.Message != "" {
			return rejection.Message
		}
		return fmt.Sprintf("The request failed (%d %s).", rejection.Status, http.StatusText(rejection.Status))
	case errors.As(err, &reqErr):
		return "Could not reach the server. Check your connection and try again."
	default:
		return err.Error()
	}
}
