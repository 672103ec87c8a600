package main

import (
	"errors"
	"net/http"
)

// apiError is the only error type that crosses the transport boundary.
// Business logic raises one with a status and a client-safe message;
// respondError turns it into the uniform JSON envelope. Anything else
// is treated as an internal dependency failure.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string { return e.Message }

func badRequest(msg string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: msg}
}

func unauthorized(msg string) *apiError {
	return &apiError{Status: http.StatusUnauthorized, Message: msg}
}

func notFound(msg string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: msg}
}

func conflict(msg string) *apiError {
	return &apiError{Status: http.StatusConflict, Message: msg}
}

func dependencyFailure(msg string) *apiError {
	return &apiError{Status: http.StatusInternalServerError, Message: msg}
}

// httpStatus resolves any error to a status code and a message safe to
// return to the client. Internal details never leak.
func httpStatus(err error) (int, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.Status, ae.Message
	}
	return http.StatusInternalServerError, "internal server error"
}
