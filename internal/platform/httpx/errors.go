// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"
)

// Sentinel errors shared by domain packages. Domain sentinels wrap these so
// RespondError can map them without importing every package.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
)

type errorMapping struct {
	target error
	status int
	title  string
	slug   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{ErrNotFound, http.StatusNotFound, "Not Found", "not-found"},
	{ErrDuplicate, http.StatusConflict, "Duplicate", "duplicate"},
	{ErrConflict, http.StatusConflict, "Conflict", "conflict"},
	{ErrValidation, http.StatusBadRequest, "Validation Failed", "validation"},
	{ErrForbidden, http.StatusForbidden, "Forbidden", "forbidden"},
	{ErrUnauthorized, http.StatusUnauthorized, "Unauthorized", "unauthorized"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "Timeout", "timeout"},
}

// RespondError maps domain errors to HTTP responses using RFC7807. Unmapped
// errors become a 500 without leaking the message.
func RespondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			writeProblem(w, ProblemDetail{Type: problemType(m.slug), Title: m.title, Status: m.status, Detail: err.Error()})
			return
		}
	}
	writeProblem(w, ProblemDetail{Title: "Internal Error", Status: http.StatusInternalServerError})
}

// StatusFor reports the status RespondError would use for err.
func StatusFor(err error) int {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// Forbidden writes the standard "not permitted" problem.
func Forbidden(w http.ResponseWriter) {
	writeProblem(w, ProblemDetail{
		Type:   problemType("forbidden"),
		Title:  "Forbidden",
		Status: http.StatusForbidden,
		Detail: "you do not have access to this resource",
	})
}

func problemType(slug string) string {
	return "/problems/" + slug
}
