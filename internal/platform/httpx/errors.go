// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors understood by RespondError. Handlers translate domain
// errors into these before responding.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// Mapping pairs a domain error with the httpx sentinel it should surface as.
type Mapping struct {
	Domain error
	HTTP   error
}

// Translate returns an error wrapping both the matching sentinel and the
// original error. Unmatched errors are returned unchanged.
func Translate(err error, mappings ...Mapping) error {
	for _, m := range mappings {
		if errors.Is(err, m.Domain) {
			return &translated{sentinel: m.HTTP, err: err}
		}
	}
	return err
}

type translated struct {
	sentinel error
	err      error
}

func (t *translated) Error() string { return t.err.Error() }

func (t *translated) Unwrap() []error { return []error{t.sentinel, t.err} }
