package middleware

import (
	"errors"
	"net/http"
	"regexp"

	"github.com/go-chi/chi/v5"
)

// Path parameter limits.
const (
	// MaxShortCodeLength is the maximum length for a short code.
	MaxShortCodeLength = 32

	// MaxIDLength bounds entity identifiers in paths.
	MaxIDLength = 64
)

// Validation errors.
var (
	ErrShortCodeEmpty   = errors.New("short code is required")
	ErrShortCodeTooLong = errors.New("short code exceeds maximum length")
	ErrShortCodeInvalid = errors.New("short code contains invalid characters")
	ErrIDEmpty          = errors.New("id is required")
	ErrIDTooLong        = errors.New("id exceeds maximum length")
	ErrIDInvalid        = errors.New("id contains invalid characters")
)

// Allowed: a-z, A-Z, 0-9, hyphen, underscore
var validShortCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var validIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// ValidateShortCode checks a short code taken from a request path.
func ValidateShortCode(code string) error {
	if code == "" {
		return ErrShortCodeEmpty
	}
	if len(code) > MaxShortCodeLength {
		return ErrShortCodeTooLong
	}
	if !validShortCodePattern.MatchString(code) {
		return ErrShortCodeInvalid
	}
	return nil
}

// ValidateID checks an entity identifier (UUID, ULID or slug) taken from a
// request path.
func ValidateID(id string) error {
	if id == "" {
		return ErrIDEmpty
	}
	if len(id) > MaxIDLength {
		return ErrIDTooLong
	}
	if !validIDPattern.MatchString(id) {
		return ErrIDInvalid
	}
	return nil
}

// ShortCodeParam rejects requests whose named chi URL parameter is not a
// valid short code. Unknown codes are answered with 404 so probing cannot
// tell malformed from missing.
func ShortCodeParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateShortCode(chi.URLParam(r, name)); err != nil {
				writeError(w, http.StatusNotFound, "NOT_FOUND", "link not found")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IDParam rejects requests whose named chi URL parameter is not a valid
// identifier.
func IDParam(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ValidateID(chi.URLParam(r, name)); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid "+name+": "+err.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
