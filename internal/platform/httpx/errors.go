package httpx

import (
	"errors"
	"net/http"
)

// Error codes exposed to API clients. The codes are stable contract; the
// detail strings are not.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeConversion        = "PPU_CONVERSION_ERROR"
	CodeBusinessRule      = "BUSINESS_RULE_VIOLATION"
	CodeManualReview      = "MANUAL_REVIEW_REQUIRED"
	CodeNotFound          = "NOT_FOUND"
	CodeDuplicate         = "DUPLICATE"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		ProblemCode(w, http.StatusNotFound, CodeNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		ProblemCode(w, http.StatusConflict, CodeDuplicate, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		ProblemCode(w, http.StatusBadRequest, CodeValidation, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
