package httpx

import (
	"errors"
	"net/http"

	"github.com/eureka-corp/eureka/internal/shared"
)

// RespondError maps domain errors to RFC7807 problem responses.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrDuplicateEmail), errors.Is(err, shared.ErrAlreadyReviewed), errors.Is(err, shared.ErrFeedbackExists):
		Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "Forbidden", "invalid csrf token")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
