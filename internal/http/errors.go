package httpapi

import (
	"errors"
	"net/http"

	"github.com/example/walk-matching/internal/auth"
	"github.com/example/walk-matching/internal/models"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func statusFor(k models.ErrorKind) int {
	switch k {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindAuthorization:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindTransientStore:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps err onto the JSON error body. Only the caller-safe
// message of a *models.Error is exposed; wrapped causes go to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, auth.ErrUnauthenticated) {
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Code: "unauthenticated", Message: auth.ErrUnauthenticated.Error()}})
		return
	}
	var me *models.Error
	if !errors.As(err, &me) {
		s.logger.Error("unhandled error", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{Code: "internal", Message: "internal error"}})
		return
	}
	if me.Kind == models.KindTransientStore {
		s.logger.Warn("transient store error", "route", routeTemplate(r), "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, statusFor(me.Kind), errorBody{Error: errorDetail{Code: me.Kind.String(), Message: me.Message}})
}
