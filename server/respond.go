package server

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/auth"
	"github.com/tableside/admin-auth/internal/metrics"
	"github.com/tableside/admin-auth/internal/repository/pg"
	"github.com/tableside/admin-auth/invites"
	"github.com/tableside/admin-auth/resets"
	"github.com/tableside/admin-auth/sessions"
	"github.com/tableside/admin-auth/token"
)

type errorResponse struct {
	Error string `json:"error"`
}

func errorBody(message string) errorResponse {
	return errorResponse{Error: message}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody(message))
}

// writeServiceError maps domain errors onto HTTP statuses. Anything
// unrecognised is an internal error; its detail stays out of the response.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	status, message := errorStatus(err)
	switch status {
	case http.StatusInternalServerError:
		s.log.Err(err).Msg("internal error")
		message = "internal server error"
	case http.StatusServiceUnavailable:
		s.log.Warn().Err(err).Msg("storage unavailable")
	}
	metrics.RecordError(status)
	writeError(w, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid email or password"
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrSessionInvalid):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, invites.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, invites.ErrAlreadyConsumed), errors.Is(err, resets.ErrAlreadyConsumed):
		return http.StatusConflict, "token already used"
	case errors.Is(err, admins.ErrDuplicateEmail):
		return http.StatusConflict, "email already registered"
	case errors.Is(err, token.ErrExpiredToken):
		return http.StatusBadRequest, "token expired"
	case errors.Is(err, token.ErrInvalidToken), errors.Is(err, token.ErrWrongKind):
		return http.StatusBadRequest, "invalid token"
	// A replaced or unknown single-use token reads as invalid, not missing.
	case errors.Is(err, invites.ErrNotFound), errors.Is(err, resets.ErrNotFound):
		return http.StatusBadRequest, "invalid token"
	case errors.Is(err, invites.ErrInvalidRole):
		return http.StatusBadRequest, "invalid role"
	case errors.Is(err, admins.ErrWeakPassword):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound, "session not found"
	case errors.Is(err, admins.ErrNotFound):
		return http.StatusNotFound, "account not found"
	case errors.Is(err, pg.ErrUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, ""
	}
}

func decodeJSON(r *http.Request, into any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(into)
}
