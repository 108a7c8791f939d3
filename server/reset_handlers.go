package server

import (
	"net/http"

	"github.com/tableside/admin-auth/internal/metrics"
)

type resetRequestBody struct {
	RestaurantID int    `json:"restaurantId"`
	Email        string `json:"email"`
}

type resetConfirmBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ResetRequestHandler starts the password reset flow. The acknowledgement is
// the same whether or not the account exists.
func (s *Server) ResetRequestHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetRequestBody
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RestaurantID <= 0 || req.Email == "" {
			writeError(w, http.StatusBadRequest, "restaurantId and email are required")
			return
		}

		if err := s.resets.Request(r.Context(), req.RestaurantID, req.Email); err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.ResetCounter.WithLabelValues("requested").Inc()

		// Byte-identical acknowledgement whether or not the account exists.
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// ResetConfirmHandler sets a new password from a reset token and revokes
// every session of the admin.
func (s *Server) ResetConfirmHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req resetConfirmBody
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Token == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "token and password are required")
			return
		}

		if err := s.resets.Confirm(r.Context(), req.Token, req.Password); err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.ResetCounter.WithLabelValues("confirmed").Inc()

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}
