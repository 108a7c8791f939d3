package server

import (
	"net/http"
	"strconv"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/internal/metrics"
)

type inviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type inviteAcceptRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// InviteHandler creates an invitation for a new admin of the caller's
// restaurant. Owner role required.
func (s *Server) InviteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := strconv.Atoi(r.PathValue("restaurantId"))
		if err != nil || restaurantID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid restaurant id")
			return
		}

		var req inviteRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Email == "" {
			writeError(w, http.StatusBadRequest, "email is required")
			return
		}

		claims := claimsFromContext(r.Context())
		invite, err := s.invites.Issue(r.Context(), claims, restaurantID, req.Email, admins.Role(req.Role))
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.InviteCounter.WithLabelValues("issued").Inc()

		writeJSON(w, http.StatusCreated, map[string]any{
			"ok":        true,
			"email":     invite.Email,
			"role":      invite.Role,
			"expiresAt": invite.ExpiresAt,
		})
	}
}

// InviteAcceptHandler redeems an invite token and provisions the account.
func (s *Server) InviteAcceptHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req inviteAcceptRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Token == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "token and password are required")
			return
		}

		account, err := s.invites.Redeem(r.Context(), req.Token, req.Password)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.InviteCounter.WithLabelValues("redeemed").Inc()

		writeJSON(w, http.StatusCreated, map[string]any{
			"ok":    true,
			"admin": adminFromAccount(account),
		})
	}
}
