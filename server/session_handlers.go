package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/tableside/admin-auth/internal/metrics"
	"github.com/tableside/admin-auth/sessions"
)

type sessionResponse struct {
	ID         string `json:"id"`
	AdminID    string `json:"adminId"`
	AdminEmail string `json:"adminEmail"`
	IssuedAt   string `json:"issuedAt"`
	ExpiresAt  string `json:"expiresAt"`
	IP         string `json:"ip,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	Revoked    bool   `json:"revoked"`
	Current    bool   `json:"current"`
}

type revokeRequest struct {
	SessionID string `json:"sessionId"`
}

// SessionListHandler enumerates sessions in the caller's restaurant. Owners
// see every session; staff only their own.
func (s *Server) SessionListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		restaurantID, err := strconv.Atoi(r.PathValue("restaurantId"))
		if err != nil || restaurantID <= 0 {
			writeError(w, http.StatusBadRequest, "invalid restaurant id")
			return
		}

		claims := claimsFromContext(r.Context())
		list, err := s.auth.ListSessions(r.Context(), claims, restaurantID)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		out := make([]sessionResponse, 0, len(list))
		for _, session := range list {
			out = append(out, sessionToResponse(session, claims.SessionID))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// SessionRevokeHandler revokes one session by ID, subject to role and tenant
// checks.
func (s *Server) SessionRevokeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req revokeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.SessionID == "" {
			writeError(w, http.StatusBadRequest, "sessionId is required")
			return
		}

		claims := claimsFromContext(r.Context())
		if err := s.auth.Revoke(r.Context(), claims, req.SessionID); err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.RecordRevocations(1)

		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

// SessionRevokeAllHandler revokes every other session of the caller, keeping
// the current one.
func (s *Server) SessionRevokeAllHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := claimsFromContext(r.Context())

		revoked, err := s.auth.RevokeOthers(r.Context(), claims)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		metrics.RecordRevocations(revoked)

		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "revoked": revoked})
	}
}

func sessionToResponse(session *sessions.Session, currentSessionID string) sessionResponse {
	return sessionResponse{
		ID:         session.ID,
		AdminID:    session.AdminID,
		AdminEmail: session.AdminEmail,
		IssuedAt:   session.IssuedAt.UTC().Format(time.RFC3339),
		ExpiresAt:  session.ExpiresAt.UTC().Format(time.RFC3339),
		IP:         session.IP,
		UserAgent:  session.UserAgent,
		Revoked:    session.Revoked,
		Current:    session.ID == currentSessionID,
	}
}
