package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/tableside/admin-auth/admins"
	"github.com/tableside/admin-auth/internal/metrics"
)

type loginRequest struct {
	RestaurantID int    `json:"restaurantId"`
	Email        string `json:"email"`
	Password     string `json:"password"`
}

type adminResponse struct {
	ID           string `json:"id"`
	RestaurantID int    `json:"restaurantId"`
	Email        string `json:"email"`
	Role         string `json:"role"`
}

type tokenResponse struct {
	Token            string        `json:"token"`
	Role             string        `json:"role"`
	ExpiresIn        int           `json:"expiresIn"` // seconds
	CurrentSessionID string        `json:"currentSessionId"`
	Admin            adminResponse `json:"admin"`
}

func adminFromAccount(account *admins.Account) adminResponse {
	return adminResponse{
		ID:           account.ID,
		RestaurantID: account.RestaurantID,
		Email:        account.Email,
		Role:         string(account.Role),
	}
}

// LoginHandler verifies credentials, opens a session cookie, and returns a
// bearer token.
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.RestaurantID <= 0 || req.Email == "" || req.Password == "" {
			writeError(w, http.StatusBadRequest, "restaurantId, email and password are required")
			return
		}

		result, err := s.auth.Login(r.Context(), req.RestaurantID, req.Email, req.Password, clientIP(r), r.UserAgent())
		if err != nil {
			metrics.RecordLogin(false)
			s.writeServiceError(w, err)
			return
		}
		metrics.RecordLogin(true)

		s.setSessionCookie(w, result.SessionSecret, result.SessionExpiry)
		writeJSON(w, http.StatusOK, tokenResponse{
			Token:            result.Token,
			Role:             string(result.Account.Role),
			ExpiresIn:        int(time.Until(result.TokenExpiry).Seconds()),
			CurrentSessionID: result.SessionID,
			Admin:            adminFromAccount(result.Account),
		})
	}
}

// VerifyHandler checks a bearer token and returns its claims. Revoked
// sessions fail here even while the token itself is unexpired.
func (s *Server) VerifyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := s.auth.Verify(r.Context(), raw)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"valid":        true,
			"restaurantId": claims.RestaurantID,
			"adminId":      claims.AdminID,
			"email":        claims.Email,
			"role":         claims.Role,
			"sessionId":    claims.SessionID,
			"expiresAt":    claims.ExpiresAt,
		})
	}
}

// RefreshHandler exchanges a live session cookie for a fresh bearer token and
// slides the session expiry forward.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := sessionSecret(r)
		if secret == "" {
			writeError(w, http.StatusUnauthorized, "missing session cookie")
			return
		}

		result, err := s.auth.Refresh(r.Context(), secret)
		if err != nil {
			s.clearSessionCookie(w)
			s.writeServiceError(w, err)
			return
		}

		s.setSessionCookie(w, secret, result.SessionExpiry)
		writeJSON(w, http.StatusOK, tokenResponse{
			Token:            result.Token,
			Role:             string(result.Account.Role),
			ExpiresIn:        int(time.Until(result.TokenExpiry).Seconds()),
			CurrentSessionID: result.SessionID,
			Admin:            adminFromAccount(result.Account),
		})
	}
}

// LogoutHandler revokes the session behind the cookie. Always clears the
// cookie and succeeds, even without a live session.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Logout(r.Context(), sessionSecret(r)); err != nil {
			s.clearSessionCookie(w)
			s.writeServiceError(w, err)
			return
		}
		s.clearSessionCookie(w)
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
