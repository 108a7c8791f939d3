package server

import (
	"net/http"
	"time"
)

// SessionCookieName carries the opaque session secret. HttpOnly and
// SameSite=Strict keep it away from scripts and cross-site requests.
const SessionCookieName = "admin_session"

func (s *Server) setSessionCookie(w http.ResponseWriter, secret string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    secret,
		Path:     "/",
		Expires:  expiry,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.env != "DEV",
		SameSite: http.SameSiteStrictMode,
	})
}

func sessionSecret(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
