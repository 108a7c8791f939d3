package server

import (
	"net/http"

	"github.com/tableside/admin-auth/internal/metrics"
)

func (s *Server) initRoutes() {
	api := s.APIMiddleware()
	authed := s.APIMiddleware(s.RequireAuth())

	s.RegisterRouteHandler("POST /login", ChainMiddleware(s.LoginHandler(), api...))
	s.RegisterRouteHandler("GET /verify", ChainMiddleware(s.VerifyHandler(), api...))
	s.RegisterRouteHandler("POST /refresh", ChainMiddleware(s.RefreshHandler(), api...))
	s.RegisterRouteHandler("POST /logout", ChainMiddleware(s.LogoutHandler(), api...))

	s.RegisterRouteHandler("POST /admin/invite/{restaurantId}", ChainMiddleware(s.InviteHandler(), authed...))
	s.RegisterRouteHandler("POST /admin/invite/accept", ChainMiddleware(s.InviteAcceptHandler(), api...))

	s.RegisterRouteHandler("POST /admin/password_reset/request", ChainMiddleware(s.ResetRequestHandler(), api...))
	s.RegisterRouteHandler("POST /admin/password_reset/confirm", ChainMiddleware(s.ResetConfirmHandler(), api...))

	s.RegisterRouteHandler("GET /admin/sessions/{restaurantId}", ChainMiddleware(s.SessionListHandler(), authed...))
	s.RegisterRouteHandler("POST /admin/sessions/revoke", ChainMiddleware(s.SessionRevokeHandler(), authed...))
	s.RegisterRouteHandler("POST /admin/sessions/revoke_all", ChainMiddleware(s.SessionRevokeAllHandler(), authed...))

	s.RegisterRouteFunc("GET /healthz", s.HealthHandler())
	s.RegisterRouteHandler("GET /metrics", metrics.Handler())
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
