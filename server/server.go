package server

import (
	"net/http"
	"strings"

	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/tableside/admin-auth/auth"
	"github.com/tableside/admin-auth/internal/config"
	"github.com/tableside/admin-auth/internal/metrics"
	"github.com/tableside/admin-auth/invites"
	"github.com/tableside/admin-auth/resets"
)

type Server struct {
	env     string
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	auth    *auth.Service
	invites *invites.Service
	resets  *resets.Service
	log     zerolog.Logger
}

func New(cfg config.Config, authService *auth.Service, inviteService *invites.Service, resetService *resets.Service, log zerolog.Logger) *Server {
	s := &Server{
		env:     cfg.GetEnv(),
		mux:     http.NewServeMux(),
		config:  cfg,
		auth:    authService,
		invites: inviteService,
		resets:  resetService,
		log:     log,
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

// Handler returns the full request pipeline: CORS and metrics wrap the
// route mux. Credentials are allowed because the session rides a cookie.
func (s *Server) Handler() http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.config.GetAllowedOrigins(),
		AllowedMethods:   s.config.GetAllowedMethods(),
		AllowedHeaders:   s.config.GetAllowedHeaders(),
		AllowCredentials: true,
		MaxAge:           86400,
	})
	return corsHandler.Handler(metrics.Middleware(s.mux))
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)
		if len(parts) > 1 {
			s.log.Debug().Str("method", parts[0]).Str("path", parts[1]).Msg("route")
		} else {
			s.log.Debug().Str("path", parts[0]).Msg("route")
		}
	}
}
