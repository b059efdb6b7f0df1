/*
Package handler provides the HTTP handlers and routing setup for the RTChat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
IP-based rate limiting and bearer authentication before delegating requests to specific
handlers (API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/limiter"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/resp"
)

const (
	AuthRate     = 0.2
	AuthBurst    = 5
	ConnectRate  = 0.5
	ConnectBurst = 10
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It initializes IP-based rate limiters, configures CORS, and applies global and per-route middleware.
// The returned stop function releases the limiters' background sweepers.
func Router(deps *AppDeps) (http.Handler, func()) {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	health := func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":  "ok",
			"service": "RTChat Server",
			"online":  deps.Manager.Presence.Count(),
		}
		resp.RespondSuccess(w, r, data)
	}
	r.Get("/health", health)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", health)

		api.Group(func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/auth/register", HandleRegister(deps))
			auth.Post("/auth/login", HandleLogin(deps))

			// Paths used by existing web clients.
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireAuth(deps.Verifier))

			private.Get("/users", HandleListUsers(deps))
			private.Get("/users/online", HandleListOnlineUsers(deps))
			private.Get("/users/me", HandleMe(deps))

			private.Get("/groups", HandleListGroups(deps))
			private.Post("/groups", HandleCreateGroup(deps))
			private.Get("/groups/{groupId}", HandleGetGroup(deps))
			private.Post("/groups/{groupId}/join", HandleJoinGroup(deps))

			private.Get("/messages/direct/{peerId}", HandleDirectHistory(deps))
			private.Get("/messages/group/{groupId}", HandleGroupHistory(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	stop := func() {
		authLimiter.Stop()
		connectLimiter.Stop()
	}
	return r, stop
}
