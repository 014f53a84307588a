/*
Package handler provides the HTTP handlers and routing setup for the signaling server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to the health, stats and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"signalhub/internal/pkg/auth/jwt"
	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/limiter"
	"signalhub/internal/pkg/logx"
	"signalhub/internal/pkg/resp"
)

const (
	ConnectRate  = 0.5
	ConnectBurst = 10

	statsTimeout = 2 * time.Second
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The per-IP connect limiter sweeps idle entries until ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)

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
		AllowedMethods:   []string{"GET", "OPTIONS"},
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

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "signalhub",
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Get("/api/stats", HandleStats(deps))

	r.With(
		connectLimiter.Middleware,
		jwt.SessionExtractorMiddleware(deps.Config.SessionSecret),
	).Get("/ws", HandleWebSocket(wsUpgrader, deps))

	return r
}

// HandleStats reports registry sizes read through the hub loop.
func HandleStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), statsTimeout)
		defer cancel()

		stats, err := deps.Hub.Stats(ctx)
		if err != nil {
			logx.Warn("Stats request failed", "error", err.Error())
			resp.RespondError(w, r, errs.NewError(errs.ErrServerBusy))
			return
		}

		resp.RespondSuccess(w, r, stats)
	}
}
