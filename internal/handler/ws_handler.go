/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains HandleWebSocket, which resolves a previous session from the request,
upgrades the connection and hands it to the signaling hub for the rest of its lifetime.
*/
package handler

import (
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"signalhub/internal/app/signal"
	"signalhub/internal/pkg/auth/jwt"
	"signalhub/internal/pkg/limiter"
	"signalhub/internal/pkg/logx"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// Rate limiting and session token extraction happen in middleware before it runs.
func HandleWebSocket(upgrader websocket.Upgrader, deps *AppDeps) http.HandlerFunc {
	eventRate := rate.Limit(deps.Config.EventRate)
	eventBurst := deps.Config.EventBurst

	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if claims := jwt.SessionFromContext(r.Context()); claims != nil {
			sessionID = claims.SessionID
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := signal.NewClient(deps.Hub, conn, sessionID, eventRate, eventBurst)

		logx.Info("WebSocket connection established",
			"socket_id", client.Handle(),
			"resumed", sessionID != "",
			"ip", logx.AnonymizeIP(limiter.ClientIP(r)),
		)

		if err := client.Serve(); err != nil && !errors.Is(err, signal.ErrHubStopped) {
			logx.Error(err, "WebSocket client ended with error", "socket_id", client.Handle())
		}
	}
}
