/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting, verifying the
session credential, upgrading the HTTP connection to WebSocket, and initiating the client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"rtchat/internal/app/chat"
	"rtchat/internal/pkg/auth/jwt"
	"rtchat/internal/pkg/errs"
	"rtchat/internal/pkg/limiter"
	"rtchat/internal/pkg/logx"
	"rtchat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
// The credential is verified once, before the upgrade; the open connection is not re-verified.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		user, err := deps.Verifier.Verify(jwt.TokenFromRequest(r))
		if err != nil {
			logx.Info("WebSocket connection rejected: invalid credential.", "error", err.Error())
			resp.RespondError(w, r, err)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "user_id", user.ID)
			return
		}

		ctx := r.Context()

		client := chat.NewClient(deps.Manager, conn, user)

		go client.WritePump()

		deps.Manager.Presence.Register(ctx, user, client)

		logx.Info("WebSocket connection established and client registered", "user_id", user.ID)

		client.ReadPump(ctx)
	}
}
