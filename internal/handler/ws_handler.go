/*
Package handler provides the HTTP handler function for WebSocket connection upgrading and initialization.

This file contains the HandleWebSocket function, which is responsible for rate limiting,
authenticating the caller, upgrading the HTTP connection to WebSocket, performing the
initial conversation load, and starting the client pumps.
*/
package handler

import (
	"net"
	"net/http"

	"github.com/gorilla/websocket"

	"mindease/internal/app/chat"
	"mindease/internal/pkg/auth/jwt"
	"mindease/internal/pkg/errs"
	"mindease/internal/pkg/limiter"
	"mindease/internal/pkg/logx"
	"mindease/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process WebSocket connection requests.
//
// The session performs its cold conversation load before subscribing to the
// live feed, so no event for the authenticated user can arrive ahead of the
// backlog it belongs to.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}

		if ip == "" {
			ip = "unknown_ip"
		}

		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		// Browsers cannot set an Authorization header on WebSocket upgrades,
		// so the token travels as a query parameter.
		tokenString := r.URL.Query().Get("token")
		if tokenString == "" {
			logx.Warn("WebSocket request rejected: Missing token query parameter")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		payload, err := jwt.ParseToken(tokenString, deps.Config.JWTSecret)
		if err != nil {
			logx.Warn("WebSocket request rejected: Invalid token", "error", err)
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		currentUser, err := deps.Store.GetUser(r.Context(), payload.UserID)
		if err != nil {
			logx.Warn("WebSocket request rejected: Unknown user", "user_id", payload.UserID)
			resp.RespondError(w, r, errs.NewError(errs.ErrUserNotFound))
			return
		}

		logx.Info("Attempting to upgrade connection", "user_id", currentUser.ID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		session := chat.NewSession(currentUser, deps.Store, deps.Hub)
		loadErr := session.Load(r.Context())

		client := chat.NewClient(conn, session, deps.Hub)

		go client.WritePump()

		// INIT_DATA is queued before the event pump starts, so every message
		// reaches the browser exactly once: either inside the snapshot or as
		// a live frame folded afterwards, never both.
		client.SendInit(loadErr)

		go client.EventPump()

		logx.Info("WebSocket connection established and session loaded", "user_id", currentUser.ID)

		client.ReadPump()
	}
}
