package handler

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/yourorg/sity/internal/realtime"
	"github.com/yourorg/sity/internal/security/middleware"
)

// RideFeedHandler upgrades GET /ws/rides to a websocket of ride events.
// ?ride_id= narrows the feed to one ride.
type RideFeedHandler struct {
	hub            *realtime.Hub
	allowedOrigins []string
	logger         *slog.Logger
}

// NewRideFeedHandler creates a new ride feed handler
func NewRideFeedHandler(hub *realtime.Hub, allowedOrigins []string, logger *slog.Logger) *RideFeedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RideFeedHandler{hub: hub, allowedOrigins: allowedOrigins, logger: logger}
}

func (h *RideFeedHandler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// non-browser clients
				return true
			}
			if middleware.OriginAllowed(h.allowedOrigins, origin) {
				return true
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP blocks until the subscriber disconnects
func (h *RideFeedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	h.hub.Serve(conn, r.URL.Query().Get("ride_id"))
}
