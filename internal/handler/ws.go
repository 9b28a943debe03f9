package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/audit"
	"github.com/carelink/telehealth-go/internal/config"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/notify"
)

// WSHandler serves the general notification WebSocket endpoint and the
// synchronous connectivity diagnostics built on top of it.
type WSHandler struct {
	registry *notify.Registry
	upgrader websocket.Upgrader
}

func NewWSHandler(registry *notify.Registry, allowedOrigin string) *WSHandler {
	return &WSHandler{
		registry: registry,
		upgrader: newUpgrader(allowedOrigin),
	}
}

// GET /ws/notifications
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("userId", user.ID).Msg("websocket upgrade failed")
		return
	}

	conn := newWSConn(ws)
	h.registry.Connect(user.ID, conn)
	audit.LogFromRequest(r, audit.Event{Type: audit.EventWSConnect, UserID: user.ID})

	conn.WriteMessage(mustMarshal(notify.ConnectedEvent{
		Type:      notify.EventConnected,
		Timestamp: time.Now(),
		UserID:    user.ID,
	}))

	h.readLoop(user.ID, ws, conn)
}

// readLoop handles the small inbound control protocol. A malformed message is
// logged and skipped; it must never terminate the connection loop.
func (h *WSHandler) readLoop(userID string, ws *websocket.Conn, conn *wsConn) {
	defer func() {
		h.registry.DisconnectConn(userID, conn)
		ws.Close()
		audit.Log(context.Background(), audit.Event{Type: audit.EventWSDisconnect, UserID: userID})
	}()

	ws.SetReadLimit(config.WSMaxMessageBytes)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var ctrl struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &ctrl); err != nil {
			log.Debug().Str("userId", userID).Msg("ignoring malformed websocket message")
			continue
		}

		switch ctrl.Type {
		case "ping":
			conn.WriteMessage(mustMarshal(map[string]string{"type": notify.EventPong}))
		case "heartbeat_response":
			log.Debug().Str("userId", userID).Msg("heartbeat response received")
		default:
			log.Debug().
				Str("userId", userID).
				Str("type", ctrl.Type).
				Msg("ignoring unknown websocket message type")
		}
	}
}

// GET /v1/ws/status
func (h *WSHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.registry.Status())
}

// POST /v1/ws/test
//
// Sends a test message back to the caller's own channel so clients can
// diagnose their connectivity.
func (h *WSHandler) TestMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	connected := h.registry.IsConnected(user.ID)
	delivered := h.registry.SendTo(user.ID, notify.TestMessageEvent{
		Type:      notify.EventTestMessage,
		Timestamp: time.Now(),
		Message:   "connectivity check",
	})

	writeJSON(w, http.StatusOK, map[string]bool{
		"connected": connected,
		"delivered": delivered,
	})
}

func mustMarshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal websocket payload")
		return []byte(`{}`)
	}
	return data
}
