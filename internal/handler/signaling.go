package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/audit"
	"github.com/carelink/telehealth-go/internal/config"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/signaling"
)

// SignalingHandler serves the per-session video signaling WebSocket. Each
// connection belongs to exactly one session token; the hub relays offers,
// answers, and ICE candidates between the session's participants.
type SignalingHandler struct {
	hub      *signaling.Hub
	upgrader websocket.Upgrader
}

func NewSignalingHandler(hub *signaling.Hub, allowedOrigin string) *SignalingHandler {
	return &SignalingHandler{
		hub:      hub,
		upgrader: newUpgrader(allowedOrigin),
	}
}

// GET /ws/video/{sessionToken}
func (h *SignalingHandler) Connect(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		return
	}

	sessionToken := chi.URLParam(r, "sessionToken")
	if sessionToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "sessionToken is required"})
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).
			Str("session", sessionToken).
			Str("userId", user.ID).
			Msg("signaling upgrade failed")
		return
	}

	conn := newWSConn(ws)
	ip := r.Header.Get("X-Forwarded-For")
	h.readLoop(sessionToken, user.ID, ip, ws, conn)
}

// readLoop processes the signaling protocol for one connection. The first
// join message registers the participant; until it arrives, relay messages
// are dropped. The loop exits on read error, which covers both client close
// and network failure.
func (h *SignalingHandler) readLoop(sessionToken, userID, ip string, ws *websocket.Conn, conn *wsConn) {
	participantID := ""

	defer func() {
		if participantID != "" {
			h.hub.Leave(sessionToken, participantID)
			audit.Log(context.Background(), audit.Event{
				Type:   audit.EventSignalingLeave,
				UserID: userID,
				IP:     ip,
				Details: map[string]interface{}{
					"session":       sessionToken,
					"participantId": participantID,
				},
			})
		}
		ws.Close()
	}()

	ws.SetReadLimit(config.WSMaxMessageBytes)

	for {
		_, message, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg map[string]any
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().
				Str("session", sessionToken).
				Msg("ignoring malformed signaling message")
			continue
		}

		msgType, _ := msg["type"].(string)
		switch msgType {
		case "join":
			if participantID != "" {
				continue
			}
			participantID = stringField(msg, "userId")
			if participantID == "" {
				participantID = userID
			}
			name := stringField(msg, "userName")
			h.hub.Join(sessionToken, participantID, name, conn)
			audit.Log(context.Background(), audit.Event{
				Type:   audit.EventSignalingJoin,
				UserID: userID,
				IP:     ip,
				Details: map[string]interface{}{
					"session":       sessionToken,
					"participantId": participantID,
				},
			})

		case "offer", "answer", "ice-candidate":
			if participantID == "" {
				log.Debug().
					Str("session", sessionToken).
					Str("type", msgType).
					Msg("signaling message before join, dropped")
				continue
			}
			msg["from"] = participantID
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			h.hub.Relay(sessionToken, participantID, stringField(msg, "target"), payload)

		case "leave":
			return

		default:
			log.Debug().
				Str("session", sessionToken).
				Str("type", msgType).
				Msg("ignoring unknown signaling message type")
		}
	}
}

func stringField(msg map[string]any, key string) string {
	s, _ := msg[key].(string)
	return s
}
