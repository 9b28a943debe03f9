// Package signaling relays WebRTC signaling messages (offers, answers, ICE
// candidates) between participants of a video session. Sessions are keyed by
// an opaque session token and are fully independent of the general
// notification registry: a user may hold distinct participant identities
// across concurrent sessions, and signaling traffic must not compete with
// notification traffic.
package signaling

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn abstracts the write side of a signaling WebSocket connection.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

type participant struct {
	id   string
	name string
	conn Conn
}

// Hub is the per-session-token participant registry. Sessions are created
// lazily on first join and discarded when the last participant leaves.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[string]*participant
}

func NewHub() *Hub {
	return &Hub{
		sessions: make(map[string]map[string]*participant),
	}
}

type memberEvent struct {
	Type     string `json:"type"`
	Session  string `json:"session,omitempty"`
	UserID   string `json:"userId"`
	UserName string `json:"userName,omitempty"`
}

// Join registers a participant under the session token, confirms the
// connection to the joiner, and announces the join to everyone else.
func (h *Hub) Join(sessionToken, participantID, name string, conn Conn) {
	h.mu.Lock()
	session, ok := h.sessions[sessionToken]
	if !ok {
		session = make(map[string]*participant)
		h.sessions[sessionToken] = session
	}
	if prev, exists := session[participantID]; exists {
		prev.conn.Close()
	}
	session[participantID] = &participant{id: participantID, name: name, conn: conn}
	others := otherParticipants(session, participantID)
	count := len(session)
	h.mu.Unlock()

	log.Info().
		Str("session", sessionToken).
		Str("participantId", participantID).
		Int("participants", count).
		Msg("participant joined signaling session")

	h.send(sessionToken, conn, memberEvent{
		Type:    "connection-established",
		Session: sessionToken,
		UserID:  participantID,
	})

	joined := memberEvent{Type: "user-joined", UserID: participantID, UserName: name}
	for _, p := range others {
		h.send(sessionToken, p.conn, joined)
	}
}

// Leave removes the participant and announces the departure. The session is
// discarded entirely once empty. Leaving an unknown session is a no-op.
func (h *Hub) Leave(sessionToken, participantID string) {
	h.mu.Lock()
	session, ok := h.sessions[sessionToken]
	if !ok {
		h.mu.Unlock()
		return
	}

	p, ok := session[participantID]
	if !ok {
		h.mu.Unlock()
		return
	}

	delete(session, participantID)
	if len(session) == 0 {
		delete(h.sessions, sessionToken)
	}
	remaining := otherParticipants(session, participantID)
	h.mu.Unlock()

	p.conn.Close()

	log.Info().
		Str("session", sessionToken).
		Str("participantId", participantID).
		Int("participants", len(remaining)).
		Msg("participant left signaling session")

	left := memberEvent{Type: "user-left", UserID: participantID, UserName: p.name}
	for _, other := range remaining {
		h.send(sessionToken, other.conn, left)
	}
}

// Relay forwards a raw signaling payload within a session. When target names
// a participant present in the session the payload goes only to that peer;
// otherwise it goes to every participant except the sender. Per-recipient
// delivery failures are swallowed so one bad peer cannot abort the rest.
func (h *Hub) Relay(sessionToken, fromID, target string, payload []byte) {
	h.mu.Lock()
	session, ok := h.sessions[sessionToken]
	if !ok {
		h.mu.Unlock()
		log.Debug().
			Str("session", sessionToken).
			Msg("relay for unknown signaling session")
		return
	}

	var recipients []*participant
	if target != "" {
		if p, exists := session[target]; exists {
			recipients = []*participant{p}
		}
	} else {
		recipients = otherParticipants(session, fromID)
	}
	h.mu.Unlock()

	for _, p := range recipients {
		if err := p.conn.WriteMessage(payload); err != nil {
			log.Warn().Err(err).
				Str("session", sessionToken).
				Str("participantId", p.id).
				Msg("signaling relay failed")
		}
	}
}

// Participants returns the participant IDs currently in a session.
func (h *Hub) Participants(sessionToken string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.sessions[sessionToken]
	if !ok {
		return nil
	}

	ids := make([]string, 0, len(session))
	for id := range session {
		ids = append(ids, id)
	}
	return ids
}

// SessionCount returns the number of live signaling sessions.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) send(sessionToken string, conn Conn, event memberEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal signaling event")
		return
	}
	if err := conn.WriteMessage(data); err != nil {
		log.Warn().Err(err).
			Str("session", sessionToken).
			Str("event", event.Type).
			Msg("failed to send signaling event")
	}
}

func otherParticipants(session map[string]*participant, exceptID string) []*participant {
	others := make([]*participant, 0, len(session))
	for id, p := range session {
		if id != exceptID {
			others = append(others, p)
		}
	}
	return others
}
