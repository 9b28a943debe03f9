package notify

import (
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Conn abstracts the write side of a WebSocket connection so tests can use
// in-memory fakes. Implementations must be safe for concurrent writes.
type Conn interface {
	WriteMessage(data []byte) error
	Close() error
}

// Registry maps a user ID to exactly one live notification channel. A new
// connection for the same user silently replaces the previous one (last
// writer wins: one active dashboard session per user).
//
// Delivery is best-effort. A failed write is treated as proof of a dead
// channel: the entry is pruned and the failure is never surfaced to the
// triggering caller. The registry is role-agnostic; role membership is
// resolved by callers of BroadcastTo.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

type Status struct {
	TotalConnections int      `json:"total_connections"`
	ConnectedUsers   []string `json:"connected_users"`
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]Conn),
	}
}

// Connect records the channel for userID, replacing and closing any prior one.
func (r *Registry) Connect(userID string, conn Conn) {
	r.mu.Lock()
	prev := r.conns[userID]
	r.conns[userID] = conn
	count := len(r.conns)
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
		log.Info().Str("userId", userID).Msg("replaced existing connection")
	}

	log.Info().
		Str("userId", userID).
		Int("totalConnections", count).
		Msg("user connected")
}

// Disconnect removes the entry for userID if present; no-op otherwise.
func (r *Registry) Disconnect(userID string) {
	r.mu.Lock()
	conn, ok := r.conns[userID]
	if ok {
		delete(r.conns, userID)
	}
	count := len(r.conns)
	r.mu.Unlock()

	if !ok {
		return
	}

	conn.Close()
	log.Info().
		Str("userId", userID).
		Int("totalConnections", count).
		Msg("user disconnected")
}

// DisconnectConn removes userID only if it is still bound to conn. This keeps
// a pruning pass from tearing down a replacement connection that arrived
// between the failed write and the removal.
func (r *Registry) DisconnectConn(userID string, conn Conn) {
	r.mu.Lock()
	current, ok := r.conns[userID]
	if ok && current == conn {
		delete(r.conns, userID)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		conn.Close()
		log.Info().Str("userId", userID).Msg("pruned dead connection")
	}
}

// IsConnected reports whether userID currently has a live channel.
func (r *Registry) IsConnected(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[userID]
	return ok
}

// SendTo delivers payload to userID. Returns false when the user is offline
// or the write fails; a failed write disconnects the channel. Callers must
// treat false as "recipient offline", never as a hard error.
func (r *Registry) SendTo(userID string, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("failed to marshal payload")
		return false
	}
	return r.sendRaw(userID, data)
}

func (r *Registry) sendRaw(userID string, data []byte) bool {
	r.mu.RLock()
	conn, ok := r.conns[userID]
	r.mu.RUnlock()

	if !ok {
		return false
	}

	if err := conn.WriteMessage(data); err != nil {
		log.Warn().Err(err).Str("userId", userID).Msg("send failed, disconnecting")
		r.DisconnectConn(userID, conn)
		return false
	}
	return true
}

// BroadcastAll delivers payload to every connected user. Channels that fail
// are pruned after the full pass. Returns the number of successful sends.
func (r *Registry) BroadcastAll(payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast payload")
		return 0
	}

	type entry struct {
		userID string
		conn   Conn
	}

	r.mu.RLock()
	entries := make([]entry, 0, len(r.conns))
	for userID, conn := range r.conns {
		entries = append(entries, entry{userID, conn})
	}
	r.mu.RUnlock()

	sent := 0
	var failed []entry
	for _, e := range entries {
		if err := e.conn.WriteMessage(data); err != nil {
			failed = append(failed, e)
		} else {
			sent++
		}
	}

	for _, e := range failed {
		log.Warn().Str("userId", e.userID).Msg("broadcast send failed, disconnecting")
		r.DisconnectConn(e.userID, e.conn)
	}

	return sent
}

// BroadcastTo delivers payload to the given user IDs only. Used for role
// broadcasts where the caller has already resolved role membership. Users
// without a live channel are skipped. Returns the number of successful sends.
func (r *Registry) BroadcastTo(userIDs []string, payload any) int {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal broadcast payload")
		return 0
	}

	sent := 0
	for _, userID := range userIDs {
		if r.sendRaw(userID, data) {
			sent++
		}
	}
	return sent
}

// Status returns a diagnostic snapshot of the registry.
func (r *Registry) Status() Status {
	r.mu.RLock()
	users := make([]string, 0, len(r.conns))
	for userID := range r.conns {
		users = append(users, userID)
	}
	r.mu.RUnlock()

	sort.Strings(users)
	return Status{
		TotalConnections: len(users),
		ConnectedUsers:   users,
	}
}
