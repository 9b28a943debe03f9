package notify

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeConn struct {
	mu       sync.Mutex
	messages [][]byte
	writeErr error
	closed   bool
}

func (c *fakeConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return c.writeErr
	}
	c.messages = append(c.messages, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConn) last() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return c.messages[len(c.messages)-1]
}

func TestRegistryConnect(t *testing.T) {
	t.Run("user has at most one connection", func(t *testing.T) {
		r := NewRegistry()
		first := &fakeConn{}
		second := &fakeConn{}

		r.Connect("user-1", first)
		r.Connect("user-1", second)

		assert.Equal(t, 1, r.Status().TotalConnections)
		assert.True(t, first.isClosed(), "replaced connection should be closed")
		assert.False(t, second.isClosed())
	})

	t.Run("sends go to the latest connection", func(t *testing.T) {
		r := NewRegistry()
		stale := &fakeConn{}
		fresh := &fakeConn{}

		r.Connect("user-1", stale)
		r.Connect("user-1", fresh)

		delivered := r.SendTo("user-1", map[string]string{"type": "test"})

		assert.True(t, delivered)
		assert.Equal(t, 0, stale.count())
		assert.Equal(t, 1, fresh.count())
	})
}

func TestRegistryDisconnect(t *testing.T) {
	t.Run("removes the connection", func(t *testing.T) {
		r := NewRegistry()
		conn := &fakeConn{}
		r.Connect("user-1", conn)

		r.Disconnect("user-1")

		assert.False(t, r.IsConnected("user-1"))
		assert.True(t, conn.isClosed())
	})

	t.Run("unknown user is a no-op", func(t *testing.T) {
		r := NewRegistry()
		r.Disconnect("nobody")
		assert.Equal(t, 0, r.Status().TotalConnections)
	})

	t.Run("DisconnectConn spares a replacement connection", func(t *testing.T) {
		r := NewRegistry()
		old := &fakeConn{}
		replacement := &fakeConn{}
		r.Connect("user-1", old)
		r.Connect("user-1", replacement)

		r.DisconnectConn("user-1", old)

		assert.True(t, r.IsConnected("user-1"))
		assert.False(t, replacement.isClosed())
	})
}

func TestRegistrySendTo(t *testing.T) {
	t.Run("returns false for offline user", func(t *testing.T) {
		r := NewRegistry()
		assert.False(t, r.SendTo("offline", map[string]string{"type": "test"}))
	})

	t.Run("failed write prunes the connection and returns false", func(t *testing.T) {
		r := NewRegistry()
		conn := &fakeConn{writeErr: errors.New("broken pipe")}
		r.Connect("user-1", conn)

		assert.False(t, r.SendTo("user-1", map[string]string{"type": "test"}))
		assert.False(t, r.IsConnected("user-1"))
		assert.True(t, conn.isClosed())
	})

	t.Run("payload is marshalled as JSON", func(t *testing.T) {
		r := NewRegistry()
		conn := &fakeConn{}
		r.Connect("user-1", conn)

		r.SendTo("user-1", map[string]string{"type": "note_added"})

		var got map[string]string
		assert.NoError(t, json.Unmarshal(conn.last(), &got))
		assert.Equal(t, "note_added", got["type"])
	})
}

func TestRegistryBroadcastAll(t *testing.T) {
	t.Run("reaches every connected user", func(t *testing.T) {
		r := NewRegistry()
		conns := map[string]*fakeConn{
			"a": {}, "b": {}, "c": {},
		}
		for id, conn := range conns {
			r.Connect(id, conn)
		}

		sent := r.BroadcastAll(map[string]string{"type": "heartbeat"})

		assert.Equal(t, 3, sent)
		for id, conn := range conns {
			assert.Equal(t, 1, conn.count(), "user %s should receive the broadcast", id)
		}
	})

	t.Run("prunes failing connections and counts only successes", func(t *testing.T) {
		r := NewRegistry()
		ok1 := &fakeConn{}
		ok2 := &fakeConn{}
		dead := &fakeConn{writeErr: errors.New("broken pipe")}
		r.Connect("ok-1", ok1)
		r.Connect("ok-2", ok2)
		r.Connect("dead", dead)

		sent := r.BroadcastAll(map[string]string{"type": "heartbeat"})

		assert.Equal(t, 2, sent)
		assert.False(t, r.IsConnected("dead"))
		assert.True(t, r.IsConnected("ok-1"))
		assert.True(t, r.IsConnected("ok-2"))
	})
}

func TestRegistryBroadcastTo(t *testing.T) {
	t.Run("skips offline users", func(t *testing.T) {
		r := NewRegistry()
		online := &fakeConn{}
		r.Connect("doc-1", online)

		sent := r.BroadcastTo([]string{"doc-1", "doc-2", "doc-3"}, map[string]string{"type": "note_added"})

		assert.Equal(t, 1, sent)
		assert.Equal(t, 1, online.count())
	})

	t.Run("ignores users outside the target list", func(t *testing.T) {
		r := NewRegistry()
		target := &fakeConn{}
		other := &fakeConn{}
		r.Connect("doc-1", target)
		r.Connect("provider-1", other)

		r.BroadcastTo([]string{"doc-1"}, map[string]string{"type": "note_added"})

		assert.Equal(t, 1, target.count())
		assert.Equal(t, 0, other.count())
	})
}

func TestRegistryStatus(t *testing.T) {
	t.Run("reports sorted connected users", func(t *testing.T) {
		r := NewRegistry()
		r.Connect("charlie", &fakeConn{})
		r.Connect("alice", &fakeConn{})
		r.Connect("bob", &fakeConn{})

		status := r.Status()

		assert.Equal(t, 3, status.TotalConnections)
		assert.Equal(t, []string{"alice", "bob", "charlie"}, status.ConnectedUsers)
	})
}
