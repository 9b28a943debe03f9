package signaling

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func (c *fakeConn) types(t *testing.T) []string {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, msg := range c.messages {
		var event struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(msg, &event))
		out = append(out, event.Type)
	}
	return out
}

func (c *fakeConn) raw() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.messages...)
}

func TestHubJoin(t *testing.T) {
	t.Run("joiner gets confirmation, others get the announcement", func(t *testing.T) {
		hub := NewHub()
		alice := &fakeConn{}
		bob := &fakeConn{}

		hub.Join("session-1", "alice", "Alice", alice)
		hub.Join("session-1", "bob", "Bob", bob)

		assert.Equal(t, []string{"connection-established", "user-joined"}, alice.types(t))
		assert.Equal(t, []string{"connection-established"}, bob.types(t))
		assert.ElementsMatch(t, []string{"alice", "bob"}, hub.Participants("session-1"))
	})

	t.Run("duplicate join replaces the connection", func(t *testing.T) {
		hub := NewHub()
		old := &fakeConn{}
		replacement := &fakeConn{}

		hub.Join("session-1", "alice", "Alice", old)
		hub.Join("session-1", "alice", "Alice", replacement)

		assert.True(t, old.closed)
		assert.Len(t, hub.Participants("session-1"), 1)
	})

	t.Run("same participant id in different sessions stays isolated", func(t *testing.T) {
		hub := NewHub()
		inOne := &fakeConn{}
		inTwo := &fakeConn{}
		peerTwo := &fakeConn{}

		hub.Join("session-1", "alice", "Alice", inOne)
		hub.Join("session-2", "alice", "Alice", inTwo)
		hub.Join("session-2", "bob", "Bob", peerTwo)

		assert.False(t, inOne.closed)
		assert.Equal(t, 2, hub.SessionCount())

		// Relays addressed to the colliding id resolve within their own session.
		hub.Relay("session-2", "bob", "alice", []byte(`{"type":"offer","from":"bob","target":"alice"}`))
		assert.Contains(t, inTwo.types(t), "offer")
		assert.NotContains(t, inOne.types(t), "offer")

		// An untargeted relay never crosses the session boundary either.
		hub.Relay("session-2", "bob", "", []byte(`{"type":"ice-candidate","from":"bob"}`))
		assert.Contains(t, inTwo.types(t), "ice-candidate")
		assert.NotContains(t, inOne.types(t), "ice-candidate")
	})
}

func TestHubLeave(t *testing.T) {
	t.Run("announces departure to remaining participants", func(t *testing.T) {
		hub := NewHub()
		alice := &fakeConn{}
		bob := &fakeConn{}
		hub.Join("session-1", "alice", "Alice", alice)
		hub.Join("session-1", "bob", "Bob", bob)

		hub.Leave("session-1", "alice")

		assert.True(t, alice.closed)
		assert.Contains(t, bob.types(t), "user-left")
		assert.Equal(t, []string{"bob"}, hub.Participants("session-1"))
	})

	t.Run("empty session is discarded", func(t *testing.T) {
		hub := NewHub()
		alice := &fakeConn{}
		hub.Join("session-1", "alice", "Alice", alice)

		hub.Leave("session-1", "alice")

		assert.Equal(t, 0, hub.SessionCount())
		assert.Nil(t, hub.Participants("session-1"))
	})

	t.Run("leaving an unknown session is a no-op", func(t *testing.T) {
		hub := NewHub()
		assert.NotPanics(t, func() {
			hub.Leave("nope", "alice")
		})
	})
}

func TestHubRelay(t *testing.T) {
	setup := func() (*Hub, *fakeConn, *fakeConn, *fakeConn) {
		hub := NewHub()
		alice := &fakeConn{}
		bob := &fakeConn{}
		carol := &fakeConn{}
		hub.Join("session-1", "alice", "Alice", alice)
		hub.Join("session-1", "bob", "Bob", bob)
		hub.Join("session-1", "carol", "Carol", carol)
		return hub, alice, bob, carol
	}

	t.Run("targeted payload reaches only the target", func(t *testing.T) {
		hub, alice, bob, carol := setup()
		before := len(carol.raw())

		payload := []byte(`{"type":"offer","from":"alice","target":"bob"}`)
		hub.Relay("session-1", "alice", "bob", payload)

		assert.NotContains(t, alice.types(t), "offer")
		assert.Contains(t, bob.types(t), "offer")
		assert.Len(t, carol.raw(), before)
	})

	t.Run("untargeted payload reaches everyone except the sender", func(t *testing.T) {
		hub, alice, bob, carol := setup()

		payload := []byte(`{"type":"ice-candidate","from":"alice"}`)
		hub.Relay("session-1", "alice", "", payload)

		assert.NotContains(t, alice.types(t), "ice-candidate")
		assert.Contains(t, bob.types(t), "ice-candidate")
		assert.Contains(t, carol.types(t), "ice-candidate")
	})

	t.Run("unknown target delivers to nobody", func(t *testing.T) {
		hub, alice, bob, carol := setup()

		payload := []byte(`{"type":"answer","from":"alice","target":"dave"}`)
		hub.Relay("session-1", "alice", "dave", payload)

		for _, conn := range []*fakeConn{alice, bob, carol} {
			assert.NotContains(t, conn.types(t), "answer")
		}
	})

	t.Run("one failing peer does not block the rest", func(t *testing.T) {
		hub := NewHub()
		alice := &fakeConn{}
		dead := &fakeConn{writeErr: errors.New("broken pipe")}
		carol := &fakeConn{}
		hub.Join("session-1", "alice", "Alice", alice)
		hub.Join("session-1", "dead", "Dead", dead)
		hub.Join("session-1", "carol", "Carol", carol)

		payload := []byte(`{"type":"offer","from":"alice"}`)
		assert.NotPanics(t, func() {
			hub.Relay("session-1", "alice", "", payload)
		})
		assert.Contains(t, carol.types(t), "offer")
	})

	t.Run("relay to unknown session is a no-op", func(t *testing.T) {
		hub := NewHub()
		assert.NotPanics(t, func() {
			hub.Relay("nope", "alice", "", []byte(`{"type":"offer"}`))
		})
	})
}
