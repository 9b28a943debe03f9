package handler

import (
	"testing"

	"github.com/carelink/telehealth-go/internal/notify"
)

type memConn struct {
	messages [][]byte
}

func (c *memConn) WriteMessage(data []byte) error {
	c.messages = append(c.messages, data)
	return nil
}

func (c *memConn) Close() error { return nil }

func newRegistryWithUsers(t *testing.T, userIDs ...string) *notify.Registry {
	t.Helper()
	registry := notify.NewRegistry()
	for _, id := range userIDs {
		registry.Connect(id, &memConn{})
	}
	return registry
}
