package service

import (
	"log/slog"

	"github.com/Frida144/site-segnorito/internal/repository"
)

// Carts hands out one CartStore per visitor session. All stores share the
// backend and the listeners; only the key differs.
type Carts struct {
	kv        repository.KeyValueStore
	baseKey   string
	logger    *slog.Logger
	listeners []Listener
}

// NewCarts creates a session-keyed cart factory.
func NewCarts(kv repository.KeyValueStore, baseKey string, logger *slog.Logger, listeners ...Listener) *Carts {
	return &Carts{
		kv:        kv,
		baseKey:   baseKey,
		logger:    logger,
		listeners: listeners,
	}
}

// ForSession returns the store of the given session. An empty session id
// maps to the bare base key.
func (c *Carts) ForSession(sessionID string, extra ...Listener) *CartStore {
	listeners := append(append([]Listener(nil), c.listeners...), extra...)
	return NewCartStore(c.kv, SessionKey(c.baseKey, sessionID), c.logger, listeners...)
}

// SessionKey builds the storage key of a session's cart.
func SessionKey(baseKey, sessionID string) string {
	if sessionID == "" {
		return baseKey
	}
	return baseKey + ":" + sessionID
}
