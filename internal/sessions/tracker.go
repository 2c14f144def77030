// Package sessions keeps informational metadata about issued tokens. It is
// never consulted when deciding whether a token is valid.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/models"
)

// Tracker records session metadata keyed by token id (jti).
type Tracker struct {
	cache *bigcache.BigCache
	now   func() time.Time
}

// NewTracker creates a Tracker whose entries live for ttl.
func NewTracker(ctx context.Context, ttl time.Duration) (*Tracker, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = time.Minute
	if ttl < cfg.CleanWindow {
		cfg.CleanWindow = ttl
	}
	cfg.Verbose = false

	cache, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new session cache: %w", err)
	}
	return &Tracker{cache: cache, now: time.Now}, nil
}

// Record stores s under its ID.
func (t *Tracker) Record(s models.Session) error {
	buf, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := t.cache.Set(s.ID, buf); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// Get returns the session for id, or apperr.ErrNotFound once it expired or
// was evicted.
func (t *Tracker) Get(id string) (models.Session, error) {
	buf, err := t.cache.Get(id)
	if errors.Is(err, bigcache.ErrEntryNotFound) {
		return models.Session{}, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Session{}, fmt.Errorf("load session: %w", err)
	}

	var s models.Session
	if err := json.Unmarshal(buf, &s); err != nil {
		return models.Session{}, fmt.Errorf("%w: decode session: %v", apperr.ErrIntegrity, err)
	}
	if !s.ExpiresAt.IsZero() && !t.now().Before(s.ExpiresAt) {
		_ = t.cache.Delete(id)
		return models.Session{}, fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return s, nil
}

// Close releases the cache.
func (t *Tracker) Close() error {
	return t.cache.Close()
}
