package services

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/database"
	"github.com/isdelr/authgate/internal/sessions"
	"github.com/isdelr/authgate/internal/store"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type published struct {
	topic string
	data  []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(topic string, data []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, data: data})
}

func (p *fakePublisher) all() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type fixture struct {
	db       *sql.DB
	users    *store.SQLUserStore
	events   *EventService
	sessions *sessions.Tracker
	tokens   *auth.TokenManager
	hub      *fakePublisher
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, database.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db, database.DriverSQLite))

	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	tracker, err := sessions.NewTracker(ctx, time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })

	f := &fixture{
		db:       db,
		users:    store.NewUserStore(db, database.DriverSQLite),
		sessions: tracker,
		tokens:   auth.NewTokenManager(testSecret, time.Hour),
		hub:      &fakePublisher{},
	}
	f.events = NewEventService(db, database.DriverSQLite, f.hub)
	f.auth = NewAuthService(f.users, hasher, f.tokens, f.sessions, f.events, 0)
	return f
}
