package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/models"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	res, err := f.auth.Login(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)

	claims, err := f.tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, claims.UserID)
	assert.Equal(t, "alice01", claims.Username)

	sess, err := f.sessions.Get(claims.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice01", sess.Username)
	assert.Equal(t, "192.0.2.1", sess.RemoteAddr)
	assert.Equal(t, id, sess.UserID)
}

func TestAuthService_RegisterStoresSaltedHash(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "")
	require.NoError(t, err)

	var hash, salt string
	require.NoError(t, f.db.QueryRowContext(ctx,
		"SELECT password_hash, salt FROM users WHERE username = ?", "alice01").Scan(&hash, &salt))
	assert.NotEqual(t, "Passw0rd!", hash)
	assert.Contains(t, hash, salt)
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "")
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, "alice01", "Other0ne!", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAuthService_RegisterDuplicateWaitsForDelay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	f.auth.duplicateDelay = 30 * time.Millisecond

	_, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "")
	require.NoError(t, err)

	start := time.Now()
	_, err = f.auth.Register(ctx, "alice01", "Passw0rd!", "")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	f.auth.duplicateDelay = time.Hour
	_, err = f.auth.Register(cancelled, "alice01", "Passw0rd!", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAuthService_RegisterInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, "ab", "weak", "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	var verr *apperr.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Violations)

	n, err := f.users.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "")
	require.NoError(t, err)

	_, wrongPassword := f.auth.Login(ctx, "alice01", "Wr0ngPass!", "")
	_, unknownUser := f.auth.Login(ctx, "ghost01", "Passw0rd!", "")
	_, invalidInput := f.auth.Login(ctx, "ab", "weak", "")

	for _, err := range []error{wrongPassword, unknownUser, invalidInput} {
		assert.ErrorIs(t, err, apperr.ErrAuthentication)
		assert.Equal(t, apperr.ErrAuthentication.Error(), err.Error())
	}
}

func TestAuthService_LoginCorruptHashIsInternal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.users.Insert(ctx, models.User{Username: "broken01", PasswordHash: "garbage", Salt: "garbage"})
	require.NoError(t, err)

	_, err = f.auth.Login(ctx, "broken01", "Passw0rd!", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrIntegrity)
	assert.NotErrorIs(t, err, apperr.ErrAuthentication)

	events, err := f.events.GetRecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventLoginError, events[0].Type)
	assert.Equal(t, models.LevelError, events[0].Level)
}

func TestAuthService_LoginUnknownUserStoresNoUsername(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Login(ctx, "ghost_404", "Passw0rd!", "192.0.2.1")
	require.ErrorIs(t, err, apperr.ErrAuthentication)

	events, err := f.events.GetRecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventLoginFailure, events[0].Type)
	assert.Nil(t, events[0].Username)

	for _, m := range f.hub.all() {
		assert.NotContains(t, string(m.data), "ghost_404")
	}
}

// racingStore behaves like a store that lost a registration race: the
// username looked free but the insert hit the unique constraint.
type racingStore struct {
	inserts int
}

func (s *racingStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (s *racingStore) Insert(_ context.Context, u models.User) (string, error) {
	s.inserts++
	return "", fmt.Errorf("user %q: %w", u.Username, apperr.ErrConflict)
}

func (s *racingStore) FindCredentials(context.Context, string) (models.Credentials, error) {
	return models.Credentials{}, apperr.ErrNotFound
}

func (s *racingStore) Count(context.Context) (int, error) { return 0, nil }

func TestAuthService_RegisterConflictOnInsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	users := &racingStore{}
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	svc := NewAuthService(users, hasher, f.tokens, nil, f.events, 30*time.Millisecond)

	start := time.Now()
	_, err = svc.Register(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	assert.ErrorIs(t, err, apperr.ErrConflict)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	assert.Equal(t, 1, users.inserts)

	events, err := f.events.GetRecentEvents(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventRegisterDuplicate, events[0].Type)
}

func TestAuthService_RecordsAuditEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auth.Register(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	require.NoError(t, err)
	_, _ = f.auth.Register(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	_, _ = f.auth.Register(ctx, "ab", "weak", "192.0.2.1")
	_, err = f.auth.Login(ctx, "alice01", "Passw0rd!", "192.0.2.1")
	require.NoError(t, err)
	_, _ = f.auth.Login(ctx, "alice01", "Wr0ngPass!", "192.0.2.1")
	_, _ = f.auth.Login(ctx, "x", "", "192.0.2.1")

	events, err := f.events.GetRecentEvents(ctx, MaxEventLimit)
	require.NoError(t, err)

	seen := map[string]int{}
	for _, e := range events {
		seen[e.Type]++
		require.NotNil(t, e.RemoteAddr)
		assert.Equal(t, "192.0.2.1", *e.RemoteAddr)
		if e.Type == models.EventLoginInvalid {
			assert.Nil(t, e.Username, "rejected login input is not stored")
		}
	}
	assert.Equal(t, map[string]int{
		models.EventRegisterSuccess:   1,
		models.EventRegisterDuplicate: 1,
		models.EventRegisterInvalid:   1,
		models.EventLoginSuccess:      1,
		models.EventLoginFailure:      1,
		models.EventLoginInvalid:      1,
	}, seen)

	assert.Len(t, f.hub.all(), len(events))
}
