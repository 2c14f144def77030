package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/models"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	tr, err := NewTracker(context.Background(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestTracker_RecordAndGet(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(t)

	now := time.Now().UTC().Truncate(time.Second)
	s := models.Session{
		ID:         "jti-1",
		UserID:     "user-1",
		Username:   "alice01",
		RemoteAddr: "192.0.2.1",
		LoggedInAt: now,
		ExpiresAt:  now.Add(time.Hour),
	}
	require.NoError(t, tr.Record(s))

	got, err := tr.Get("jti-1")
	require.NoError(t, err)
	assert.Equal(t, s.Username, got.Username)
	assert.True(t, s.LoggedInAt.Equal(got.LoggedInAt))
}

func TestTracker_Missing(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(t)

	_, err := tr.Get("nope")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTracker_ExpiredEntryIsNotFound(t *testing.T) {
	t.Parallel()
	tr := newTestTracker(t)

	now := time.Now()
	require.NoError(t, tr.Record(models.Session{ID: "jti-2", Username: "bob", ExpiresAt: now.Add(time.Minute)}))

	tr.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err := tr.Get("jti-2")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
