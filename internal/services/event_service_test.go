package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdelr/authgate/internal/models"
	"github.com/isdelr/authgate/internal/websocket"
)

func TestEventService_CreateAndList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		f.events.now = func() time.Time { return at }
		user := fmt.Sprintf("user%02d", i)
		require.NoError(t, f.events.CreateEvent(ctx, models.EventLoginSuccess, models.LevelInfo, "User logged in", &user, nil))
	}

	events, err := f.events.GetRecentEvents(ctx, 3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "user04", *events[0].Username)
	assert.Equal(t, "user02", *events[2].Username)
	assert.Nil(t, events[0].RemoteAddr)
	assert.True(t, events[0].CreatedAt.Equal(base.Add(4*time.Minute)))

	all, err := f.events.GetRecentEvents(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestEventService_PublishesToFeed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	user := "alice01"
	require.NoError(t, f.events.CreateEvent(ctx, models.EventRegisterSuccess, models.LevelInfo, "User registered", &user, nil))

	msgs := f.hub.all()
	require.Len(t, msgs, 1)
	assert.Equal(t, websocket.TopicRegister, msgs[0].topic)

	var msg websocket.Message
	require.NoError(t, json.Unmarshal(msgs[0].data, &msg))
	assert.Equal(t, websocket.ActionEvent, msg.Action)
}

func TestEventService_Prune(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	now := time.Now().UTC()
	for _, age := range []time.Duration{40 * 24 * time.Hour, 31 * 24 * time.Hour, time.Hour} {
		at := now.Add(-age)
		f.events.now = func() time.Time { return at }
		require.NoError(t, f.events.CreateEvent(ctx, models.EventLoginFailure, models.LevelWarn, "Login failed", nil, nil))
	}

	n, err := f.events.PruneEvents(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	left, err := f.events.GetRecentEvents(ctx, MaxEventLimit)
	require.NoError(t, err)
	assert.Len(t, left, 1)
}
