package monitoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLimiters struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (f *fakeLimiters) Prune(idle time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, idle)
	return 3
}

func (f *fakeLimiters) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEvents struct {
	mu     sync.Mutex
	cutoff []time.Time
	err    error
}

func (f *fakeEvents) PruneEvents(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = append(f.cutoff, olderThan)
	return 1, f.err
}

func (f *fakeEvents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.cutoff)
}

func TestNewScheduler_RejectsBadSpec(t *testing.T) {
	t.Parallel()

	_, err := NewScheduler(&fakeLimiters{}, nil, Options{LimiterSpec: "every so often"})
	assert.Error(t, err)

	_, err = NewScheduler(nil, &fakeEvents{}, Options{EventSpec: "@sometimes"})
	assert.Error(t, err)
}

func TestScheduler_PruneUsesOptions(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiters{}
	ev := &fakeEvents{}
	s, err := NewScheduler(lim, ev, Options{LimiterIdle: 10 * time.Minute, EventRetention: 48 * time.Hour})
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.Equal(t, 3, s.PruneLimiters())
	assert.Equal(t, []time.Duration{10 * time.Minute}, lim.calls)

	n, err := s.PruneEvents(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []time.Time{now.Add(-48 * time.Hour)}, ev.cutoff)
}

func TestScheduler_Defaults(t *testing.T) {
	t.Parallel()

	s, err := NewScheduler(nil, nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultLimiterIdle, s.opts.LimiterIdle)
	assert.Equal(t, DefaultEventRetention, s.opts.EventRetention)
	assert.Zero(t, s.PruneLimiters())

	n, err := s.PruneEvents(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestScheduler_RunsJobs(t *testing.T) {
	t.Parallel()

	lim := &fakeLimiters{}
	ev := &fakeEvents{err: errors.New("db down")}
	s, err := NewScheduler(lim, ev, Options{LimiterSpec: "@every 1s"})
	require.NoError(t, err)

	s.Run()
	defer s.Stop()

	require.Eventually(t, func() bool { return ev.count() >= 1 }, 2*time.Second, 10*time.Millisecond,
		"events are pruned on start")
	require.Eventually(t, func() bool { return lim.count() >= 1 }, 3*time.Second, 50*time.Millisecond)
}
