package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Defaults for maintenance jobs.
const (
	DefaultLimiterSpec    = "@every 5m"
	DefaultEventSpec      = "@daily"
	DefaultLimiterIdle    = time.Hour
	DefaultEventRetention = 30 * 24 * time.Hour
)

// LimiterPruner forgets idle rate-limit clients.
type LimiterPruner interface {
	Prune(idle time.Duration) int
}

// EventPruner deletes old audit events.
type EventPruner interface {
	PruneEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Options tune the maintenance schedule. Zero values select the defaults.
type Options struct {
	LimiterSpec    string
	EventSpec      string
	LimiterIdle    time.Duration
	EventRetention time.Duration
}

func (o *Options) applyDefaults() {
	if o.LimiterSpec == "" {
		o.LimiterSpec = DefaultLimiterSpec
	}
	if o.EventSpec == "" {
		o.EventSpec = DefaultEventSpec
	}
	if o.LimiterIdle <= 0 {
		o.LimiterIdle = DefaultLimiterIdle
	}
	if o.EventRetention <= 0 {
		o.EventRetention = DefaultEventRetention
	}
}

// Scheduler runs periodic maintenance jobs.
type Scheduler struct {
	cron     *cron.Cron
	limiters LimiterPruner
	events   EventPruner
	opts     Options
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. Either pruner may be nil.
func NewScheduler(limiters LimiterPruner, events EventPruner, opts Options) (*Scheduler, error) {
	opts.applyDefaults()

	logger := cronLogger{l: log.With().Str("component", "scheduler").Logger()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		limiters: limiters,
		events:   events,
		opts:     opts,
		now:      time.Now,
	}

	if limiters != nil {
		if _, err := s.cron.AddFunc(opts.LimiterSpec, func() { s.PruneLimiters() }); err != nil {
			return nil, fmt.Errorf("schedule limiter pruning %q: %w", opts.LimiterSpec, err)
		}
	}
	if events != nil {
		if _, err := s.cron.AddFunc(opts.EventSpec, s.pruneEventsJob); err != nil {
			return nil, fmt.Errorf("schedule event pruning %q: %w", opts.EventSpec, err)
		}
	}
	return s, nil
}

// Run starts the scheduler in the background. Old events are pruned once
// immediately.
func (s *Scheduler) Run() {
	log.Info().Int("jobs", len(s.cron.Entries())).Msg("Starting background scheduler")
	if s.events != nil {
		go s.pruneEventsJob()
	}
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped background scheduler")
}

// PruneLimiters drops rate-limit state for clients idle past the threshold.
func (s *Scheduler) PruneLimiters() int {
	if s.limiters == nil {
		return 0
	}
	n := s.limiters.Prune(s.opts.LimiterIdle)
	if n > 0 {
		log.Debug().Int("pruned", n).Msg("Pruned idle rate-limit clients")
	}
	return n
}

// PruneEvents deletes audit events older than the retention window.
func (s *Scheduler) PruneEvents(ctx context.Context) (int64, error) {
	if s.events == nil {
		return 0, nil
	}
	return s.events.PruneEvents(ctx, s.now().Add(-s.opts.EventRetention))
}

func (s *Scheduler) pruneEventsJob() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := s.PruneEvents(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler: failed to prune audit events")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
