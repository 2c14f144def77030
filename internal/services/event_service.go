package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/database"
	"github.com/isdelr/authgate/internal/models"
	"github.com/isdelr/authgate/internal/websocket"
)

// Limits for GetRecentEvents.
const (
	DefaultEventLimit = 20
	MaxEventLimit     = 100
)

// EventServiceProvider defines the interface for event services.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, username, remoteAddr *string) error
	GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error)
	PruneEvents(ctx context.Context, olderThan time.Time) (int64, error)
}

// Publisher fans messages out to live subscribers.
type Publisher interface {
	Publish(topic string, data []byte)
}

// EventService provides business logic for the audit log.
type EventService struct {
	db     *sql.DB
	driver database.Driver
	hub    Publisher
	now    func() time.Time
}

var _ EventServiceProvider = (*EventService)(nil)

// NewEventService creates a new EventService. hub may be nil.
func NewEventService(db *sql.DB, driver database.Driver, hub Publisher) *EventService {
	return &EventService{db: db, driver: driver, hub: hub, now: time.Now}
}

// CreateEvent logs a new event to the database and publishes it to the live feed.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, username, remoteAddr *string) error {
	event := models.Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		Level:      level,
		Message:    message,
		Username:   username,
		RemoteAddr: remoteAddr,
		CreatedAt:  s.now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		s.driver.Rebind("INSERT INTO events (id, type, level, message, username, remote_addr, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"),
		event.ID, event.Type, event.Level, event.Message, event.Username, event.RemoteAddr, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: insert event: %w", apperr.ErrStore, err)
	}

	if s.hub != nil {
		s.hub.Publish(websocket.EventTopic(event.Type), websocket.NewEventMessage(event))
	}
	return nil
}

// GetRecentEvents retrieves the most recent events, newest first.
func (s *EventService) GetRecentEvents(ctx context.Context, limit int) ([]models.Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	if limit > MaxEventLimit {
		limit = MaxEventLimit
	}

	rows, err := s.db.QueryContext(ctx,
		s.driver.Rebind("SELECT id, type, level, message, username, remote_addr, created_at FROM events ORDER BY created_at DESC LIMIT ?"),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query events: %w", apperr.ErrStore, err)
	}
	defer rows.Close()

	events := make([]models.Event, 0, limit)
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.Username, &event.RemoteAddr, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan event: %w", apperr.ErrStore, err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate events: %w", apperr.ErrStore, err)
	}
	return events, nil
}

// PruneEvents deletes events created before olderThan and returns how many were removed.
func (s *EventService) PruneEvents(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.driver.Rebind("DELETE FROM events WHERE created_at < ?"), olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: prune events: %w", apperr.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: prune events: %w", apperr.ErrStore, err)
	}
	if n > 0 {
		log.Info().Int64("deleted", n).Time("older_than", olderThan).Msg("Pruned audit events")
	}
	return n, nil
}
