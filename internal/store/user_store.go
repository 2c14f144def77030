// Package store persists user records.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/database"
	"github.com/isdelr/authgate/internal/models"
)

// UserStore defines the persistence operations the auth flows depend on.
type UserStore interface {
	Exists(ctx context.Context, username string) (bool, error)
	Insert(ctx context.Context, user models.User) (string, error)
	FindCredentials(ctx context.Context, username string) (models.Credentials, error)
	Count(ctx context.Context) (int, error)
}

// SQLUserStore is a UserStore backed by database/sql.
type SQLUserStore struct {
	db     *sql.DB
	driver database.Driver

	// SQLite allows a single writer at a time.
	writeMu sync.Mutex
}

var _ UserStore = (*SQLUserStore)(nil)

// NewUserStore creates a new SQLUserStore.
func NewUserStore(db *sql.DB, driver database.Driver) *SQLUserStore {
	return &SQLUserStore{db: db, driver: driver}
}

// Exists reports whether a user with the given username is registered.
func (s *SQLUserStore) Exists(ctx context.Context, username string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		s.driver.Rebind("SELECT 1 FROM users WHERE username = ?"), username).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: lookup user: %w", apperr.ErrStore, err)
	}
	return true, nil
}

// Insert stores a new user and returns its user_uuid. A taken username
// yields apperr.ErrConflict.
func (s *SQLUserStore) Insert(ctx context.Context, user models.User) (string, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if s.driver == database.DriverSQLite {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
	}

	_, err := s.db.ExecContext(ctx,
		s.driver.Rebind("INSERT INTO users (user_uuid, username, password_hash, salt, created_at) VALUES (?, ?, ?, ?, ?)"),
		user.ID, user.Username, user.PasswordHash, user.Salt, user.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return "", fmt.Errorf("user %q: %w", user.Username, apperr.ErrConflict)
		}
		return "", fmt.Errorf("%w: insert user: %w", apperr.ErrStore, err)
	}
	return user.ID, nil
}

// FindCredentials returns the stored hash for username, or apperr.ErrNotFound.
func (s *SQLUserStore) FindCredentials(ctx context.Context, username string) (models.Credentials, error) {
	var creds models.Credentials
	err := s.db.QueryRowContext(ctx,
		s.driver.Rebind("SELECT user_uuid, password_hash FROM users WHERE username = ?"), username,
	).Scan(&creds.UserID, &creds.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Credentials{}, fmt.Errorf("user %q: %w", username, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Credentials{}, fmt.Errorf("%w: find credentials: %w", apperr.ErrStore, err)
	}
	return creds, nil
}

// Count returns the number of registered users.
func (s *SQLUserStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count users: %w", apperr.ErrStore, err)
	}
	return n, nil
}
