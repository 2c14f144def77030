package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/isdelr/authgate/internal/apperr"
	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/logger"
	"github.com/isdelr/authgate/internal/models"
	"github.com/isdelr/authgate/internal/store"
	"github.com/isdelr/authgate/internal/validation"
)

// DefaultDuplicateDelay is how long a duplicate registration is held before
// the conflict is reported.
const DefaultDuplicateDelay = time.Second

// AuthServiceProvider defines the interface for registration and login.
type AuthServiceProvider interface {
	Register(ctx context.Context, username, password, remoteAddr string) (string, error)
	Login(ctx context.Context, username, password, remoteAddr string) (LoginResult, error)
}

// SessionRecorder keeps metadata about issued tokens.
type SessionRecorder interface {
	Record(s models.Session) error
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token   string
	Session models.Session
}

// AuthService provides business logic for credential registration and login.
type AuthService struct {
	users          store.UserStore
	hasher         *auth.Hasher
	tokens         *auth.TokenManager
	sessions       SessionRecorder
	events         EventServiceProvider
	duplicateDelay time.Duration
}

var _ AuthServiceProvider = (*AuthService)(nil)

// NewAuthService creates a new AuthService. sessions and events may be nil.
func NewAuthService(
	users store.UserStore,
	hasher *auth.Hasher,
	tokens *auth.TokenManager,
	sessions SessionRecorder,
	events EventServiceProvider,
	duplicateDelay time.Duration,
) *AuthService {
	if duplicateDelay < 0 {
		duplicateDelay = 0
	}
	return &AuthService{
		users:          users,
		hasher:         hasher,
		tokens:         tokens,
		sessions:       sessions,
		events:         events,
		duplicateDelay: duplicateDelay,
	}
}

// Register creates a new user and returns its id.
//
// Errors: a *apperr.ValidationError for rejected input, apperr.ErrConflict
// for a taken username (reported after the duplicate delay), anything else
// is an internal failure.
func (s *AuthService) Register(ctx context.Context, username, password, remoteAddr string) (string, error) {
	log := logger.FromContext(ctx)

	if err := apperr.NewValidationError(validation.ValidateCredentials(username, password)); err != nil {
		log.Info().Str("username", username).Msg("Registration rejected by validation")
		s.recordEvent(ctx, models.EventRegisterInvalid, models.LevelInfo, "Registration rejected by validation", username, remoteAddr)
		return "", err
	}

	exists, err := s.users.Exists(ctx, username)
	if err != nil {
		return "", fmt.Errorf("check username: %w", err)
	}
	if exists {
		return "", s.duplicate(ctx, username, remoteAddr)
	}

	hash, salt, err := s.hasher.Hash(password)
	if err != nil {
		if errors.Is(err, apperr.ErrValidation) {
			s.recordEvent(ctx, models.EventRegisterInvalid, models.LevelInfo, "Registration rejected by validation", username, remoteAddr)
			return "", err
		}
		return "", fmt.Errorf("hash password: %w", err)
	}

	id, err := s.users.Insert(ctx, models.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		Salt:         salt,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return "", s.duplicate(ctx, username, remoteAddr)
		}
		return "", fmt.Errorf("insert user: %w", err)
	}

	log.Info().Str("user_uuid", id).Str("username", username).Msg("User registered")
	s.recordEvent(ctx, models.EventRegisterSuccess, models.LevelInfo, "User registered", username, remoteAddr)
	return id, nil
}

// Login checks credentials and issues a bearer token.
//
// Every credential failure, whatever its cause, is reported as
// apperr.ErrAuthentication so callers cannot tell an unknown username from a
// wrong password.
func (s *AuthService) Login(ctx context.Context, username, password, remoteAddr string) (LoginResult, error) {
	log := logger.FromContext(ctx)

	if violations := validation.ValidateCredentials(username, password); len(violations) > 0 {
		s.hasher.CompareDummy(password)
		log.Info().Msg("Login rejected by validation")
		s.recordEvent(ctx, models.EventLoginInvalid, models.LevelInfo, "Login rejected by validation", "", remoteAddr)
		return LoginResult{}, apperr.ErrAuthentication
	}

	creds, err := s.users.FindCredentials(ctx, username)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.hasher.CompareDummy(password)
			// The typed value is not a known username and may be a misplaced password.
			log.Warn().Msg("Login attempt for unknown user")
			s.recordEvent(ctx, models.EventLoginFailure, models.LevelWarn, "Login failed", "", remoteAddr)
			return LoginResult{}, apperr.ErrAuthentication
		}
		return LoginResult{}, fmt.Errorf("find credentials: %w", err)
	}

	ok, err := s.hasher.Verify(password, creds.PasswordHash)
	if err != nil {
		log.Error().Err(err).Str("user_uuid", creds.UserID).Msg("Stored password hash is unusable")
		s.recordEvent(ctx, models.EventLoginError, models.LevelError, "Stored credentials unusable", username, remoteAddr)
		return LoginResult{}, fmt.Errorf("verify credentials for %s: %w", creds.UserID, err)
	}
	if !ok {
		log.Warn().Str("username", username).Msg("Login attempt with wrong password")
		s.recordEvent(ctx, models.EventLoginFailure, models.LevelWarn, "Login failed", username, remoteAddr)
		return LoginResult{}, apperr.ErrAuthentication
	}

	token, claims, err := s.tokens.Issue(creds.UserID, username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	session := models.Session{
		ID:         claims.ID,
		UserID:     creds.UserID,
		Username:   username,
		RemoteAddr: remoteAddr,
		LoggedInAt: claims.IssuedAt.Time,
		ExpiresAt:  claims.ExpiresAt.Time,
	}
	if s.sessions != nil {
		if err := s.sessions.Record(session); err != nil {
			log.Error().Err(err).Str("session_id", session.ID).Msg("Failed to record session metadata")
		}
	}

	log.Info().Str("user_uuid", creds.UserID).Str("session_id", session.ID).Msg("User logged in")
	s.recordEvent(ctx, models.EventLoginSuccess, models.LevelInfo, "User logged in", username, remoteAddr)
	return LoginResult{Token: token, Session: session}, nil
}

func (s *AuthService) duplicate(ctx context.Context, username, remoteAddr string) error {
	log := logger.FromContext(ctx)
	log.Warn().Str("username", username).Msg("Registration attempt for existing username")
	s.recordEvent(ctx, models.EventRegisterDuplicate, models.LevelWarn, "Registration for existing username", username, remoteAddr)

	if err := sleep(ctx, s.duplicateDelay); err != nil {
		return err
	}
	return fmt.Errorf("user %q: %w", username, apperr.ErrConflict)
}

// recordEvent writes to the audit log. Empty username or remoteAddr are
// stored as absent. Failures are logged and never returned.
func (s *AuthService) recordEvent(ctx context.Context, eventType, level, message, username, remoteAddr string) {
	if s.events == nil {
		return
	}
	if err := s.events.CreateEvent(ctx, eventType, level, message, optional(username), optional(remoteAddr)); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record audit event")
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
