package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/isdelr/authgate/internal/apperr"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = time.Hour

var (
	// ErrTokenMissing is returned when no bearer token was presented.
	ErrTokenMissing = errors.New("token missing")
	// ErrTokenMalformed is returned when the presented value is not shaped like a token.
	ErrTokenMalformed = errors.New("token malformed")
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 session tokens with a process-wide secret.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenManager creates a TokenManager. A non-positive ttl falls back to DefaultTokenTTL.
func NewTokenManager(secret []byte, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenManager{secret: key, ttl: ttl, now: time.Now}
}

// TTL returns the lifetime given to issued tokens.
func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue creates a signed token for the given user.
func (m *TokenManager) Issue(userID, username string) (string, *Claims, error) {
	now := m.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses a token string and checks its signature and expiry.
// Any failure is reported as apperr.ErrAuthorization.
func (m *TokenManager) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)

	token, err := parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Join(apperr.ErrAuthorization, err)
	}
	if !token.Valid {
		return nil, apperr.ErrAuthorization
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: token has no user id", apperr.ErrAuthorization)
	}
	return claims, nil
}

// ExtractBearer pulls the token out of an Authorization header value.
// It returns ErrTokenMissing when the header is empty and ErrTokenMalformed
// when the scheme or the three-segment shape is wrong.
func ExtractBearer(header string) (string, error) {
	if header == "" {
		return "", ErrTokenMissing
	}
	groups := bearerTokenRE.FindStringSubmatch(header)
	if len(groups) == 0 {
		return "", ErrTokenMalformed
	}
	tok := groups[1]

	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		return "", ErrTokenMalformed
	}
	for _, p := range parts {
		if p == "" {
			return "", ErrTokenMalformed
		}
	}
	return tok, nil
}
