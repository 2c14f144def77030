package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Environment names.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// MinSecretLength is the shortest signing secret accepted in production.
const MinSecretLength = 32

// Config holds the application configuration.
type Config struct {
	Port     int
	Env      string
	LogLevel string

	DatabaseDriver string
	DatabaseURL    string

	JWTSecret      string
	TokenTTL       time.Duration
	BcryptCost     int
	DuplicateDelay time.Duration

	// CORSOrigin is a comma separated list of allowed browser origins.
	CORSOrigin string
	// AdminUsers is a comma separated list of usernames that may read the
	// audit event feed.
	AdminUsers string
	// TrustedProxies is a comma separated list of CIDRs or IPs whose
	// forwarding headers are believed.
	TrustedProxies string

	RateLimitGlobal   int
	RateLimitLogin    int
	RateLimitRegister int
	EventRetention    time.Duration

	WebPort    int
	BackendURL string
	StaticDir  string
}

// Default returns the built-in settings. Environment variables and command
// line flags are applied on top of it by the flag set of each command.
func Default() *Config {
	return &Config{
		Port:     8080,
		Env:      EnvDevelopment,
		LogLevel: "info",

		DatabaseDriver: "sqlite",
		DatabaseURL:    "./authgate.db",

		TokenTTL:       time.Hour,
		BcryptCost:     10,
		DuplicateDelay: time.Second,

		CORSOrigin:        "http://localhost:8081",
		RateLimitGlobal:   100,
		RateLimitLogin:    10,
		RateLimitRegister: 5,
		EventRetention:    30 * 24 * time.Hour,

		WebPort:    8081,
		BackendURL: "http://localhost:8080",
		StaticDir:  "./public",
	}
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Env), EnvProduction)
}

// AllowedOrigins splits CORSOrigin into its entries.
func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigin)
}

// Admins splits AdminUsers into its entries.
func (c *Config) Admins() []string {
	return splitList(c.AdminUsers)
}

// Proxies splits TrustedProxies into its entries.
func (c *Config) Proxies() []string {
	return splitList(c.TrustedProxies)
}

// Validate checks the settings used by the auth server.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	switch strings.ToLower(strings.TrimSpace(c.Env)) {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		errs = append(errs, fmt.Errorf("unknown APP_ENV %q", c.Env))
	}
	if c.IsProduction() && len(c.JWTSecret) < MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes in production", MinSecretLength))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token ttl must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost %d outside [%d, %d]", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.DuplicateDelay < 0 {
		errs = append(errs, errors.New("duplicate delay must not be negative"))
	}
	if c.RateLimitGlobal < 0 || c.RateLimitLogin < 0 || c.RateLimitRegister < 0 {
		errs = append(errs, errors.New("rate limits must not be negative"))
	}
	if c.EventRetention <= 0 {
		errs = append(errs, errors.New("event retention must be positive"))
	}
	if c.DatabaseURL == "" {
		errs = append(errs, errors.New("database url is required"))
	}
	for _, p := range c.Proxies() {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errs = append(errs, fmt.Errorf("trusted proxy %q is not an IP or CIDR", p))
		}
	}

	return errors.Join(errs...)
}

// ValidateWeb checks the settings used by the web front.
func (c *Config) ValidateWeb() error {
	var errs []error
	if c.WebPort <= 0 || c.WebPort > 65535 {
		errs = append(errs, fmt.Errorf("web port %d out of range", c.WebPort))
	}
	if u, err := url.Parse(c.BackendURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("backend url %q must be absolute", c.BackendURL))
	}
	if c.StaticDir == "" {
		errs = append(errs, errors.New("static dir is required"))
	}
	return errors.Join(errs...)
}

// SigningSecret returns the token signing secret. Outside production a
// missing secret is replaced by a random one; generated reports that case.
func (c *Config) SigningSecret() (secret []byte, generated bool, err error) {
	if c.JWTSecret != "" {
		return []byte(c.JWTSecret), false, nil
	}
	if c.IsProduction() {
		return nil, false, errors.New("JWT_SECRET is required in production")
	}
	buf := make([]byte, MinSecretLength)
	if _, err := rand.Read(buf); err != nil {
		return nil, false, fmt.Errorf("generate secret: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), true, nil
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
