package config

import (
	"github.com/urfave/cli/v2"
)

// ServerFlags binds the auth server settings to command line flags.
func ServerFlags(c *Config) []cli.Flag {
	return append(commonFlags(c),
		&cli.IntFlag{Name: "port", Usage: "HTTP port for the auth server", EnvVars: []string{"PORT"}, Value: c.Port, Destination: &c.Port},
		&cli.StringFlag{Name: "jwt-secret", Usage: "HMAC secret for signing tokens; prefer the environment variable", EnvVars: []string{"JWT_SECRET"}, Value: c.JWTSecret, Destination: &c.JWTSecret},
		&cli.DurationFlag{Name: "token-ttl", Usage: "Lifetime of issued tokens", EnvVars: []string{"TOKEN_TTL"}, Value: c.TokenTTL, Destination: &c.TokenTTL},
		&cli.IntFlag{Name: "bcrypt-cost", Usage: "bcrypt work factor", EnvVars: []string{"BCRYPT_COST"}, Value: c.BcryptCost, Destination: &c.BcryptCost},
		&cli.DurationFlag{Name: "duplicate-delay", Usage: "Delay before reporting a duplicate registration", EnvVars: []string{"DUPLICATE_DELAY"}, Value: c.DuplicateDelay, Destination: &c.DuplicateDelay},
		&cli.StringFlag{Name: "cors-origin", Usage: "Comma separated list of allowed browser origins", EnvVars: []string{"CORS_ORIGIN"}, Value: c.CORSOrigin, Destination: &c.CORSOrigin},
		&cli.StringFlag{Name: "admin-users", Usage: "Comma separated usernames allowed to read audit events", EnvVars: []string{"ADMIN_USERS"}, Value: c.AdminUsers, Destination: &c.AdminUsers},
		&cli.StringFlag{Name: "trusted-proxies", Usage: "Comma separated CIDRs or IPs whose X-Forwarded-For is honored", EnvVars: []string{"TRUSTED_PROXIES"}, Value: c.TrustedProxies, Destination: &c.TrustedProxies},
		&cli.IntFlag{Name: "rate-limit-global", Usage: "Requests per client per 15 minutes (0 disables)", EnvVars: []string{"RATE_LIMIT_GLOBAL"}, Value: c.RateLimitGlobal, Destination: &c.RateLimitGlobal},
		&cli.IntFlag{Name: "rate-limit-login", Usage: "Login attempts per client per 15 minutes (0 disables)", EnvVars: []string{"RATE_LIMIT_LOGIN"}, Value: c.RateLimitLogin, Destination: &c.RateLimitLogin},
		&cli.IntFlag{Name: "rate-limit-register", Usage: "Registrations per client per hour (0 disables)", EnvVars: []string{"RATE_LIMIT_REGISTER"}, Value: c.RateLimitRegister, Destination: &c.RateLimitRegister},
		&cli.DurationFlag{Name: "event-retention", Usage: "How long audit events are kept", EnvVars: []string{"EVENT_RETENTION"}, Value: c.EventRetention, Destination: &c.EventRetention},
	)
}

// MigrateFlags binds the settings needed to run migrations.
func MigrateFlags(c *Config) []cli.Flag {
	return commonFlags(c)
}

// WebFlags binds the web front settings to command line flags.
func WebFlags(c *Config) []cli.Flag {
	return []cli.Flag{
		envFlag(c),
		logLevelFlag(c),
		&cli.IntFlag{Name: "port", Usage: "HTTP port for the web front", EnvVars: []string{"WEB_PORT"}, Value: c.WebPort, Destination: &c.WebPort},
		&cli.StringFlag{Name: "backend-url", Usage: "Base URL of the auth server", EnvVars: []string{"BACKEND_URL"}, Value: c.BackendURL, Destination: &c.BackendURL},
		&cli.StringFlag{Name: "static-dir", Usage: "Directory with the built front end", EnvVars: []string{"STATIC_DIR"}, Value: c.StaticDir, Destination: &c.StaticDir},
	}
}

func commonFlags(c *Config) []cli.Flag {
	return []cli.Flag{
		envFlag(c),
		logLevelFlag(c),
		&cli.StringFlag{Name: "database-driver", Usage: "sqlite or postgres", EnvVars: []string{"DATABASE_DRIVER"}, Value: c.DatabaseDriver, Destination: &c.DatabaseDriver},
		&cli.StringFlag{Name: "database-url", Aliases: []string{"db"}, Usage: "SQLite path or PostgreSQL DSN", EnvVars: []string{"DATABASE_URL"}, Value: c.DatabaseURL, Destination: &c.DatabaseURL},
	}
}

func envFlag(c *Config) cli.Flag {
	return &cli.StringFlag{Name: "env", Usage: "development, test or production", EnvVars: []string{"APP_ENV"}, Value: c.Env, Destination: &c.Env}
}

func logLevelFlag(c *Config) cli.Flag {
	return &cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error", EnvVars: []string{"LOG_LEVEL"}, Value: c.LogLevel, Destination: &c.LogLevel}
}
