package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/isdelr/authgate/internal/api"
	ratelimit "github.com/isdelr/authgate/internal/api/middleware"
	"github.com/isdelr/authgate/internal/auth"
	"github.com/isdelr/authgate/internal/config"
	"github.com/isdelr/authgate/internal/database"
	"github.com/isdelr/authgate/internal/httpserver"
	"github.com/isdelr/authgate/internal/logger"
	"github.com/isdelr/authgate/internal/monitoring"
	"github.com/isdelr/authgate/internal/services"
	"github.com/isdelr/authgate/internal/sessions"
	"github.com/isdelr/authgate/internal/store"
	"github.com/isdelr/authgate/internal/webclient"
	"github.com/isdelr/authgate/internal/websocket"
)

func serveCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the auth server",
		Flags: config.ServerFlags(cfg),
		Action: func(appCtx *cli.Context) error {
			logger.Init(cfg.LogLevel, !cfg.IsProduction())
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServer(appCtx.Context, cfg)
		},
	}
}

func webCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the web front and proxy /api to the auth server",
		Flags: config.WebFlags(cfg),
		Action: func(appCtx *cli.Context) error {
			logger.Init(cfg.LogLevel, !cfg.IsProduction())
			if err := cfg.ValidateWeb(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			backend, err := url.Parse(cfg.BackendURL)
			if err != nil {
				return fmt.Errorf("backend url: %w", err)
			}
			handler, err := webclient.NewHandler(webclient.Options{BackendURL: backend, StaticDir: cfg.StaticDir})
			if err != nil {
				return err
			}

			log.Info().Int("port", cfg.WebPort).Str("backend", backend.String()).Msg("Web front starting")
			return httpserver.Serve(appCtx.Context, fmt.Sprintf(":%d", cfg.WebPort), handler)
		},
	}
}

func migrateCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Flags: config.MigrateFlags(cfg),
		Action: func(appCtx *cli.Context) error {
			logger.Init(cfg.LogLevel, !cfg.IsProduction())
			db, driver, err := openDatabase(appCtx.Context, cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return database.Migrate(appCtx.Context, db, driver)
		},
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, database.Driver, error) {
	driver, err := database.ParseDriver(cfg.DatabaseDriver)
	if err != nil {
		return nil, "", err
	}
	db, err := database.New(ctx, driver, cfg.DatabaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("initialize database: %w", err)
	}
	return db, driver, nil
}

func runServer(ctx context.Context, cfg *config.Config) error {
	secret, generated, err := cfg.SigningSecret()
	if err != nil {
		return err
	}
	if generated {
		log.Warn().Msg("JWT_SECRET not set; using an ephemeral secret, tokens will not survive a restart")
	}

	// Set up database
	db, driver, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, driver); err != nil {
		return fmt.Errorf("apply database migrations: %w", err)
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run(ctx)

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		return err
	}
	tokens := auth.NewTokenManager(secret, cfg.TokenTTL)

	tracker, err := sessions.NewTracker(ctx, cfg.TokenTTL)
	if err != nil {
		return err
	}
	defer tracker.Close()

	// Set up services
	users := store.NewUserStore(db, driver)
	eventService := services.NewEventService(db, driver, hub)
	authService := services.NewAuthService(users, hasher, tokens, tracker, eventService, cfg.DuplicateDelay)

	limiters := api.NewLimiters(api.LimitSettings{
		Global:   cfg.RateLimitGlobal,
		Login:    cfg.RateLimitLogin,
		Register: cfg.RateLimitRegister,
	})

	// Set up and run the background scheduler
	scheduler, err := monitoring.NewScheduler(limiters, eventService, monitoring.Options{EventRetention: cfg.EventRetention})
	if err != nil {
		return err
	}
	scheduler.Run()
	defer scheduler.Stop()

	proxies, err := ratelimit.ParseTrustedProxies(cfg.Proxies())
	if err != nil {
		return err
	}
	admins := cfg.Admins()
	if len(admins) == 0 {
		log.Warn().Msg("ADMIN_USERS not set; the audit event feed is closed to everyone")
	}

	// Set up router
	router := api.NewRouter(api.Dependencies{
		Auth:             authService,
		Events:           eventService,
		Sessions:         tracker,
		Tokens:           tokens,
		Hub:              hub,
		DB:               db,
		Limiters:         limiters,
		AllowedOrigins:   cfg.AllowedOrigins(),
		Admins:           admins,
		TrustedProxies:   proxies,
		ExposeViolations: !cfg.IsProduction(),
	})

	if n, err := users.Count(ctx); err == nil {
		log.Info().Int("users", n).Str("driver", string(driver)).Msg("Database ready")
	}
	log.Info().Int("port", cfg.Port).Str("env", cfg.Env).Msg("Auth server starting")
	return httpserver.Serve(ctx, fmt.Sprintf(":%d", cfg.Port), router)
}
