// Package app wires configuration, storage, key resolution and the HTTP
// transport into a runnable token refresh service.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/tokenrefresh/internal/refresh/http"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/service"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store/memory"
	redisstore "github.com/aussiebroadwan/tokenrefresh/internal/refresh/store/redis"
	"github.com/aussiebroadwan/tokenrefresh/internal/refresh/store/sqlite"
	"github.com/aussiebroadwan/tokenrefresh/pkg/didx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/slogx"
	"github.com/aussiebroadwan/tokenrefresh/pkg/vault"
)

// BuildVersion is overridden at build time via -ldflags.
var BuildVersion = "v0.1.0"

// Application is the token refresh service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	store    store.AccessTokenStore
	vault    vault.Vault
	didCache *didx.CachingResolver
	key      KeyInfo

	service      *service.Service
	housekeeping *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds every dependency. Nothing is served until Run.
func New(cfg Config) (*Application, error) {
	return NewWithLogger(cfg, slogx.New(slogx.Config{
		Service: "tokenrefresh",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	}))
}

// NewWithLogger is New with a caller supplied logger.
func NewWithLogger(cfg Config, logger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{cfg: cfg, logger: logger}
	ctx := context.Background()

	if err := app.initStore(ctx); err != nil {
		return nil, err
	}

	if err := app.initKeys(ctx); err != nil {
		_ = app.close()
		return nil, err
	}

	if err := app.initServices(); err != nil {
		_ = app.close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Service exposes the core so the control plane side (and the CLI) can
// issue tokens in-process.
func (app *Application) Service() *service.Service {
	return app.service
}

// Handler is the HTTP handler Run serves.
func (app *Application) Handler() http.Handler {
	return app.router
}

// SigningKey describes the key tokens are signed with.
func (app *Application) SigningKey() KeyInfo {
	return app.key
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("token refresh service starting",
		"port", app.cfg.Port,
		"version", BuildVersion,
		"store", app.cfg.StoreDriver,
		"issuer", app.key.DID,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeeping.Stop()
			_ = app.close()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down token refresh service...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.close(); err != nil {
		return err
	}

	app.logger.Info("token refresh service stopped")
	return nil
}

// Close releases resources without touching the HTTP server. For callers
// that built the application but never ran it.
func (app *Application) Close() error {
	return app.close()
}

func (app *Application) close() error {
	if app.didCache != nil {
		app.didCache.Close()
	}
	return app.closeStore()
}

func (app *Application) closeStore() error {
	if err := app.store.Close(); err != nil {
		app.logger.Error("error closing token store", "error", err)
		return err
	}
	return nil
}

// initStore opens the configured token store and brings its schema up to date.
func (app *Application) initStore(ctx context.Context) error {
	switch app.cfg.StoreDriver {
	case StoreMemory:
		app.store = memory.NewStore()
		app.logger.Warn("using in-memory token store; lineages are lost on restart")

	case StoreSQLite:
		dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
		db, err := sqlite.NewStore(dsn)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		if err := db.ApplyMigrations(); err != nil {
			_ = db.Close()
			return fmt.Errorf("failed to apply database migrations: %w", err)
		}
		app.store = db
		app.logger.Info("database migrations applied successfully", "file", app.cfg.DatabaseFile)

	case StoreRedis:
		rs, err := redisstore.Open(ctx, app.cfg.RedisURL, app.cfg.RedisPrefix)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.store = rs
		app.logger.Info("redis token store connected")

	default:
		return fmt.Errorf("unknown store driver %q", app.cfg.StoreDriver)
	}

	return nil
}

// initKeys opens the vault and settles the identity tokens are issued under.
// Without PARTICIPANT_DID the issuer is the did:key of the signing key, which
// therefore has to resolve at startup.
func (app *Application) initKeys(ctx context.Context) error {
	v, err := OpenVault(ctx, app.cfg, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}
	app.vault = v

	app.key = KeyInfo{
		Alias: app.cfg.SigningKeyAlias,
		DID:   app.cfg.ParticipantDID,
		KeyID: app.cfg.PublicKeyID,
	}
	if app.key.DID == "" {
		info, err := DescribeSigningKey(ctx, v, app.cfg.SigningKeyAlias)
		if err != nil {
			return fmt.Errorf("PARTICIPANT_DID is unset and the signing key gives no did:key: %w", err)
		}
		app.key.DID = info.DID
		if app.key.KeyID == "" {
			app.key.KeyID = info.KeyID
		}
	}

	registry := didx.NewRegistry(didx.NewWebMethod(app.cfg.DIDWebTimeout, app.cfg.DIDWebInsecure))
	app.didCache, err = didx.NewCachingResolver(registry, app.cfg.DIDCacheTTL)
	if err != nil {
		return err
	}

	app.logger.Info("signing identity configured",
		"alias", app.key.Alias,
		"issuer", app.key.DID,
		"kid", app.key.KeyID,
	)
	return nil
}

func (app *Application) initServices() error {
	svc, err := service.New(service.Options{
		Store:           app.store,
		PublicKeys:      didx.NewKeyResolver(app.didCache),
		PrivateKeys:     vault.NewKeyResolver(app.vault),
		Logger:          app.logger,
		SigningKeyAlias: app.cfg.SigningKeyAlias,
		Issuer:          app.key.DID,
		KeyID:           app.key.KeyID,
		Tolerance:       app.cfg.Tolerance,
		AccessTTL:       app.cfg.AccessTTL,
		RefreshTTL:      app.cfg.RefreshTTL,
	})
	if err != nil {
		return err
	}
	app.service = svc

	app.housekeeping = service.NewHousekeepingService(
		app.store,
		nil,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(app.service, app.store, nil, BuildVersion, app.logger)
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
