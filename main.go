package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"zerodb/auth"
	"zerodb/config"
	"zerodb/database"
	"zerodb/handlers"
	"zerodb/lock"
	"zerodb/quota"
	"zerodb/registry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	// Create context with timeout for initial connections
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, pingers, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("Failed to open project store")
	}
	defer closeStore()

	locker, closeLocker, err := newLocker(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer closeLocker()
	if p, ok := locker.(handlers.Pinger); ok {
		pingers = append(pingers, p)
	}

	limits, err := quota.DefaultLimits().Merge(cfg.TierLimits)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid TIER_LIMITS")
	}
	guard := quota.NewGuard(limits, cfg.SupportContact)

	keyring := auth.NewKeyring()
	if err := keyring.ParseKeyList(cfg.APIKeys); err != nil {
		log.Fatal().Err(err).Msg("Invalid API_KEYS")
	}
	if cfg.APIKeysFile != "" {
		if err := keyring.LoadKeyringFile(cfg.APIKeysFile); err != nil {
			log.Fatal().Err(err).Msg("Failed to load API_KEYS_FILE")
		}
	}
	if keyring.Len() == 0 {
		log.Warn().Msg("No API keys configured; every public request will be rejected")
	}

	reg := registry.New(store, guard, locker)

	router := handlers.NewRouter(handlers.RouterConfig{
		Registry:      reg,
		Authenticator: keyring,
		AdminKey:      cfg.AdminAPIKey,
		Pingers:       pingers,
		Logger:        log.With().Str("component", "http").Logger(),
	})

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChannel := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("store", cfg.StoreDriver).Msg("Server starting")
		errChannel <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChannel:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Server stopped")
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Error shutting down the server")
		} else {
			log.Info().Msg("HttpServer gracefully shut down")
		}
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

func openStore(ctx context.Context, cfg *config.Config) (registry.Store, []handlers.Pinger, func(), error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, []handlers.Pinger{db}, db.Close, nil
	case config.DriverSQLite:
		store, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, nil, err
		}
		return store, []handlers.Pinger{store}, store.Close, nil
	default:
		store := database.NewMemoryStore()
		log.Warn().Msg("Using in-memory project store; data is lost on restart")
		return store, []handlers.Pinger{store}, func() {}, nil
	}
}

func newLocker(ctx context.Context, cfg *config.Config) (lock.Locker, func(), error) {
	if cfg.RedisURL == "" {
		return lock.NewMemoryLocker(), func() {}, nil
	}

	client, err := lock.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Dur("ttl", cfg.LockTTL).Msg("Using Redis owner locks")

	closeClient := func() {
		if err := client.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	return lock.NewRedisLocker(client, cfg.LockTTL), closeClient, nil
}
