// Command oauth2-server runs a standalone OAuth 2.0 authorization server on
// top of the engine, backed by the in-memory or the Redis model.
//
// Configuration is read from the YAML file named by -config (or
// OAUTH2_CONFIG_FILE), a .env file and the environment.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	oauth "github.com/giantswarm/oauth2-engine"
	"github.com/giantswarm/oauth2-engine/instrumentation"
	"github.com/giantswarm/oauth2-engine/internal/config"
	"github.com/giantswarm/oauth2-engine/security"
	"github.com/giantswarm/oauth2-engine/server"
	"github.com/giantswarm/oauth2-engine/storage"
	"github.com/giantswarm/oauth2-engine/storage/memory"
	"github.com/giantswarm/oauth2-engine/storage/redis"
	"github.com/giantswarm/oauth2-engine/transport/httpoauth"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "oauth2-server: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst, err := instrumentation.New(instrumentation.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: serviceVersion(cfg),
	})
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := inst.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down instrumentation", "error", err)
		}
	}()

	auditor := security.NewAuditor(logger, cfg.Audit)
	auditor.SetInstrumentation(inst)

	store, closeStore, err := openStore(cfg, logger, inst)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := seed(ctx, store, cfg); err != nil {
		return err
	}

	srv, err := server.New(server.Options{
		Model:           store,
		Config:          cfg.OAuth.Server(),
		Logger:          logger,
		Auditor:         auditor,
		Instrumentation: inst,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var limiter *security.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = security.NewRateLimiter(security.RateLimiterConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			Logger:            logger,
		})
		defer limiter.Stop()
	}

	h, err := httpoauth.New(httpoauth.Config{
		Server:          srv,
		Logger:          logger,
		Auditor:         auditor,
		Instrumentation: inst,
		RateLimiter:     limiter,
		Proxy:           security.ProxyConfig{Trust: cfg.Proxy.Trust, TrustedCount: cfg.Proxy.TrustedCount},
		HTTPS:           cfg.HTTPS,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           newRouter(h),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting OAuth server",
			"addr", cfg.ListenAddr,
			"storage", cfg.Storage.Type,
			"encryption", cfg.Storage.Type == config.StorageRedis && cfg.Storage.EncryptionKey != "",
			"rate_limiting", limiter != nil,
			"version", version)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down OAuth server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newRouter(h *httpoauth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	h.Register(r)

	r.With(security.RequestIDMiddleware, h.Authenticate("")).Get("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		token, _ := httpoauth.TokenFromContext(r.Context())
		info := map[string]any{
			"sub":   storage.UserID(token.User),
			"scope": token.Scope,
		}
		if token.Client != nil {
			info["client_id"] = token.Client.ID
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(info)
	})
	return r
}

// model is what the server needs from a store: every engine capability
// plus seeding.
type model interface {
	oauth.ClientGetter
	oauth.AccessTokenGetter
	RegisterClient(ctx context.Context, client storage.ClientRecord, secret string) error
	RegisterUser(ctx context.Context, username, password string) error
}

func openStore(cfg *config.Config, logger *slog.Logger, inst *instrumentation.Instrumentation) (model, func(), error) {
	switch cfg.Storage.Type {
	case config.StorageRedis:
		var enc *security.Encryptor
		if cfg.Storage.EncryptionKey != "" {
			key, err := security.KeyFromBase64(cfg.Storage.EncryptionKey)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid encryption key: %w", err)
			}
			if enc, err = security.NewEncryptor(key); err != nil {
				return nil, nil, err
			}
		} else {
			logger.Warn("SECURITY WARNING: records are stored unencrypted",
				"fix", "set "+config.EnvEncryptionKey+" to a base64 encoded 32 byte key")
		}

		rc := cfg.Storage.Redis
		store, err := redis.New(redis.Config{
			URL:             rc.URL,
			Address:         rc.Address,
			Password:        rc.Password,
			DB:              rc.DB,
			KeyPrefix:       rc.KeyPrefix,
			DefaultScope:    cfg.Storage.DefaultScope,
			Encryptor:       enc,
			Logger:          logger,
			Instrumentation: inst,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	default:
		store := memory.New(memory.Config{
			CleanupInterval: cfg.Storage.Cleanup,
			DefaultScope:    cfg.Storage.DefaultScope,
			Logger:          logger,
			Instrumentation: inst,
		})
		return store, store.Stop, nil
	}
}

func seed(ctx context.Context, store model, cfg *config.Config) error {
	for _, c := range cfg.Clients {
		if err := store.RegisterClient(ctx, c.Record(), c.Secret); err != nil {
			return fmt.Errorf("failed to register client %q: %w", c.ID, err)
		}
	}
	for _, u := range cfg.Users {
		if err := store.RegisterUser(ctx, u.Username, u.Password); err != nil {
			return fmt.Errorf("failed to register user %q: %w", u.Username, err)
		}
	}
	return nil
}

func setupLogger(cfg *config.Config) (*slog.Logger, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Log.JSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts)), nil
}

func serviceVersion(cfg *config.Config) string {
	if cfg.Telemetry.ServiceVersion != "" {
		return cfg.Telemetry.ServiceVersion
	}
	return version
}
