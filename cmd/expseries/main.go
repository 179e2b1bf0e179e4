package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/star/expseries/internal/api"
	"github.com/star/expseries/internal/auth"
	"github.com/star/expseries/internal/config"
	"github.com/star/expseries/internal/metrics"
	"github.com/star/expseries/internal/session"
	"github.com/star/expseries/internal/stream"
	"github.com/star/expseries/internal/transform"
	"github.com/star/expseries/internal/workers"
)

func main() {
	configPath := flag.String("config", os.Getenv("EXPSERIES_CONFIG"), "path to a YAML or HCL config file")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	config.ApplyEnv(&cfg, logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	lvl, err := cfg.Level()
	if err != nil {
		logger.Error("invalid log level", "error", err)
		os.Exit(1)
	}
	level.Set(lvl)

	pool := workers.NewPool(cfg.Workers, logger)
	loader, err := session.NewLoader(cfg, pool, logger)
	if err != nil {
		logger.Error("invalid series configuration", "error", err)
		os.Exit(1)
	}

	store := session.NewStore()
	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.HTTP.LoadTimeout())
	sess, err := store.Reload(startCtx, loader)
	cancelStart()
	if err != nil {
		logger.Error("failed to load series", "error", err)
		os.Exit(1)
	}
	logger.Info("series loaded",
		"orientation", sess.Sources.Orientation,
		"coefficients", sess.Sources.Coefficients,
		"workers", pool.Size(),
	)

	streamHandler := stream.NewHandler(store, stream.Config{
		MaxConcurrentPerClient: cfg.Stream.MaxConcurrentPerClient,
		KeepaliveInterval:      cfg.Stream.KeepaliveInterval(),
		MaxEvents:              cfg.Stream.MaxEvents,
		TrustProxy:             cfg.HTTP.TrustProxy,
	}, logger)

	authCfg := auth.Config{Enabled: cfg.Auth.Enabled, Token: cfg.Auth.Token}
	srv := api.NewServer(cfg.HTTP.Addr, logger, authCfg, store, loader, transform.NewBatcher(pool), streamHandler)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// SIGHUP reloads both series in place.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				reloadCtx, cancel := context.WithTimeout(ctx, cfg.HTTP.LoadTimeout())
				if _, err := store.Reload(reloadCtx, loader); err != nil {
					logger.Error("reload failed, keeping current session", "error", err)
				} else {
					logger.Info("session reloaded")
				}
				cancel()
			case <-ctx.Done():
				return
			}
		}
	}()

	// Background goroutine to update the session age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetSessionAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server", "addr", cfg.HTTP.Addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout())
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
