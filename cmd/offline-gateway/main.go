package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	sqliteadapter "github.com/tmorling/credvault/internal/adapter/driven/sqlite"
	"github.com/tmorling/credvault/internal/config"
	"github.com/tmorling/credvault/internal/offline"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadGateway()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"origin", cfg.OriginURL.String(),
		"cache", cfg.CacheName,
		"cache_db_path", cfg.CacheDBPath,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sqliteadapter.NewDB(cfg.CacheDBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing cache database", "error", closeErr)
		}
	}()

	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	controller, err := offline.New(offline.Config{
		CacheName:   cfg.CacheName,
		Store:       sqliteadapter.NewCacheRepo(db, slog.Default()),
		Origin:      cfg.OriginURL,
		PackagePath: cfg.PackagePath,
		Logger:      slog.Default(),
	})
	if err != nil {
		return err
	}

	// Priming failure is non-fatal: the gateway still proxies, it just has
	// nothing to fall back on until the origin is reachable again.
	if err := controller.Install(ctx); err != nil {
		slog.Warn("shell cache priming failed, serving without offline fallback", "error", err)
	} else if err := controller.Activate(ctx); err != nil {
		slog.Warn("cache controller activation failed", "error", err)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           controller,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("offline gateway starting", "addr", cfg.ListenAddr, "state", controller.State().String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("gateway server error", "error", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("gateway server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
