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

	"github.com/tmorling/credvault/internal/adapter/driven/pkgprobe"
	sqliteadapter "github.com/tmorling/credvault/internal/adapter/driven/sqlite"
	httphandler "github.com/tmorling/credvault/internal/adapter/driving/http"
	"github.com/tmorling/credvault/internal/adapter/driving/web"
	"github.com/tmorling/credvault/internal/application"
	"github.com/tmorling/credvault/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"package_path", cfg.PackagePath,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters.
	recordStore := sqliteadapter.NewRecordRepo(db)
	settingsStore := sqliteadapter.NewSettingsRepo(db)

	prober, err := pkgprobe.NewWithClient(
		&http.Client{Timeout: cfg.ProbeTimeout},
		cfg.PackageBaseURL,
		cfg.PackagePath,
	)
	if err != nil {
		return err
	}

	// 6. Create the repository; initial state loads exactly once here.
	repo := application.NewRepository(ctx, recordStore, slog.Default())

	// 7. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(repo, settingsStore, prober, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)
	web.RegisterRoutes(mux, cfg.DownloadsDir, slog.Default())

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second, // checksum downloads the full package
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	slog.Info("credvault started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
