package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/1kastner/sherpa/internal/config"
	"github.com/1kastner/sherpa/internal/logging"
	"github.com/1kastner/sherpa/internal/server"
	"github.com/1kastner/sherpa/internal/store"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.sherpa/sherpa.db)")
	flag.DurationVar(&cfg.WorkerDeadline, "worker-deadline", cfg.WorkerDeadline, "Heartbeat deadline before a worker counts as lost")
	flag.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "Interval between worker liveness sweeps")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	workerKeyFile := flag.String("worker-keys", "", "Path to worker keys JSON file")
	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".sherpa")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "sherpa.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	var serverOpts []server.Option

	// Configure worker key authentication.
	workerKeyConfig := server.LoadWorkerKeyConfig(*workerKeyFile)
	if workerKeyConfig.IsEnabled() {
		serverOpts = append(serverOpts, server.WithWorkerKeyConfig(workerKeyConfig))
		logger.Info("worker key authentication enabled", "keys", len(workerKeyConfig.Keys))
	}

	srv := server.New(cfg, st, logger, serverOpts...)

	// Rebuild the scheduler of every unfinished study from stored state.
	if err := srv.RestoreStudies(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "restore studies: %v\n", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reaper := server.NewReaper(srv, server.ReaperConfig{
		Deadline:     cfg.WorkerDeadline,
		PollInterval: cfg.ReapInterval,
	}, logger)
	go reaper.Start(ctx)

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Stop the reaper before the HTTP server.
	if err := reaper.Stop(); err != nil {
		logger.Error("reaper stop error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
