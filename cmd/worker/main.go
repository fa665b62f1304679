package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/1kastner/sherpa/internal/logging"
	"github.com/1kastner/sherpa/internal/worker"
	"github.com/1kastner/sherpa/pkg/model"
)

func main() {
	var cfg worker.Config

	// Server connection flags.
	flag.StringVar(&cfg.ServerURL, "server", "http://localhost:8080", "sherpa server URL")
	flag.StringVar(&cfg.Name, "name", "", "Worker name (default: hostname)")
	flag.StringVar(&cfg.StudyID, "study", "", "Study to pull trials from (required)")
	flag.StringVar(&cfg.WorkerKey, "worker-key", "", "Worker API key (when the server requires one)")
	flag.StringVar(&cfg.WorkDir, "workdir", "", "Checkpoint directory (default: $TMPDIR/sherpa-worker)")
	flag.DurationVar(&cfg.Poll, "poll", 5*time.Second, "Poll interval")

	// Trainer flags.
	trainer := flag.String("trainer", "sim", "Trainer kind (sim, script, command)")
	script := flag.String("script", "", "Path to a JavaScript trainer (kind script)")
	command := flag.String("command", "", "Shell command to run per trial (kind command)")
	flag.Int64Var(&cfg.Seed, "seed", 0, "Seed for the sim trainer")

	// TLS flags.
	flag.StringVar(&cfg.TLS.CACertPath, "ca-cert", "", "Path to CA certificate PEM file for internal PKI")
	flag.BoolVar(&cfg.TLS.InsecureSkipVerify, "insecure", false, "Skip TLS verification (testing only)")

	// Logging flags.
	logLevel := flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := flag.String("log-format", "text", "Log format (text, json)")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *debug {
		*logLevel = "debug"
	}

	logger := logging.NewLogger(logging.ParseLevel(*logLevel), *logFormat)

	if cfg.StudyID == "" {
		fmt.Fprintln(os.Stderr, "missing required flag: --study")
		os.Exit(1)
	}

	// Default worker name to hostname.
	if cfg.Name == "" {
		h, err := os.Hostname()
		if err != nil {
			cfg.Name = "worker"
		} else {
			cfg.Name = h
		}
	}
	cfg.Hostname, _ = os.Hostname()

	cfg.Trainer = model.TrainerType(*trainer)
	if *script != "" {
		data, err := os.ReadFile(*script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "read script: %v\n", err)
			os.Exit(1)
		}
		cfg.Script = string(data)
	}
	if *command != "" {
		cfg.Command = []string{"sh", "-c", *command}
	}

	w, err := worker.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init worker: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting worker",
		"server", cfg.ServerURL,
		"study", cfg.StudyID,
		"trainer", cfg.Trainer,
		"poll", cfg.Poll,
	)

	if err := w.Run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "worker error: %v\n", err)
		os.Exit(1)
	}

	logger.Info("worker stopped")
}
