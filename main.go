package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ianzepp/monk-irc-sub000/internal/config"
)

// main wires process entry: flags, config, a structured logger, the
// Server, and signal-based graceful shutdown (spec §6 exit codes: 0 clean,
// non-zero on bind failure or missing required configuration).
//
// Grounded on the teacher's ircd.go `main` (getArgs -> checkAndParseConfig
// -> newServer -> eventLoop), with config.go's key=value parser replaced by
// internal/config and the log package replaced by log/slog (the ambient
// logging choice of other_examples/96301a52_WAN-Ninjas-AmityVox's bridge).
func main() {
	os.Exit(run())
}

func run() int {
	args := getArgs()
	if args == nil {
		return 1
	}

	cfg, err := config.Load(args.ConfigFile, args.Flags)
	if err != nil {
		slog.Error("configuration error", "error", err)
		return 1
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	srv := NewServer(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
		return 0
	case err := <-errCh:
		if err != nil {
			log.Error("server exited", "error", err)
			return 1
		}
		return 0
	}
}
