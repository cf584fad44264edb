package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"wxdata-server/internal/app"
	"wxdata-server/internal/config"
	"wxdata-server/internal/logging"
)

const appName = "wxdata"

// Default version is "dev" if not set with -ldflags "-X main.version=..."
var version = "dev"

const usage = `usage: wxdata [command]

commands:
  serve     serve the weather API (default)
  ingest    load the station files of DATA_DIR
  analyze   compute yearly stats from the loaded records
  migrate   apply database migrations
`

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	command := "serve"
	if len(args) > 0 {
		command = args[0]
	}

	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}

	// Job progress lines own stdout; logs go to stderr.
	logger := logging.New(os.Stderr, cfg, version, appName)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting",
		"app", appName,
		"version", version,
		"env", cfg.AppEnv,
		"command", command,
	)

	switch command {
	case "serve":
		err = app.RunServe(ctx, cfg)
	case "ingest":
		err = app.RunIngest(ctx, cfg, os.Stdout)
	case "analyze":
		err = app.RunAnalyze(ctx, cfg, os.Stdout)
	case "migrate":
		err = app.RunMigrate(ctx, cfg)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", command, usage)
		return 2
	}

	code := exitCode(command, err)
	if code != 0 {
		slog.Error("run failed", "command", command, "err", err)
		return code
	}
	slog.Info("shutting down")
	return 0
}

// exitCode maps a command result to the process status. Cancellation is a
// normal stop for serve; a cancelled job left partial results and fails.
func exitCode(command string, err error) int {
	switch {
	case err == nil:
		return 0
	case command == "serve" && errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}
