// Package main provides the promptvault command-line entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/thebtf/promptvault/internal/config"
	"github.com/thebtf/promptvault/internal/pipeline"
	"github.com/thebtf/promptvault/internal/scheduler"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	workspaceRoot := flag.String("workspace-root", "", "Workspace storage root (default: from settings)")
	saveRoot := flag.String("save-root", "", "Output directory for ledger and project tables (default: from settings)")
	watch := flag.Bool("watch", false, "Keep running: extract on an interval and on store changes")
	interval := flag.Duration("interval", 0, "Extraction interval in watch mode (default: from settings)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).With().Timestamp().Logger()

	if err := config.EnsureAll(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to ensure data directory")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to load settings, using defaults")
		cfg = config.Default()
	}

	wsRoot := cfg.WorkspaceRoot
	if *workspaceRoot != "" {
		wsRoot = *workspaceRoot
	}
	svRoot := cfg.SaveRoot
	if *saveRoot != "" {
		svRoot = *saveRoot
	}
	runEvery := time.Duration(cfg.IntervalMinutes) * time.Minute
	if *interval > 0 {
		runEvery = *interval
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info().Msg("Shutting down")
		cancel()
	}()

	runner := pipeline.New(logger)
	logger.Info().Str("version", Version).Str("workspace_root", wsRoot).Str("save_root", svRoot).Msg("promptvault starting")

	if !*watch {
		files, err := runner.Extract(ctx, wsRoot, svRoot)
		report := pipeline.BuildReport(files, err)
		fmt.Println(report.Message)
		if err != nil {
			os.Exit(1)
		}
		return
	}

	sched := scheduler.New(runEvery, wsRoot, func(ctx context.Context) {
		files, err := runner.Extract(ctx, wsRoot, svRoot)
		report := pipeline.BuildReport(files, err)
		if report.Success {
			logger.Info().Strs("files", report.Files).Msg("Run complete")
		} else {
			logger.Warn().Str("result", report.Message).Msg("Run complete")
		}
	}, logger)

	if err := sched.Run(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Scheduler error")
	}
}
