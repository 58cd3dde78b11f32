package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/PhiSkr/RenderFleet/internal/config"
	"github.com/PhiSkr/RenderFleet/internal/fleetpath"
	"github.com/PhiSkr/RenderFleet/internal/rflog"
	"github.com/PhiSkr/RenderFleet/internal/worker"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var configPath string

var rootCmd = &cobra.Command{
	Use:     "renderfleetd",
	Short:   "RenderFleet worker daemon",
	Long:    "renderfleetd runs one node of a filesystem-coordinated render fleet: it drains its own inbox, emits heartbeats, and — for lead roles — dispatches queued jobs to idle peers.",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("renderfleetd version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".", "directory to search for config.yml")
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run this node's worker loop until interrupted",
	RunE:  runWorker,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("renderfleetd %s (%s, built %s)\n", Version, Commit, BuildTime)
	},
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	rflog.Init(rflog.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON})
	log := rflog.WithWorker(cfg.WorkerID)

	paths, err := fleetpath.New(cfg.SyncthingRoot)
	if err != nil {
		return fmt.Errorf("resolving fleet root: %w", err)
	}

	w := worker.New(paths, cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("root", paths.Root).Str("role", cfg.InitialRole).Msg("renderfleetd starting")
	if err := w.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker loop exited with error")
		return err
	}
	log.Info().Msg("renderfleetd shut down cleanly")
	return nil
}
