package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/logging"
	"github.com/iudanet/gophsync/internal/server"
	"github.com/iudanet/gophsync/internal/server/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

var (
	configPath string
	address    string
	dbPath     string
)

var rootCmd = &cobra.Command{
	Use:          "gophsync-server",
	Short:        "GophSync reference sync server",
	SilenceUsage: true,
	RunE:         run,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "GophSync Server\n")
		fmt.Fprintf(out, "Version:    %s\n", Version)
		fmt.Fprintf(out, "Build Date: %s\n", BuildDate)
		fmt.Fprintf(out, "Git Commit: %s\n", GitCommit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $GOPHSYNC_CONFIG or gophsync.yaml)")
	rootCmd.Flags().StringVar(&address, "address", "", "Listen address, overrides server.address")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "Path to SQLite database, overrides server.db_path")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if address != "" {
		cfg.Server.Address = address
	}
	if dbPath != "" {
		cfg.Server.DBPath = dbPath
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logCloser.Close() }()
	slog.SetDefault(logger)

	store, err := sqlite.New(ctx, cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()
	logger.Info("Store initialized", "path", cfg.Server.DBPath)

	srv := server.New(server.Config{
		Address:         cfg.Server.Address,
		Version:         Version,
		ReadTimeout:     cfg.Server.ReadTimeout.Std(),
		WriteTimeout:    cfg.Server.WriteTimeout.Std(),
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Std(),
		RateLimit:       cfg.Server.RateLimit,
		RateWindow:      cfg.Server.RateWindow.Std(),
		MaxBatchSize:    cfg.Server.MaxBatchSize,
	}, store, logger)

	return srv.Run(ctx)
}
