package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/gophsync/internal/client/api"
	"github.com/iudanet/gophsync/internal/client/changes"
	"github.com/iudanet/gophsync/internal/client/cli"
	"github.com/iudanet/gophsync/internal/client/data"
	"github.com/iudanet/gophsync/internal/client/iocli"
	"github.com/iudanet/gophsync/internal/client/scheduler"
	"github.com/iudanet/gophsync/internal/client/storage/boltdb"
	"github.com/iudanet/gophsync/internal/client/sync"
	"github.com/iudanet/gophsync/internal/config"
	"github.com/iudanet/gophsync/internal/conflict"
	"github.com/iudanet/gophsync/internal/logging"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Глобальные флаги
var (
	configPath string
	serverURL  string
	dbPath     string
)

// app держит открытые ресурсы одной команды
type app struct {
	cli       *cli.Cli
	store     *boltdb.Storage
	logCloser io.Closer
}

var current *app

var rootCmd = &cobra.Command{
	Use:          "gophsync",
	Short:        "GophSync offline-first client",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		a, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		current = a
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if current == nil {
			return nil
		}
		return current.close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $GOPHSYNC_CONFIG or gophsync.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Server URL, overrides client.server_url")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to local database, overrides client.db_path")

	rootCmd.AddCommand(
		putCmd, getCmd, listCmd, deleteCmd,
		syncCmd, runCmd, conflictsCmd, resolveCmd, statusCmd,
		versionCmd,
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if current != nil {
			_ = current.close()
		}
		os.Exit(1)
	}
}

// setup собирает клиент: конфиг, логгер, хранилище, менеджеры и планировщик
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if serverURL != "" {
		cfg.Client.ServerURL = serverURL
	}
	if dbPath != "" {
		cfg.Client.DBPath = dbPath
	}

	logger, logCloser, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return nil, err
	}

	store, err := boltdb.New(ctx, cfg.Client.DBPath)
	if err != nil {
		_ = logCloser.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &app{store: store, logCloser: logCloser}

	originID, err := store.OriginID(ctx)
	if err != nil {
		_ = a.close()
		return nil, err
	}

	apiClient := api.NewClient(cfg.Client.ServerURL,
		api.WithOriginID(originID),
		api.WithTimeout(cfg.Client.RequestTimeout.Std()))
	tracker := changes.NewTracker(store, store, logger)
	policy := conflict.NewPolicy(cfg.Sync.TieBreak())
	if err := policy.RegisterFieldMergers(cfg.Sync.FieldMergers); err != nil {
		_ = a.close()
		return nil, fmt.Errorf("sync.field_mergers: %w", err)
	}

	managers := make([]sync.Manager, 0, len(cfg.Sync.EntityTypes))
	for _, entityType := range cfg.Sync.EntityTypes {
		m, err := sync.NewManager(sync.Config{
			EntityType:      entityType,
			Strategy:        cfg.Sync.Strategy(),
			BatchSize:       cfg.Sync.BatchSize,
			ChangeRetention: cfg.Sync.ChangeRetention.Std(),
		}, store, apiClient, tracker, policy, logger)
		if err != nil {
			_ = a.close()
			return nil, err
		}
		managers = append(managers, m)
	}

	sched := scheduler.New(scheduler.Config{
		Interval:   cfg.Sync.Interval.Std(),
		MaxRetries: cfg.Sync.MaxRetries,
		RetryDelay: cfg.Sync.RetryDelay.Std(),
	}, managers, logger)

	a.cli = cli.New(iocli.NewStdio(), data.NewService(store, tracker), sched, managers, store)
	return a, nil
}

func (a *app) close() error {
	current = nil
	err := a.store.Close()
	_ = a.logCloser.Close()
	return err
}
