package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/warp/property-engine/config"
	"github.com/warp/property-engine/logging"
	"github.com/warp/property-engine/property"
	"github.com/warp/property-engine/store/sqlite"
	"go.uber.org/zap"
)

var (
	configPath string
	dbOverride string
)

var rootCmd = &cobra.Command{
	Use:   "property-calendar",
	Short: "Unified calendar over leases, rent, maintenance, inspections and appliances",
	Long: `Aggregates the dated records of a property portfolio into one calendar
event stream with status, display metadata and permitted actions.

  - serve        Run the HTTP API
  - export       Write a window of events as ICS or a JSON row dump
  - import       Load a JSON row dump
  - event-types  Show the event type registry`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serveCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "YAML config file (created with defaults if missing)")
	rootCmd.PersistentFlags().StringVar(&dbOverride, "db", "", "SQLite database path, overrides db_path (\":memory:\" for RAM)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(eventTypesCmd)
}

// app is everything a command needs, built from the loaded config.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	bus      *property.Bus
	store    *sqlite.Store
	calendar *property.Calendar
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if dbOverride != "" {
		cfg.DBPath = dbOverride
	}
	return cfg, nil
}

// newApp loads config, opens the store and builds the calendar service.
func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	bus := property.NewBus(logger.Named("bus"))
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.DBPath, err)
	}
	store.WithBus(bus)

	opts, err := cfg.CalendarOptions(logger.Named("calendar"))
	if err != nil {
		store.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		bus:      bus,
		store:    store,
		calendar: property.NewCalendar(store, store, opts),
	}, nil
}

func (a *app) Close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
