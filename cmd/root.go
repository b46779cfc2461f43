// Package cmd defines and implements the CLI commands for the scrapers executable.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/app"
	"github.com/openpatata/scrapers/internal/config"
	"github.com/openpatata/scrapers/internal/crawler"
	"github.com/openpatata/scrapers/internal/mirror"
	"github.com/openpatata/scrapers/internal/record"
)

var (
	cfgFile     string
	dataDir     string
	storeFlag   string
	metricsAddr string
	debug       bool
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application surface that commands use. It allows a
// mock app to be injected during tests.
type App interface {
	Close()
	Logger() *zap.Logger
	Store() record.Store
	Crawler() *crawler.Crawler
	Mirror() *mirror.Mirror
}

// newApp is the application factory. It is a variable so tests can
// replace it with a mock factory.
var newApp = func(ctx context.Context) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.Mirror.DataDir = dataDir
	}
	if storeFlag != "" {
		cfg.Store.Backend = storeFlag
	}
	if metricsAddr != "" {
		cfg.Metrics.Addr = metricsAddr
	}
	if debug {
		cfg.Logging.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrapers",
		Short: "Scrapers for the records of the Cypriot parliament.",
		Long: `scrapers collects bills, plenary sittings, questions and MP profiles
from the parliament website into a record store, and syncs the store
with a directory of canonical YAML files.`,

		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs after flag parsing and before the subcommand's RunE.
		// Builds the application and injects it into the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			cmd.SetContext(ctx)
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the YAML mirror")
	cmd.PersistentFlags().StringVar(&storeFlag, "store", "", "record store backend (memory or postgres)")
	cmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address for the Prometheus endpoint")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable development logging")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newUnloadCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, fmt.Errorf("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
