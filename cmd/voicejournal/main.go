// voicejournal serves the voice journal HTTP API: base64 WebM uploads are
// transcribed, optionally summarized and stored as journal entries.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/soypete/voicejournal/pkg/config"
	"github.com/soypete/voicejournal/pkg/httpbridge"
	"github.com/soypete/voicejournal/pkg/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// Global flags
	configFile string

	// Serve command flags
	port int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "voicejournal",
		Short: "Voice journal HTTP backend",
		Long: `voicejournal accepts base64-encoded WebM recordings, transcribes them,
summarizes the transcript and stores the result as a journal entry.

Running without a subcommand starts the server.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: voicejournal.yaml or voicejournal.json)")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config and PORT)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE:  runServe,
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config and PORT)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQL journal tables",
		Long: `Runs the embedded migrations against the configured postgres or sqlite
database. The server also migrates on start, so this is only needed when
the schema is managed separately from deploys.`,
		RunE: runMigrate,
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "voicejournal", version)
		},
	}
}

func loadConfig() (*config.Config, logging.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if port != 0 {
		cfg.Server.Port = port
	}

	logger, err := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := httpbridge.NewAppContext(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn(context.Background(), "failed to close clients", "error", err)
		}
	}()

	logger.Info(ctx, "voicejournal starting",
		"version", version,
		"store", cfg.Store.Driver,
		"stt", cfg.STT.Backend,
		"summary", !cfg.Summary.Disabled,
	)

	server := httpbridge.NewServer(app)
	return server.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	if cfg.Store.Driver != config.DriverPostgres && cfg.Store.Driver != config.DriverSQLite {
		return fmt.Errorf("migrate needs a postgres or sqlite store, got %q", cfg.Store.Driver)
	}

	ctx := cmd.Context()
	db, err := httpbridge.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	v, err := db.Version(ctx)
	if err != nil {
		return err
	}
	logger.Info(ctx, "migrations applied", "driver", cfg.Store.Driver, "version", v)
	return nil
}
