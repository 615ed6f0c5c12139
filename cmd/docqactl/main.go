package main

import (
	"context"
	"os"

	"github.com/akolanti/docqa/internal/app"
	"github.com/akolanti/docqa/internal/config"
	"github.com/akolanti/docqa/pkg/logger_i"
	"github.com/spf13/cobra"
)

var (
	configPath string
	jsonOutput bool
)

// buildApp is swapped in tests to inject deterministic providers.
var buildApp = func(ctx context.Context, cfg *config.Config) (*app.App, error) {
	return app.Build(ctx, cfg, config.LoadCredentials())
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docqactl",
		Short: "Index a documents directory and answer questions from it",
		Long: `docqactl drives the same engine as the HTTP API from the command line.

Documents (.pdf, .txt, .md) are read from DOCS_DIR. The collection is stored in
DATABASE_URL when it points at Postgres or Qdrant, otherwise in VECTOR_STORE_DIR.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file (or set CONFIG_FILE)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print machine readable JSON")

	rootCmd.AddCommand(
		buildIngestCmd(),
		buildQueryCmd(),
		buildSearchCmd(),
		buildFilesCmd(),
		buildUsersCmd(),
		buildStatusCmd(),
		buildMcpCmd(),
	)
	return rootCmd
}

// loadConfig resolves the configuration and sends logs to stderr so that
// stdout carries only command output.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger_i.Init(logger_i.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	return cfg, nil
}

func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return buildApp(ctx, cfg)
}
