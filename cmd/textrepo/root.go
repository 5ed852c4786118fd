package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vault-md/textrepo/internal/config"
	"github.com/vault-md/textrepo/internal/logging"
	"github.com/vault-md/textrepo/internal/usecase"
)

var (
	configPath string
	repoDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:     "textrepo",
	Short:   "textrepo - index and edit a git-backed segmented text repository",
	Long:    "textrepo indexes segmented JSON documents in a git working copy, merges related documents for editing, and batches edits into commits.",
	Version: version,
	// Usage is noise for runtime failures.
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Settings file (default $XDG_CONFIG_HOME/textrepo/config.toml)")
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", "", "Repository working copy (overrides repo_dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(newIndexCmd())
	rootCmd.AddCommand(newTreeCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newUpdateCmd())
	rootCmd.AddCommand(newBulkCmd())
	rootCmd.AddCommand(newFlushCmd())
	rootCmd.AddCommand(newWebhookCmd())
	rootCmd.AddCommand(newPublicationCmd())
	rootCmd.AddCommand(newProblemsCmd())
	rootCmd.AddCommand(newClobbersCmd())
	rootCmd.AddCommand(newServeCmd())
}

func loadSettings() (config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if repoDir != "" {
		settings.RepoDir = repoDir
	}

	logCfg := logging.Config{
		Level:      settings.Log.Level,
		Format:     settings.Log.Format,
		OutputPath: settings.Log.Output,
	}
	if logLevel != "" {
		logCfg.Level = logLevel
	}
	if err := logging.Init(logCfg); err != nil {
		return config.Settings{}, fmt.Errorf("failed to initialise logging: %w", err)
	}
	return settings, nil
}

func openRepository() (*usecase.Repository, error) {
	settings, err := loadSettings()
	if err != nil {
		return nil, err
	}
	return usecase.Open(settings, usecase.Options{Logger: logging.L()})
}

func closeRepository(cmd *cobra.Command, r *usecase.Repository) {
	if err := r.Close(cmd.Context()); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
	}
	_ = logging.Sync()
}
