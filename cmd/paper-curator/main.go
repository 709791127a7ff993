// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-curator CLI.
// Subcommands: parse (digest to records), curate (full pipeline),
// papers (catalog upkeep) and version.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/internal/logging"
	"github.com/pdiddy/paper-curator/internal/secrets"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// secretsDir holds one file per API key or token.
const secretsDir = ".secrets/"

var (
	// cfg is the resolved configuration for the running command.
	cfg types.CuratorConfig

	// logger is built from cfg.Log once flags are applied.
	logger = logging.Nop()
)

// rootCmd is the base command for the paper-curator CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-curator",
	Short: "Turn arXiv digest mails into a curated paper catalog",
	Long: `paper-curator reads arXiv new-submission digests, recovers one record per
announced paper (salvaging what it can from damaged entries), classifies each
paper with a language model, files GitHub issues for relevant ones and keeps
everything in a SQLite or Postgres catalog.

Use parse to inspect what the engine recovers from a digest, curate to run the
whole pipeline, and papers to review and label stored papers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional.
		_ = godotenv.Load()

		loaded, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		verbose, _ := cmd.Flags().GetBool("verbose")
		loaded.Log = logging.Verbose(loaded.Log, verbose)
		if format, _ := cmd.Flags().GetString("log-format"); format != "" {
			loaded.Log.Format = format
		}

		l, err := logging.New(loaded.Log)
		if err != nil {
			return err
		}
		logger = l

		s, err := secrets.Load(secretsDir, logger)
		if err != nil {
			return err
		}
		applySecrets(&loaded, s)
		cfg = loaded

		if used := viper.ConfigFileUsed(); used != "" {
			logger.Debug("using config file", zap.String("path", used))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-curator.yaml or ~/.config/paper-curator/paper-curator.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log salvaged and rejected entries and other debug detail")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paper-curator")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paper-curator"))
		}
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
