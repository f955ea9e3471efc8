// Package cmd defines the CLI commands for the riot-api-crawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/omarathon/riot-api-crawler/internal/config"
)

// cfgKeyType is the key for storing the loaded Config in the command context.
type cfgKeyType string

const cfgKey cfgKeyType = "config"

// loadConfig is a variable so tests can bypass the filesystem and environment.
var loadConfig = config.Load

// newRootCmd creates the root command and its subcommands.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "riot-api-crawler",
		Short: "Rank-aware crawler over League of Legends match histories.",
		Long: `riot-api-crawler runs one breadth-first crawler per tier over the
summoner/match graph of the Riot API. Each crawler keeps only matches and
summoners whose estimated rank falls inside its tier and writes accepted
matches to the configured record sinks.`,
		SilenceUsage: true,

		// Runs before every subcommand so each sees the same validated config.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cfgKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newEstimateCmd())
	cmd.AddCommand(newRanksCmd())
	return cmd
}

func configFrom(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(cfgKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
