package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/omarathon/riot-api-crawler/internal/app"
	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/platform"
	"github.com/omarathon/riot-api-crawler/internal/rank"
)

// newRanker is the estimator factory; tests replace it.
var newRanker = func(cfg config.Config) (*app.Ranker, error) {
	return app.NewRanker(cfg)
}

func newEstimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <riot-id>",
		Short: "Print a summoner's estimated rank",
		Long: `Resolves a Riot id (name#tag; the configured default tag is used when
omitted) and prints the highest rank it holds across crawler.rank_queues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd.Context())
			if err != nil {
				return err
			}
			r, err := newRanker(cfg)
			if err != nil {
				return fmt.Errorf("initialize platform client: %w", err)
			}
			defer func() { _ = r.Close() }()

			s, est, err := r.Estimate(cmd.Context(), args[0])
			switch {
			case errors.Is(err, platform.ErrNoRankData):
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tunranked in %s\n", s, queueList(r))
				return nil
			case err != nil:
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", s, est)
			return nil
		},
	}
}

func queueList(r *app.Ranker) string {
	names := make([]string, 0, len(r.Queues()))
	for _, q := range r.Queues() {
		names = append(names, string(q))
	}
	return strings.Join(names, ", ")
}

func newRanksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ranks <tier>",
		Short: "Print the ranks a tier's crawler accepts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, err := rank.ParseTier(args[0])
			if err != nil {
				return err
			}
			for _, r := range rank.Spanning(tier).Ranks() {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			}
			return nil
		},
	}
}
