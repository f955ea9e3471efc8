package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/omarathon/riot-api-crawler/internal/app"
	"github.com/omarathon/riot-api-crawler/internal/config"
	"github.com/omarathon/riot-api-crawler/internal/driver"
)

// fleet is what the crawl command drives. *app.App satisfies it.
type fleet interface {
	Run(ctx context.Context) ([]driver.Outcome, error)
	Close(ctx context.Context) error
}

// buildFleet is the application factory; tests replace it.
var buildFleet = func(ctx context.Context, cfg config.Config) (fleet, error) {
	return app.Build(ctx, cfg)
}

// newCrawlCmd creates the 'crawl' subcommand, which runs one engine per
// configured tier seed until every engine finishes.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Run the crawler fleet",
		Long: `Builds one crawler per entry in crawler.seeds, resolves each seed
summoner, and crawls until every frontier is exhausted, halted, or the
process receives SIGINT/SIGTERM. Prints one line per crawler when done.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := configFrom(cmd.Context())
	if err != nil {
		return err
	}
	f, err := buildFleet(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	outcomes, runErr := f.Run(cmd.Context())
	if err := f.Close(context.WithoutCancel(cmd.Context())); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := printOutcomes(cmd.OutOrStdout(), outcomes); err != nil {
		return err
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawlers: %w", runErr)
	}
	if s := driver.Summarize(outcomes); s.Failed > 0 {
		return fmt.Errorf("%d of %d crawlers failed", s.Failed, len(outcomes))
	}
	return nil
}

func printOutcomes(w io.Writer, outcomes []driver.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CRAWLER\tSTATUS\tVISITED\tMATCHES\tERRORS\tDETAIL")
	for _, o := range outcomes {
		detail := o.Result.HaltReason
		if o.Failed() {
			detail = o.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%s\n",
			o.Name,
			o.Status(),
			o.Result.Visited,
			o.Result.MatchesEmitted,
			o.Result.FetchErrors+o.Result.WriteErrors,
			detail,
		)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write outcomes: %w", err)
	}
	return nil
}
