package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand, which runs one crawl and prints its report.
func newCrawlCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "crawl <domain>...",
		Short: "Crawl one or more domains and print the report",
		Long: `Runs a single crawl seeded with the given domains or URLs. Bare domains are
crawled over https. With --dry-run product URLs are kept in memory instead of
being written to Postgres.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			cfg := rt.cfg
			if dryRun {
				cfg.DB.Enabled = false
			}

			report, err := app.New(cfg, rt.logger).StartCrawl(cmd.Context(), args)
			if err != nil {
				return fmt.Errorf("crawl: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if report.StorageError != "" {
				rt.logger.Warn("crawl finished with unflushed product urls",
					zap.Int("pending", report.PendingUnflushed),
					zap.String("storage_error", report.StorageError),
				)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "keep product URLs in memory instead of Postgres")
	return cmd
}
