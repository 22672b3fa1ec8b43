package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/ecom-product-crawler/internal/app"
)

// newSchemaCmd creates the 'schema' subcommand, which prepares the product table.
func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the product URL table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := resolveRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if err := app.New(rt.cfg, rt.logger).EnsureSchema(cmd.Context()); err != nil {
				return fmt.Errorf("schema: %w", err)
			}
			rt.logger.Info("schema ready", zap.String("table", rt.cfg.DB.Table))
			return nil
		},
	}
}
