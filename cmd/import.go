package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-readiness/internal/loader"
	"github.com/sells-group/funnel-readiness/internal/model"
	"github.com/sells-group/funnel-readiness/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import funnels and prices into the store",
	Long:  "Validates funnel and price documents against their schemas and writes them to the store. Stored payment-provider ids are kept.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		funnelPaths, _ := cmd.Flags().GetStringSlice("funnel")
		pricesPath, _ := cmd.Flags().GetString("prices")
		if len(funnelPaths) == 0 && pricesPath == "" {
			return eris.New("at least one of --funnel or --prices is required")
		}

		var prices []model.Price
		if pricesPath != "" {
			var err error
			prices, err = loader.LoadPrices(pricesPath)
			if err != nil {
				return err
			}
		}
		funnels := make([]*model.Funnel, 0, len(funnelPaths))
		for _, p := range funnelPaths {
			f, err := loader.LoadFunnel(p)
			if err != nil {
				return err
			}
			funnels = append(funnels, f)
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := importDocuments(ctx, st, prices, funnels); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Imported %d prices and %d funnels.\n", len(prices), len(funnels))
		return nil
	},
}

// importDocuments writes prices before funnels so a funnel is never stored
// ahead of the catalog it references.
func importDocuments(ctx context.Context, st store.Store, prices []model.Price, funnels []*model.Funnel) error {
	if len(prices) > 0 {
		if err := st.UpsertPrices(ctx, prices); err != nil {
			return eris.Wrap(err, "import prices")
		}
	}
	for _, f := range funnels {
		if err := st.SaveFunnel(ctx, f); err != nil {
			return eris.Wrapf(err, "import funnel %s", f.ID)
		}
		zap.L().Info("funnel imported", zap.String("funnel_id", f.ID), zap.Int("version", f.Version))
	}
	return nil
}

func init() {
	importCmd.Flags().StringSlice("funnel", nil, "funnel document(s) to import")
	importCmd.Flags().String("prices", "", "prices document to import")
	rootCmd.AddCommand(importCmd)
}
