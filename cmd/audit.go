package main

import (
	"context"
	"os"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/funnel-readiness/internal/model"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Evaluate every stored funnel",
	Long:  "Evaluates all stored funnels concurrently and prints a severity summary per funnel.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		failOnBlocker, _ := cmd.Flags().GetBool("fail-on-blocker")

		ed, st, err := initEditor(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		funnels, err := st.ListFunnels(ctx)
		if err != nil {
			return eris.Wrap(err, "audit: list funnels")
		}
		ids := make([]string, 0, len(funnels))
		for _, f := range funnels {
			ids = append(ids, f.ID)
		}

		rows, err := auditFunnels(ctx, ed, ids, cfg.Batch.MaxConcurrentFunnels)
		if err != nil {
			return err
		}

		switch format {
		case "json":
			if err := writeJSONOut(os.Stdout, rows); err != nil {
				return err
			}
		case "text":
			formatAudit(os.Stdout, rows)
		default:
			return eris.Errorf("unknown format %q", format)
		}

		if failOnBlocker && slices.ContainsFunc(rows, func(r auditRow) bool { return r.Blocked }) {
			return errPublishBlocked
		}
		return nil
	},
}

// readinessSource evaluates a stored funnel.
type readinessSource interface {
	Readiness(ctx context.Context, funnelID string) (model.FunnelReadiness, error)
}

// auditFunnels evaluates the funnels with at most concurrency evaluations in
// flight. A failing funnel is reported in its row and does not stop the rest.
func auditFunnels(ctx context.Context, src readinessSource, ids []string, concurrency int) ([]auditRow, error) {
	rows := make([]auditRow, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, id := range ids {
		g.Go(func() error {
			rows[i].FunnelID = id
			report, err := src.Readiness(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zap.L().Warn("audit: evaluation failed", zap.String("funnel_id", id), zap.Error(err))
				rows[i].Err = err.Error()
				return nil
			}
			rows[i].Counts = report.Counts()
			rows[i].Blocked = report.PublishBlocked
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "audit")
	}

	blocked := 0
	for _, r := range rows {
		if r.Blocked {
			blocked++
		}
	}
	zap.L().Info("audit complete", zap.Int("funnels", len(rows)), zap.Int("blocked", blocked))
	return rows, nil
}

func init() {
	auditCmd.Flags().String("format", "text", "output format: text or json")
	auditCmd.Flags().Bool("fail-on-blocker", false, "exit non-zero when any funnel is blocked")
	rootCmd.AddCommand(auditCmd)
}
