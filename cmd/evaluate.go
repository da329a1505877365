package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-readiness/internal/loader"
	"github.com/sells-group/funnel-readiness/internal/model"
	"github.com/sells-group/funnel-readiness/internal/readiness"
)

var errPublishBlocked = eris.New("publish blocked")

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate a funnel's publish readiness",
	Long:  "Evaluates a funnel read from files (--funnel and --prices) or from the store (--funnel-id) and prints badges and issues.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		funnelPath, _ := cmd.Flags().GetString("funnel")
		pricesPath, _ := cmd.Flags().GetString("prices")
		funnelID, _ := cmd.Flags().GetString("funnel-id")
		format, _ := cmd.Flags().GetString("format")
		failOnBlocker, _ := cmd.Flags().GetBool("fail-on-blocker")

		if (funnelPath == "") == (funnelID == "") {
			return eris.New("exactly one of --funnel or --funnel-id is required")
		}

		var (
			report model.FunnelReadiness
			id     string
		)
		if funnelPath != "" {
			if err := cfg.Validate("local"); err != nil {
				return err
			}
			r, err := evaluateFiles(funnelPath, pricesPath)
			if err != nil {
				return err
			}
			report, id = r.report, r.funnelID
		} else {
			if err := cfg.Validate("store"); err != nil {
				return err
			}
			ed, st, err := initEditor(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck

			report, err = ed.Readiness(ctx, funnelID)
			if err != nil {
				return eris.Wrapf(err, "evaluate funnel %s", funnelID)
			}
			id = funnelID
		}

		switch format {
		case "json":
			if err := writeJSONOut(os.Stdout, report); err != nil {
				return err
			}
		case "text":
			formatReport(os.Stdout, id, report)
		default:
			return eris.Errorf("unknown format %q", format)
		}

		if failOnBlocker && report.PublishBlocked {
			return errPublishBlocked
		}
		return nil
	},
}

type fileEvaluation struct {
	funnelID string
	report   model.FunnelReadiness
}

// evaluateFiles evaluates a funnel document against an optional prices
// document without touching the store.
func evaluateFiles(funnelPath, pricesPath string) (fileEvaluation, error) {
	f, err := loader.LoadFunnel(funnelPath)
	if err != nil {
		return fileEvaluation{}, err
	}
	var prices []model.Price
	if pricesPath != "" {
		prices, err = loader.LoadPrices(pricesPath)
		if err != nil {
			return fileEvaluation{}, err
		}
	}
	return fileEvaluation{funnelID: f.ID, report: readiness.Evaluate(*f, prices)}, nil
}

func init() {
	evaluateCmd.Flags().String("funnel", "", "funnel document (JSON or YAML)")
	evaluateCmd.Flags().String("prices", "", "prices document (JSON or YAML)")
	evaluateCmd.Flags().String("funnel-id", "", "evaluate a stored funnel")
	evaluateCmd.Flags().String("format", "text", "output format: text or json")
	evaluateCmd.Flags().Bool("fail-on-blocker", false, "exit non-zero when publishing is blocked")
	rootCmd.AddCommand(evaluateCmd)
}
