package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-readiness/internal/editor"
)

var splitCmd = &cobra.Command{
	Use:   "split <funnel-id> <step-id>",
	Short: "Split a mixed-billing checkout into one-time and subscription steps",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("store"); err != nil {
			return err
		}

		ed, st, err := initEditor(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ed.SplitCheckout(ctx, args[0], args[1])
		if errors.Is(err, editor.ErrNothingToSplit) {
			fmt.Fprintf(os.Stderr, "Step %s has no mixed billing; nothing to split.\n", args[1])
			return nil
		}
		if err != nil {
			return err
		}
		return writeJSONOut(os.Stdout, res)
	},
}

func init() {
	rootCmd.AddCommand(splitCmd)
}
