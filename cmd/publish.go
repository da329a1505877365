package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-readiness/internal/editor"
)

var publishCmd = &cobra.Command{
	Use:   "publish <funnel-id>",
	Short: "Publish a funnel when nothing blocks it",
	Args:  cobra.ExactArgs(1),
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

		f, report, err := ed.Publish(ctx, args[0])
		if errors.Is(err, editor.ErrPublishBlocked) {
			formatReport(os.Stderr, args[0], report)
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Published %s at %s (version %d)\n",
			f.ID, f.Publish.PublishedAt.Format("2006-01-02 15:04:05"), f.Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(publishCmd)
}
