package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/funnel-readiness/internal/editor"
	"github.com/sells-group/funnel-readiness/internal/fixaction"
)

var fixCmd = &cobra.Command{
	Use:   "fix <funnel-id> <issue-id>",
	Short: "Apply the fix action attached to a readiness issue",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mode := "store"
		if cfg.Sync.BaseURL != "" {
			mode = "sync"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		ed, st, err := initEditor(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ctx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Server.FixTimeoutSecs)*time.Second)
		defer cancel()

		res, err := applyFix(ctx, ed, args[0], args[1], os.Stdout)
		if err != nil {
			return err
		}
		if !res.Success {
			return eris.Errorf("fix failed: %s", res.Message)
		}
		fmt.Fprintln(os.Stdout, res.Message)
		return nil
	},
}

// applyFix looks up the issue and runs its fix action. Navigation targets
// are printed to w since the CLI has no editor to open.
func applyFix(ctx context.Context, ed *editor.Editor, funnelID, issueID string, w io.Writer) (fixaction.Result, error) {
	report, err := ed.Readiness(ctx, funnelID)
	if err != nil {
		return fixaction.Result{}, err
	}
	issue, ok := report.Issue(issueID)
	if !ok {
		return fixaction.Result{}, eris.Errorf("funnel %s has no issue %q", funnelID, issueID)
	}
	if issue.FixAction == nil {
		return fixaction.Result{}, eris.Errorf("issue %q has no fix action", issueID)
	}

	navigate := func(path string) { fmt.Fprintf(w, "Open %s\n", path) }
	return fixaction.Execute(ctx, issue.FixAction, ed.Handlers(funnelID, navigate)), nil
}

func init() {
	rootCmd.AddCommand(fixCmd)
}
