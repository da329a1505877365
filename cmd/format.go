package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-readiness/internal/model"
)

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "encode output")
}

func publishLabel(r model.FunnelReadiness) string {
	if r.PublishBlocked {
		return "BLOCKED"
	}
	return "READY"
}

// formatReport prints an evaluation as a badge table followed by the issues.
func formatReport(w io.Writer, funnelID string, r model.FunnelReadiness) {
	counts := r.Counts()
	fmt.Fprintf(w, "Funnel %s: %s (%d blockers, %d warnings, %d infos)\n\n",
		funnelID, publishLabel(r), counts.Blockers, counts.Warnings, counts.Infos)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tMODE\tSYNC\tENV\tCHARGE\tISSUES")
	for _, id := range r.StepIDs {
		s := r.Steps[id]
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			id, dash(s.Badges.Mode), dash(string(s.Badges.Sync)), dash(s.Badges.Env), dash(s.Badges.Charge), len(s.Issues))
	}
	tw.Flush() //nolint:errcheck

	issues := r.AllIssues()
	if len(issues) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tID\tSTEP\tTITLE\tFIX")
	for _, is := range issues {
		fix := "-"
		if is.FixAction != nil {
			fix = string(is.FixAction.Type())
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", is.Severity, is.ID, dash(is.StepID), is.Title, fix)
	}
	tw.Flush() //nolint:errcheck
}

// auditRow is one funnel in the audit summary.
type auditRow struct {
	FunnelID string            `json:"funnelId"`
	Counts   model.IssueCounts `json:"counts"`
	Blocked  bool              `json:"publishBlocked"`
	Err      string            `json:"error,omitempty"`
}

func formatAudit(w io.Writer, rows []auditRow) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FUNNEL\tBLOCKERS\tWARNINGS\tINFOS\tSTATUS")
	for _, r := range rows {
		status := "READY"
		switch {
		case r.Err != "":
			status = "ERROR: " + r.Err
		case r.Blocked:
			status = "BLOCKED"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", r.FunnelID, r.Counts.Blockers, r.Counts.Warnings, r.Counts.Infos, status)
	}
	tw.Flush() //nolint:errcheck
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
