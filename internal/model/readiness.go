package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// Severity ranks readiness issues. Only blockers prevent publishing.
type Severity string

const (
	SeverityBlocker Severity = "blocker"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// IssueScope says whether an issue belongs to a step or the whole funnel.
type IssueScope string

const (
	ScopeGlobal IssueScope = "global"
	ScopeStep   IssueScope = "step"
)

// ReadinessIssue is one configuration problem found by the readiness engine.
// ID is derived from the issue kind and its subject so repeated evaluation of
// the same input yields identical ids.
type ReadinessIssue struct {
	ID          string     `json:"id"`
	Severity    Severity   `json:"severity"`
	Scope       IssueScope `json:"scope"`
	StepID      string     `json:"stepId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	FixAction   FixAction  `json:"fixAction,omitempty"`
}

// UnmarshalJSON decodes the issue including its fix action variant.
func (i *ReadinessIssue) UnmarshalJSON(data []byte) error {
	type plain ReadinessIssue
	var w struct {
		plain
		FixAction json.RawMessage `json:"fixAction"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode issue")
	}
	action, err := decodeOptionalFixAction(w.FixAction)
	if err != nil {
		return err
	}
	*i = ReadinessIssue(w.plain)
	i.FixAction = action
	return nil
}

// SyncBadge summarizes whether a step's prices exist at the payment provider.
type SyncBadge string

const (
	SyncSynced    SyncBadge = "synced"
	SyncNeedsSync SyncBadge = "needs_sync"
)

// Badge mode labels.
const (
	ModeOneTime       = "one-time"
	ModeSubscription  = "subscription"
	ModeOneClickOffer = "one-click-offer"
)

// Badge charge labels.
const (
	ChargeImmediate = "immediate"
	ChargeDeferred  = "deferred"
)

// Badges are UI hints derived from a step's config and resolved prices.
// They are never authoritative for publish decisions.
type Badges struct {
	Mode   string    `json:"mode,omitempty"`
	Sync   SyncBadge `json:"sync,omitempty"`
	Env    string    `json:"env,omitempty"`
	Charge string    `json:"charge,omitempty"`
}

// ChecklistStatus is the checklist projection of a severity.
type ChecklistStatus string

const (
	ChecklistFail ChecklistStatus = "fail"
	ChecklistWarn ChecklistStatus = "warn"
	ChecklistOK   ChecklistStatus = "ok"
)

// ChecklistItem is a per-issue row shown in the step checklist.
type ChecklistItem struct {
	ID        string          `json:"id"`
	Status    ChecklistStatus `json:"status"`
	Label     string          `json:"label"`
	FixAction FixAction       `json:"fixAction,omitempty"`
}

// UnmarshalJSON decodes the checklist item including its fix action.
func (c *ChecklistItem) UnmarshalJSON(data []byte) error {
	type plain ChecklistItem
	var w struct {
		plain
		FixAction json.RawMessage `json:"fixAction"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return eris.Wrap(err, "model: decode checklist item")
	}
	action, err := decodeOptionalFixAction(w.FixAction)
	if err != nil {
		return err
	}
	*c = ChecklistItem(w.plain)
	c.FixAction = action
	return nil
}

// StepReadiness is the evaluation result of a single step.
type StepReadiness struct {
	StepID    string           `json:"stepId"`
	Badges    Badges           `json:"badges"`
	Checklist []ChecklistItem  `json:"checklist"`
	Issues    []ReadinessIssue `json:"issues"`
}

// FunnelReadiness is the aggregated evaluation result of a funnel.
type FunnelReadiness struct {
	PublishBlocked bool                     `json:"publishBlocked"`
	GlobalIssues   []ReadinessIssue         `json:"globalIssues"`
	Steps          map[string]StepReadiness `json:"steps"`
	StepIDs        []string                 `json:"stepIds"`
}

// AllIssues returns global issues followed by step issues in funnel order.
func (r FunnelReadiness) AllIssues() []ReadinessIssue {
	out := append([]ReadinessIssue(nil), r.GlobalIssues...)
	for _, id := range r.StepIDs {
		out = append(out, r.Steps[id].Issues...)
	}
	return out
}

// Issue finds an issue by id, searching global issues first. Ids are unique
// per list only: unsync-<priceId> repeats on every checkout sharing the
// price, and Issue returns the first match in funnel order.
func (r FunnelReadiness) Issue(id string) (ReadinessIssue, bool) {
	for _, is := range r.AllIssues() {
		if is.ID == id {
			return is, true
		}
	}
	return ReadinessIssue{}, false
}

// IssueCounts tallies issues by severity.
type IssueCounts struct {
	Blockers int `json:"blockers"`
	Warnings int `json:"warnings"`
	Infos    int `json:"infos"`
}

// Counts tallies all issues of the evaluation by severity.
func (r FunnelReadiness) Counts() IssueCounts {
	var c IssueCounts
	for _, is := range r.AllIssues() {
		switch is.Severity {
		case SeverityBlocker:
			c.Blockers++
		case SeverityWarning:
			c.Warnings++
		case SeverityInfo:
			c.Infos++
		}
	}
	return c
}
