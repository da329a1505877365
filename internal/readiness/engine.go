// Package readiness evaluates whether a funnel is configured well enough to
// publish. Evaluation is pure: it reads a funnel and a price catalog
// snapshot, performs no I/O and keeps no state between calls, so it is safe
// to run on every edit and from concurrent goroutines.
package readiness

import (
	"github.com/sells-group/funnel-readiness/internal/model"
)

// Evaluate checks every step of the funnel against the price snapshot and
// aggregates the issues. Neither argument is modified.
func Evaluate(funnel model.Funnel, prices []model.Price) model.FunnelReadiness {
	idx := model.IndexPrices(prices)

	out := model.FunnelReadiness{
		GlobalIssues: globalIssues(funnel, prices),
		Steps:        make(map[string]model.StepReadiness, len(funnel.Steps)),
		StepIDs:      make([]string, 0, len(funnel.Steps)),
	}

	// Blockers are counted per step before results are keyed by id, so a
	// repeated id cannot hide one.
	blocked := hasBlocker(out.GlobalIssues)
	for _, step := range funnel.Steps {
		sr := evaluateStep(step, idx)
		if hasBlocker(sr.Issues) {
			blocked = true
		}
		if _, dup := out.Steps[step.ID]; !dup {
			out.StepIDs = append(out.StepIDs, step.ID)
		}
		out.Steps[step.ID] = sr
	}

	out.PublishBlocked = blocked
	return out
}

func evaluateStep(step model.Step, prices model.PriceIndex) model.StepReadiness {
	var (
		issues []model.ReadinessIssue
		badges model.Badges
	)

	switch cfg := step.ResolvedConfig().(type) {
	case model.CheckoutConfig:
		issues, badges = evaluateCheckout(step.ID, cfg, prices)
	case model.OfferConfig:
		issues, badges = evaluateOffer(step.ID, cfg, prices)
	case model.ThankYouConfig, model.PageConfig:
		// Content pages carry no payment configuration.
	case nil:
		// Unknown kinds are rejected by the decoder; nothing to check.
	}

	if issues == nil {
		issues = []model.ReadinessIssue{}
	}
	return model.StepReadiness{
		StepID:    step.ID,
		Badges:    badges,
		Checklist: checklist(issues),
		Issues:    issues,
	}
}

// globalIssues applies the workspace-level checks. The Stripe check looks at
// the whole catalog, not only at prices the funnel references.
func globalIssues(funnel model.Funnel, prices []model.Price) []model.ReadinessIssue {
	issues := []model.ReadinessIssue{}
	if funnel.HasPaymentSteps() && !anySynced(prices) {
		issues = append(issues, noStripeSync())
	}
	return issues
}

func anySynced(prices []model.Price) bool {
	for _, p := range prices {
		if p.Synced() {
			return true
		}
	}
	return false
}

func hasBlocker(issues []model.ReadinessIssue) bool {
	for _, is := range issues {
		if is.Severity == model.SeverityBlocker {
			return true
		}
	}
	return false
}
