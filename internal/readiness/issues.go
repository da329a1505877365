package readiness

import (
	"fmt"

	"github.com/sells-group/funnel-readiness/internal/model"
)

// Issue id prefixes. Ids are "<prefix>-<subject>" where the subject is the
// step id, except for unsynced checkout prices which use the price id.
const (
	IDNoStripeSync      = "no-stripe-sync"
	PrefixMixedBilling  = "mixed-billing"
	PrefixUnsynced      = "unsync"
	PrefixEmptyCheckout = "empty-checkout"
	PrefixNoPrice       = "no-price"
	PrefixUnsyncedOffer = "unsync-offer"
	PrefixSubscription  = "subscription-offer"
	PrefixRouting       = "incomplete-routing"
)

// IssueID builds the deterministic id of a readiness issue.
func IssueID(prefix, subject string) string {
	return prefix + "-" + subject
}

func noStripeSync() model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IDNoStripeSync,
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeGlobal,
		Title:       "No Stripe integration",
		Description: "None of the workspace prices exist in Stripe. Connect Stripe in payment settings before publishing.",
		FixAction:   model.OpenPaymentsSettings{},
	}
}

func mixedBilling(stepID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixMixedBilling, stepID),
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Mixed billing types",
		Description: "This checkout combines one-time and recurring prices. Split it into a one-time checkout and a subscription checkout.",
		FixAction:   model.SplitCheckoutByBilling{StepID: stepID},
	}
}

func unsyncedPrice(stepID string, p model.Price) model.ReadinessIssue {
	name := p.Nickname
	if name == "" {
		name = p.ID
	}
	return model.ReadinessIssue{
		ID:          IssueID(PrefixUnsynced, p.ID),
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Price not synced to Stripe",
		Description: fmt.Sprintf("%q has not been synced to Stripe and cannot be charged.", name),
		FixAction:   model.SyncOptions{PriceIDs: []string{p.ID}},
	}
}

func emptyCheckout(stepID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixEmptyCheckout, stepID),
		Severity:    model.SeverityWarning,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Checkout has no products",
		Description: "Add at least one product or order bump to this checkout.",
	}
}

func noPrice(stepID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixNoPrice, stepID),
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "No price selected",
		Description: "Choose the catalog price this offer charges.",
	}
}

func unsyncedOffer(stepID, priceID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixUnsyncedOffer, stepID),
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Offer price not synced to Stripe",
		Description: "The offer price has not been synced to Stripe and cannot be charged.",
		FixAction:   model.SyncOptions{PriceIDs: []string{priceID}},
	}
}

func subscriptionOffer(stepID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixSubscription, stepID),
		Severity:    model.SeverityBlocker,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Subscription price on one-click offer",
		Description: "One-click offers can only charge one-time prices. Pick a one-time price for this offer.",
	}
}

func incompleteRouting(stepID string) model.ReadinessIssue {
	return model.ReadinessIssue{
		ID:          IssueID(PrefixRouting, stepID),
		Severity:    model.SeverityWarning,
		Scope:       model.ScopeStep,
		StepID:      stepID,
		Title:       "Incomplete offer routing",
		Description: "Set where buyers go after accepting and after declining this offer.",
		FixAction:   model.RepairOfferRouting{StepID: stepID},
	}
}
