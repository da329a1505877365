package readiness

import (
	"github.com/sells-group/funnel-readiness/internal/model"
)

// checkoutEntry is a checkout item or order bump reduced to what the rules
// need. Bumps count as quantity one.
type checkoutEntry struct {
	PriceID  string
	Quantity int
	Bump     bool
}

func checkoutEntries(cfg model.CheckoutConfig) []checkoutEntry {
	entries := make([]checkoutEntry, 0, len(cfg.Items)+len(cfg.OrderBumps))
	for _, it := range cfg.Items {
		entries = append(entries, checkoutEntry{PriceID: it.PriceID, Quantity: it.Quantity})
	}
	for _, b := range cfg.OrderBumps {
		entries = append(entries, checkoutEntry{PriceID: b.PriceID, Quantity: 1, Bump: true})
	}
	return entries
}

func evaluateCheckout(stepID string, cfg model.CheckoutConfig, prices model.PriceIndex) ([]model.ReadinessIssue, model.Badges) {
	entries := checkoutEntries(cfg)

	var (
		billingTypes []model.BillingType
		unsynced     []model.Price
		seenBilling  = make(map[model.BillingType]bool)
		seenUnsynced = make(map[string]bool)
		allSynced    = true
	)

	for _, e := range entries {
		p, ok := prices.Lookup(e.PriceID)
		if !ok {
			// Dangling references are left out of the billing and sync checks.
			continue
		}
		if !seenBilling[p.Billing.Type] {
			seenBilling[p.Billing.Type] = true
			billingTypes = append(billingTypes, p.Billing.Type)
		}
		if !p.Synced() {
			allSynced = false
			if !seenUnsynced[p.ID] {
				seenUnsynced[p.ID] = true
				unsynced = append(unsynced, p)
			}
		}
	}

	var issues []model.ReadinessIssue
	if len(billingTypes) > 1 {
		issues = append(issues, mixedBilling(stepID))
	}
	for _, p := range unsynced {
		issues = append(issues, unsyncedPrice(stepID, p))
	}
	if len(entries) == 0 {
		issues = append(issues, emptyCheckout(stepID))
	}

	badges := model.Badges{Sync: syncBadge(allSynced)}
	if len(billingTypes) == 1 {
		badges.Mode = modeLabel(billingTypes[0])
	}
	return issues, badges
}

func modeLabel(t model.BillingType) string {
	switch t {
	case model.BillingOneTime:
		return model.ModeOneTime
	case model.BillingRecurring:
		return model.ModeSubscription
	default:
		return string(t)
	}
}

func syncBadge(synced bool) model.SyncBadge {
	if synced {
		return model.SyncSynced
	}
	return model.SyncNeedsSync
}
