package readiness

import (
	"github.com/sells-group/funnel-readiness/internal/model"
)

// evaluateOffer runs the offer checks in order. A missing price ends the
// evaluation: routing and sync are meaningless until a price is chosen.
func evaluateOffer(stepID string, cfg model.OfferConfig, prices model.PriceIndex) ([]model.ReadinessIssue, model.Badges) {
	badges := model.Badges{
		Mode:   model.ModeOneClickOffer,
		Sync:   model.SyncNeedsSync,
		Charge: model.ChargeDeferred,
	}
	if cfg.OneClickEnabled {
		badges.Charge = model.ChargeImmediate
	}

	priceID := cfg.PriceID()
	if priceID == "" {
		return []model.ReadinessIssue{noPrice(stepID)}, badges
	}

	var issues []model.ReadinessIssue
	if price, ok := prices.Lookup(priceID); ok {
		if price.Synced() {
			badges.Sync = model.SyncSynced
		} else {
			issues = append(issues, unsyncedOffer(stepID, priceID))
		}
		if price.Billing.Type != model.BillingOneTime {
			issues = append(issues, subscriptionOffer(stepID))
		}
	}

	if !cfg.Routing.Complete() {
		issues = append(issues, incompleteRouting(stepID))
	}
	return issues, badges
}
