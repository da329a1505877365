package model

// BillingType distinguishes one-time charges from recurring subscriptions.
type BillingType string

const (
	BillingOneTime   BillingType = "one_time"
	BillingRecurring BillingType = "recurring"
)

// Billing describes how a price is charged.
type Billing struct {
	Type     BillingType `json:"type"`
	Interval string      `json:"interval,omitempty"` // month, year; recurring only
}

// Price is a catalog price. The readiness engine treats it as read-only.
type Price struct {
	ID            string  `json:"id"`
	ProductID     string  `json:"productId,omitempty"`
	Nickname      string  `json:"nickname,omitempty"`
	UnitAmount    int64   `json:"unitAmount"` // minor units
	Currency      string  `json:"currency,omitempty"`
	Billing       Billing `json:"billing"`
	StripePriceID string  `json:"stripePriceId,omitempty"`
}

// Synced reports whether the price exists at the payment provider.
func (p Price) Synced() bool {
	return p.StripePriceID != ""
}

// PriceIndex maps price ids to prices.
type PriceIndex map[string]Price

// IndexPrices builds a lookup map from a catalog snapshot. Later entries
// win when ids repeat.
func IndexPrices(prices []Price) PriceIndex {
	idx := make(PriceIndex, len(prices))
	for _, p := range prices {
		idx[p.ID] = p
	}
	return idx
}

// Lookup returns the price with the given id.
func (idx PriceIndex) Lookup(id string) (Price, bool) {
	p, ok := idx[id]
	return p, ok
}
