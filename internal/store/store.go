// Package store persists funnels and the price catalog.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-readiness/internal/model"
)

var (
	// ErrNotFound is returned when a funnel or price does not exist.
	ErrNotFound = eris.New("store: not found")
	// ErrVersionConflict is returned when a write is based on a stale funnel version.
	ErrVersionConflict = eris.New("store: version conflict")
)

// Store defines the persistence interface for funnels and prices.
type Store interface {
	// Funnels
	GetFunnel(ctx context.Context, funnelID string) (*model.Funnel, error)
	ListFunnels(ctx context.Context) ([]model.Funnel, error)
	// SaveFunnel inserts or replaces a funnel and sets f.Version to the stored version.
	SaveFunnel(ctx context.Context, f *model.Funnel) error
	// UpdateSteps replaces the step array when the stored version matches
	// expectedVersion and returns the new version.
	UpdateSteps(ctx context.Context, funnelID string, expectedVersion int, steps []model.Step) (int, error)
	// MarkPublished stores the publish metadata under the same version check
	// as UpdateSteps and returns the new version.
	MarkPublished(ctx context.Context, funnelID string, expectedVersion int, publish model.PublishMeta) (int, error)

	// Prices. ListPrices with no ids returns the whole catalog.
	ListPrices(ctx context.Context, ids ...string) ([]model.Price, error)
	// UpsertPrices never overwrites a stored Stripe price id; use SetStripePriceIDs.
	UpsertPrices(ctx context.Context, prices []model.Price) error
	SetStripePriceIDs(ctx context.Context, ids map[string]string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

type scannable interface {
	Scan(dest ...any) error
}

func encodeFunnel(f *model.Funnel) (steps, publish []byte, err error) {
	if err := f.CheckStepIDs(); err != nil {
		return nil, nil, err
	}
	stepList := f.Steps
	if stepList == nil {
		stepList = []model.Step{}
	}
	steps, err = json.Marshal(stepList)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: marshal steps of %s", f.ID)
	}
	publish, err = json.Marshal(f.Publish)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "store: marshal publish of %s", f.ID)
	}
	return steps, publish, nil
}

func decodeFunnel(f *model.Funnel, steps, publish []byte) error {
	if err := json.Unmarshal(steps, &f.Steps); err != nil {
		return eris.Wrapf(err, "store: unmarshal steps of %s", f.ID)
	}
	if len(publish) > 0 {
		if err := json.Unmarshal(publish, &f.Publish); err != nil {
			return eris.Wrapf(err, "store: unmarshal publish of %s", f.ID)
		}
	}
	return nil
}

func scanPrice(row scannable) (model.Price, error) {
	var p model.Price
	var billingType string
	err := row.Scan(&p.ID, &p.ProductID, &p.Nickname, &p.UnitAmount, &p.Currency,
		&billingType, &p.Billing.Interval, &p.StripePriceID)
	p.Billing.Type = model.BillingType(billingType)
	return p, err
}

const priceColumns = "id, product_id, nickname, unit_amount, currency, billing_type, billing_interval, stripe_price_id"

func priceRow(p model.Price) []any {
	return []any{p.ID, p.ProductID, p.Nickname, p.UnitAmount, p.Currency,
		string(p.Billing.Type), p.Billing.Interval, p.StripePriceID}
}
