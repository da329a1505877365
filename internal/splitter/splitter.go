// Package splitter repairs mixed-billing checkouts by moving recurring
// items into a new subscription checkout placed right after the original.
//
// Splitting is a state transition, not a pure function: running it twice
// on a stale copy of a funnel creates two subscription steps. Callers must
// re-read and re-evaluate the funnel before allowing another split.
package splitter

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-readiness/internal/model"
)

var (
	ErrStepNotFound = eris.New("splitter: step not found")
	ErrNotCheckout  = eris.New("splitter: step is not a checkout")
)

// Result describes what a split did.
type Result struct {
	OneTimeStepID      string  `json:"oneTimeStepId"`
	SubscriptionStepID *string `json:"subscriptionStepId"`
	MovedItemsCount    int     `json:"movedItemsCount"`
}

// PersistFunc stores the full updated step list of a funnel.
type PersistFunc func(ctx context.Context, steps []model.Step) error

// IDFunc generates ids for new steps.
type IDFunc func() string

// NewStepID returns a fresh step id.
func NewStepID() string {
	return "step_" + uuid.NewString()
}

// ReturnPath is where the embedded subscription checkout of a funnel
// returns the buyer after payment.
func ReturnPath(funnelID string) string {
	return fmt.Sprintf("/funnels/%s/subscription/return", funnelID)
}

// Split plans the split of stepID and hands the new step list to persist.
// Nothing is persisted when planning fails.
func Split(ctx context.Context, funnel model.Funnel, prices []model.Price, stepID string, persist PersistFunc) (Result, error) {
	steps, res, err := Plan(funnel, prices, stepID, NewStepID)
	if err != nil {
		return Result{}, err
	}
	if err := persist(ctx, steps); err != nil {
		return Result{}, eris.Wrapf(err, "splitter: persist funnel %s", funnel.ID)
	}

	fields := []zap.Field{
		zap.String("funnel_id", funnel.ID),
		zap.String("step_id", stepID),
		zap.Int("moved_items", res.MovedItemsCount),
	}
	if res.SubscriptionStepID != nil {
		fields = append(fields, zap.String("subscription_step_id", *res.SubscriptionStepID))
	}
	zap.L().Info("splitter: checkout split", fields...)
	return res, nil
}

// Plan computes the step list after splitting stepID. Items and order bumps
// whose price is recurring move to a new checkout; everything else, including
// entries whose price is not in the snapshot, stays on the original step.
// The funnel argument is not modified.
func Plan(funnel model.Funnel, prices []model.Price, stepID string, newID IDFunc) ([]model.Step, Result, error) {
	idx := funnel.StepIndex(stepID)
	if idx < 0 {
		return nil, Result{}, eris.Wrapf(ErrStepNotFound, "step %s", stepID)
	}
	steps := funnel.CloneSteps()
	original := steps[idx]
	cfg, ok := original.ResolvedConfig().(model.CheckoutConfig)
	if !ok || original.Kind != model.StepKindCheckout {
		return nil, Result{}, eris.Wrapf(ErrNotCheckout, "step %s is %s", stepID, original.Kind)
	}

	b := classify(cfg, model.IndexPrices(prices))

	cfg.Items = b.oneTimeItems
	cfg.OrderBumps = b.oneTimeBumps
	cfg.OneClickOffersEnabled = true
	original.Config = cfg
	steps[idx] = original

	res := Result{OneTimeStepID: original.ID}
	if b.moved() == 0 {
		return steps, res, nil
	}

	sub := model.Step{
		ID:   newID(),
		Kind: model.StepKindCheckout,
		Name: subscriptionName(original.Name),
		Config: model.CheckoutConfig{
			Items:                 b.subItems,
			OrderBumps:            b.subBumps,
			ScreensMode:           1,
			OneClickOffersEnabled: false,
			Subscription: model.SubscriptionConfig{
				Experience:      model.ExperienceEmbeddedCheckout,
				CollectShipping: false,
				ReturnPath:      ReturnPath(funnel.ID),
			},
			OnSuccessStepID: cfg.OnSuccessStepID,
		},
	}

	out := make([]model.Step, 0, len(steps)+1)
	out = append(out, steps[:idx+1]...)
	out = append(out, sub)
	out = append(out, steps[idx+1:]...)

	res.SubscriptionStepID = &sub.ID
	res.MovedItemsCount = b.moved()
	return out, res, nil
}

type buckets struct {
	oneTimeItems []model.LineItem
	oneTimeBumps []model.OrderBump
	subItems     []model.LineItem
	subBumps     []model.OrderBump
}

func (b buckets) moved() int {
	return len(b.subItems) + len(b.subBumps)
}

func classify(cfg model.CheckoutConfig, prices model.PriceIndex) buckets {
	b := buckets{
		oneTimeItems: []model.LineItem{},
		oneTimeBumps: []model.OrderBump{},
	}
	for _, it := range cfg.Items {
		if isRecurring(it.PriceID, prices) {
			b.subItems = append(b.subItems, it)
		} else {
			b.oneTimeItems = append(b.oneTimeItems, it)
		}
	}
	for _, bump := range cfg.OrderBumps {
		if isRecurring(bump.PriceID, prices) {
			b.subBumps = append(b.subBumps, bump)
		} else {
			b.oneTimeBumps = append(b.oneTimeBumps, bump)
		}
	}
	if b.subItems == nil {
		b.subItems = []model.LineItem{}
	}
	if b.subBumps == nil {
		b.subBumps = []model.OrderBump{}
	}
	return b
}

func isRecurring(priceID string, prices model.PriceIndex) bool {
	p, ok := prices.Lookup(priceID)
	return ok && p.Billing.Type == model.BillingRecurring
}

func subscriptionName(name string) string {
	if name == "" {
		return "Subscription checkout"
	}
	return name + " (subscription)"
}
