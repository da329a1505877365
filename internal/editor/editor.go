// Package editor applies fix-action mutations to stored funnels. It is the
// host side of the fix-action dispatcher: every callback re-reads the
// funnel, changes one step and writes it back with an optimistic version
// check.
package editor

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/funnel-readiness/internal/fixaction"
	"github.com/sells-group/funnel-readiness/internal/model"
	"github.com/sells-group/funnel-readiness/internal/readiness"
	"github.com/sells-group/funnel-readiness/internal/splitter"
	"github.com/sells-group/funnel-readiness/internal/store"
)

// Default offer button labels.
const (
	DefaultAcceptLabel  = "Yes, add this to my order"
	DefaultDeclineLabel = "No thanks"
)

var (
	ErrNothingToSplit    = eris.New("editor: checkout has no mixed billing to split")
	ErrPublishBlocked    = eris.New("editor: publish blocked by readiness issues")
	ErrNoRouteTarget     = eris.New("editor: no step to route the offer to")
	ErrUnsupportedStep   = eris.New("editor: action not supported for step kind")
	ErrSyncNotConfigured = eris.New("editor: price sync not configured")
)

// Syncer pushes prices to the payment provider and returns the provider
// price id of each.
type Syncer interface {
	Sync(ctx context.Context, prices []model.Price) (map[string]string, error)
}

// Editor binds readiness fixes to a store.
type Editor struct {
	store  store.Store
	syncer Syncer
	now    func() time.Time
}

// New creates an Editor. syncer may be nil, in which case price sync fails.
func New(st store.Store, syncer Syncer) *Editor {
	return &Editor{store: st, syncer: syncer, now: time.Now}
}

func (e *Editor) load(ctx context.Context, funnelID string) (*model.Funnel, []model.Price, error) {
	f, err := e.store.GetFunnel(ctx, funnelID)
	if err != nil {
		return nil, nil, err
	}
	prices, err := e.store.ListPrices(ctx)
	if err != nil {
		return nil, nil, err
	}
	return f, prices, nil
}

// Readiness evaluates the stored funnel against the current catalog.
func (e *Editor) Readiness(ctx context.Context, funnelID string) (model.FunnelReadiness, error) {
	f, prices, err := e.load(ctx, funnelID)
	if err != nil {
		return model.FunnelReadiness{}, err
	}
	return readiness.Evaluate(*f, prices), nil
}

// mutateStep applies fn to a copy of one step and persists the result.
func (e *Editor) mutateStep(ctx context.Context, funnelID, stepID string, fn func(f *model.Funnel, step *model.Step) error) error {
	f, err := e.store.GetFunnel(ctx, funnelID)
	if err != nil {
		return err
	}
	idx := f.StepIndex(stepID)
	if idx < 0 {
		return eris.Wrapf(splitter.ErrStepNotFound, "editor: funnel %s step %s", funnelID, stepID)
	}

	steps := f.CloneSteps()
	steps[idx].Config = steps[idx].ResolvedConfig()
	if err := fn(f, &steps[idx]); err != nil {
		return err
	}
	if _, err := e.store.UpdateSteps(ctx, funnelID, f.Version, steps); err != nil {
		return eris.Wrapf(err, "editor: update funnel %s", funnelID)
	}
	return nil
}

// EnableOneClick turns on one-click charging for an offer, or one-click
// offers for a checkout.
func (e *Editor) EnableOneClick(ctx context.Context, funnelID, stepID string) error {
	return e.mutateStep(ctx, funnelID, stepID, func(_ *model.Funnel, step *model.Step) error {
		switch cfg := step.Config.(type) {
		case model.OfferConfig:
			cfg.OneClickEnabled = true
			step.Config = cfg
		case model.CheckoutConfig:
			cfg.OneClickOffersEnabled = true
			step.Config = cfg
		default:
			return eris.Wrapf(ErrUnsupportedStep, "enable one-click on %s step %s", step.Kind, step.ID)
		}
		zap.L().Info("editor: one-click enabled", zap.String("funnel_id", funnelID), zap.String("step_id", stepID))
		return nil
	})
}

// RepairRouting fills missing accept/decline routes of an offer with the
// next step, or the first thank-you page when the offer is last.
func (e *Editor) RepairRouting(ctx context.Context, funnelID, stepID string) error {
	return e.mutateStep(ctx, funnelID, stepID, func(f *model.Funnel, step *model.Step) error {
		cfg, ok := step.Config.(model.OfferConfig)
		if !ok {
			return eris.Wrapf(ErrUnsupportedStep, "repair routing on %s step %s", step.Kind, step.ID)
		}
		target := routeTarget(f, stepID)
		if target == "" {
			return eris.Wrapf(ErrNoRouteTarget, "offer %s", stepID)
		}
		if cfg.Routing.OnAcceptStepID == "" {
			cfg.Routing.OnAcceptStepID = target
		}
		if cfg.Routing.OnDeclineStepID == "" {
			cfg.Routing.OnDeclineStepID = target
		}
		step.Config = cfg
		zap.L().Info("editor: offer routing repaired",
			zap.String("funnel_id", funnelID), zap.String("step_id", stepID), zap.String("target", target))
		return nil
	})
}

func routeTarget(f *model.Funnel, stepID string) string {
	idx := f.StepIndex(stepID)
	if idx >= 0 && idx+1 < len(f.Steps) {
		return f.Steps[idx+1].ID
	}
	for _, s := range f.Steps {
		if s.Kind == model.StepKindThankYou && s.ID != stepID {
			return s.ID
		}
	}
	return ""
}

// InsertOfferButtons sets default labels on an offer's missing buttons.
func (e *Editor) InsertOfferButtons(ctx context.Context, funnelID, stepID string) error {
	return e.mutateStep(ctx, funnelID, stepID, func(_ *model.Funnel, step *model.Step) error {
		cfg, ok := step.Config.(model.OfferConfig)
		if !ok {
			return eris.Wrapf(ErrUnsupportedStep, "insert buttons on %s step %s", step.Kind, step.ID)
		}
		if cfg.Buttons.Accept == "" {
			cfg.Buttons.Accept = DefaultAcceptLabel
		}
		if cfg.Buttons.Decline == "" {
			cfg.Buttons.Decline = DefaultDeclineLabel
		}
		step.Config = cfg
		return nil
	})
}

// SplitCheckout splits a mixed-billing checkout. The funnel is re-read and
// re-evaluated first so a split that already happened is not repeated, and
// the write fails with store.ErrVersionConflict if the funnel changed since.
func (e *Editor) SplitCheckout(ctx context.Context, funnelID, stepID string) (splitter.Result, error) {
	f, prices, err := e.load(ctx, funnelID)
	if err != nil {
		return splitter.Result{}, err
	}

	report := readiness.Evaluate(*f, prices)
	if _, found := report.Issue(readiness.IssueID(readiness.PrefixMixedBilling, stepID)); !found {
		return splitter.Result{}, eris.Wrapf(ErrNothingToSplit, "funnel %s step %s", funnelID, stepID)
	}

	return splitter.Split(ctx, *f, prices, stepID, func(ctx context.Context, steps []model.Step) error {
		_, err := e.store.UpdateSteps(ctx, funnelID, f.Version, steps)
		return err
	})
}

// SyncPrices pushes the given prices to the payment provider and records
// the returned provider ids.
func (e *Editor) SyncPrices(ctx context.Context, priceIDs []string) error {
	if e.syncer == nil {
		return ErrSyncNotConfigured
	}
	prices, err := e.store.ListPrices(ctx, priceIDs...)
	if err != nil {
		return err
	}
	if len(prices) != len(uniq(priceIDs)) {
		found := model.IndexPrices(prices)
		for _, id := range priceIDs {
			if _, ok := found.Lookup(id); !ok {
				return eris.Wrapf(store.ErrNotFound, "editor: price %s", id)
			}
		}
	}

	ids, err := e.syncer.Sync(ctx, prices)
	if err != nil {
		return eris.Wrap(err, "editor: sync prices")
	}
	if err := e.store.SetStripePriceIDs(ctx, ids); err != nil {
		return eris.Wrap(err, "editor: record stripe ids")
	}
	zap.L().Info("editor: prices synced", zap.Strings("price_ids", priceIDs))
	return nil
}

func uniq(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Publish marks the funnel published unless readiness reports a blocker.
// The evaluation is returned in both cases. The write carries the version
// that was evaluated, so an edit landing in between fails with
// store.ErrVersionConflict.
func (e *Editor) Publish(ctx context.Context, funnelID string) (*model.Funnel, model.FunnelReadiness, error) {
	f, prices, err := e.load(ctx, funnelID)
	if err != nil {
		return nil, model.FunnelReadiness{}, err
	}
	report := readiness.Evaluate(*f, prices)
	if report.PublishBlocked {
		counts := report.Counts()
		return nil, report, eris.Wrapf(ErrPublishBlocked, "funnel %s has %d blockers", funnelID, counts.Blockers)
	}

	at := e.now().UTC()
	meta := f.Publish
	meta.Status = model.PublishStatusPublished
	meta.PublishedAt = &at
	version, err := e.store.MarkPublished(ctx, funnelID, f.Version, meta)
	if err != nil {
		return nil, report, eris.Wrapf(err, "editor: publish funnel %s", funnelID)
	}
	f.Publish = meta
	f.Version = version

	zap.L().Info("editor: funnel published", zap.String("funnel_id", funnelID))
	return f, report, nil
}

// Handlers binds the editor to one funnel for the fix-action dispatcher.
// navigate may be nil when the caller cannot navigate.
func (e *Editor) Handlers(funnelID string, navigate func(path string)) fixaction.Handlers {
	h := fixaction.Handlers{
		Navigate: navigate,
		SplitCheckout: func(ctx context.Context, stepID string) error {
			_, err := e.SplitCheckout(ctx, funnelID, stepID)
			return err
		},
		EnableOneClick: func(ctx context.Context, stepID string) error {
			return e.EnableOneClick(ctx, funnelID, stepID)
		},
		RepairRouting: func(ctx context.Context, stepID string) error {
			return e.RepairRouting(ctx, funnelID, stepID)
		},
		InsertButtons: func(ctx context.Context, stepID string) error {
			return e.InsertOfferButtons(ctx, funnelID, stepID)
		},
	}
	if e.syncer != nil {
		h.SyncPrices = e.SyncPrices
	}
	return h
}
