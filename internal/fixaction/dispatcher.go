// Package fixaction dispatches readiness fix actions to host-supplied
// handlers and reports the outcome as a structured result.
package fixaction

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/funnel-readiness/internal/model"
)

// Navigation targets.
const (
	PaymentsSettingsPath = "/settings/payments"
	catalogProductPath   = "/catalog/products/%s"
)

// Handlers are the host callbacks a fix action can invoke. Any of them may
// be nil; actions whose handler is missing fail without side effects.
type Handlers struct {
	Navigate       func(path string)
	SyncPrices     func(ctx context.Context, priceIDs []string) error
	SplitCheckout  func(ctx context.Context, stepID string) error
	EnableOneClick func(ctx context.Context, stepID string) error
	RepairRouting  func(ctx context.Context, stepID string) error
	InsertButtons  func(ctx context.Context, stepID string) error
}

// Result is the outcome of a fix action.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(msg string) Result { return Result{Success: true, Message: msg} }

func failed(msg string) Result { return Result{Success: false, Message: msg} }

func missing(what string) Result { return failed(what + " handler not available") }

// CatalogProductPath returns the navigation path of a catalog product.
func CatalogProductPath(productID string) string {
	return fmt.Sprintf(catalogProductPath, productID)
}

// Execute runs the handler behind action. It never panics and never returns
// an error: a missing handler, a handler error and a handler panic all come
// back as an unsuccessful Result.
func Execute(ctx context.Context, action model.FixAction, h Handlers) Result {
	res := execute(ctx, action, h)
	if !res.Success {
		typ := "<nil>"
		if action != nil {
			typ = string(action.Type())
		}
		zap.L().Warn("fixaction: action failed",
			zap.String("type", typ),
			zap.String("message", res.Message),
		)
	}
	return res
}

// ExecuteJSON decodes the wire form of a fix action and executes it.
func ExecuteJSON(ctx context.Context, data []byte, h Handlers) Result {
	action, err := model.DecodeFixAction(data)
	if err != nil {
		if errors.Is(err, model.ErrUnknownFixAction) {
			return Execute(ctx, nil, h)
		}
		return failed("Invalid fix action: " + err.Error())
	}
	return Execute(ctx, action, h)
}

func execute(ctx context.Context, action model.FixAction, h Handlers) Result {
	switch a := action.(type) {
	case model.OpenPaymentsSettings:
		if h.Navigate == nil {
			return missing("Navigation")
		}
		return navigate(h.Navigate, PaymentsSettingsPath, "Opened payment settings")

	case model.OpenCatalogProduct:
		if a.ProductID == "" {
			return failed("Product ID not provided")
		}
		if h.Navigate == nil {
			return missing("Navigation")
		}
		return navigate(h.Navigate, CatalogProductPath(a.ProductID), "Opened catalog product")

	case model.SyncOptions:
		if len(a.PriceIDs) == 0 {
			return failed("No price IDs provided")
		}
		if h.SyncPrices == nil {
			return missing("Price sync")
		}
		return run(ctx, func(ctx context.Context) error { return h.SyncPrices(ctx, a.PriceIDs) },
			fmt.Sprintf("Synced %d price(s) to Stripe", len(a.PriceIDs)))

	case model.EnableOneClick:
		return stepAction(ctx, a.StepID, h.EnableOneClick, "One-click", "Enabled one-click charging")

	case model.RepairOfferRouting:
		return stepAction(ctx, a.StepID, h.RepairRouting, "Routing repair", "Repaired offer routing")

	case model.InsertOfferButtons:
		return stepAction(ctx, a.StepID, h.InsertButtons, "Button insertion", "Inserted offer buttons")

	case model.SplitCheckoutByBilling:
		return stepAction(ctx, a.StepID, h.SplitCheckout, "Checkout split", "Split checkout by billing type")

	default:
		return failed("Unknown fix action")
	}
}

func stepAction(ctx context.Context, stepID string, fn func(context.Context, string) error, name, success string) Result {
	if stepID == "" {
		return failed("Step ID not provided")
	}
	if fn == nil {
		return missing(name)
	}
	return run(ctx, func(ctx context.Context) error { return fn(ctx, stepID) }, success)
}

func navigate(fn func(string), path, success string) (res Result) {
	defer recoverInto(&res)
	fn(path)
	return ok(success)
}

// run awaits exactly one handler call.
func run(ctx context.Context, fn func(context.Context) error, success string) (res Result) {
	defer recoverInto(&res)
	if err := fn(ctx); err != nil {
		return failed(err.Error())
	}
	return ok(success)
}

func recoverInto(res *Result) {
	if r := recover(); r != nil {
		*res = failed(fmt.Sprintf("%v", r))
	}
}
