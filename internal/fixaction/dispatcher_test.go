package fixaction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-readiness/internal/model"
)

// recorder captures every handler call.
type recorder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (r *recorder) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.err
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Navigate: func(path string) { _ = r.record("navigate " + path) },
		SyncPrices: func(_ context.Context, ids []string) error {
			return r.record("sync " + ids[0])
		},
		SplitCheckout: func(_ context.Context, stepID string) error {
			return r.record("split " + stepID)
		},
		EnableOneClick: func(_ context.Context, stepID string) error {
			return r.record("one-click " + stepID)
		},
		RepairRouting: func(_ context.Context, stepID string) error {
			return r.record("routing " + stepID)
		},
		InsertButtons: func(_ context.Context, stepID string) error {
			return r.record("buttons " + stepID)
		},
	}
}

func allActions() []model.FixAction {
	return []model.FixAction{
		model.OpenPaymentsSettings{},
		model.OpenCatalogProduct{ProductID: "prod_1"},
		model.SyncOptions{PriceIDs: []string{"p1"}},
		model.EnableOneClick{StepID: "s1"},
		model.RepairOfferRouting{StepID: "s1"},
		model.InsertOfferButtons{StepID: "s1"},
		model.SplitCheckoutByBilling{StepID: "s1"},
	}
}

func TestExecute_Success(t *testing.T) {
	wantCalls := []string{
		"navigate /settings/payments",
		"navigate /catalog/products/prod_1",
		"sync p1",
		"one-click s1",
		"routing s1",
		"buttons s1",
		"split s1",
	}

	actions := allActions()
	require.Len(t, actions, len(model.FixActionTypes))
	for i, action := range actions {
		t.Run(string(action.Type()), func(t *testing.T) {
			rec := &recorder{}
			res := Execute(context.Background(), action, rec.handlers())
			assert.True(t, res.Success, res.Message)
			assert.NotEmpty(t, res.Message)
			assert.Equal(t, []string{wantCalls[i]}, rec.calls)
		})
	}
}

func TestExecute_MissingHandler(t *testing.T) {
	for _, action := range allActions() {
		t.Run(string(action.Type()), func(t *testing.T) {
			rec := &recorder{}
			h := rec.handlers()
			switch action.(type) {
			case model.OpenPaymentsSettings, model.OpenCatalogProduct:
				h.Navigate = nil
			case model.SyncOptions:
				h.SyncPrices = nil
			case model.EnableOneClick:
				h.EnableOneClick = nil
			case model.RepairOfferRouting:
				h.RepairRouting = nil
			case model.InsertOfferButtons:
				h.InsertButtons = nil
			case model.SplitCheckoutByBilling:
				h.SplitCheckout = nil
			}

			res := Execute(context.Background(), action, h)
			assert.False(t, res.Success)
			assert.Contains(t, res.Message, "handler not available")
			assert.Empty(t, rec.calls)
		})
	}
}

func TestExecute_EmptyHandlers(t *testing.T) {
	for _, action := range allActions() {
		res := Execute(context.Background(), action, Handlers{})
		assert.False(t, res.Success, action.Type())
	}
}

func TestExecute_HandlerError(t *testing.T) {
	for _, action := range allActions()[2:] {
		t.Run(string(action.Type()), func(t *testing.T) {
			rec := &recorder{err: errors.New("stripe unavailable")}
			res := Execute(context.Background(), action, rec.handlers())
			assert.Equal(t, Result{Success: false, Message: "stripe unavailable"}, res)
			assert.Len(t, rec.calls, 1)
		})
	}
}

func TestExecute_HandlerPanic(t *testing.T) {
	h := Handlers{
		Navigate: func(string) { panic("router gone") },
		SplitCheckout: func(context.Context, string) error {
			panic(errors.New("nil funnel"))
		},
	}

	res := Execute(context.Background(), model.OpenPaymentsSettings{}, h)
	assert.Equal(t, Result{Success: false, Message: "router gone"}, res)

	res = Execute(context.Background(), model.SplitCheckoutByBilling{StepID: "c1"}, h)
	assert.Equal(t, Result{Success: false, Message: "nil funnel"}, res)
}

func TestExecute_MissingFields(t *testing.T) {
	rec := &recorder{}
	h := rec.handlers()

	res := Execute(context.Background(), model.OpenCatalogProduct{}, h)
	assert.Equal(t, Result{Success: false, Message: "Product ID not provided"}, res)

	res = Execute(context.Background(), model.SyncOptions{}, h)
	assert.False(t, res.Success)

	res = Execute(context.Background(), model.RepairOfferRouting{}, h)
	assert.Equal(t, Result{Success: false, Message: "Step ID not provided"}, res)

	assert.Empty(t, rec.calls)
}

func TestExecute_UnknownAction(t *testing.T) {
	rec := &recorder{}

	res := Execute(context.Background(), nil, rec.handlers())
	assert.Equal(t, Result{Success: false, Message: "Unknown fix action"}, res)
	assert.Empty(t, rec.calls)
}

func TestExecuteJSON(t *testing.T) {
	rec := &recorder{}
	h := rec.handlers()

	res := ExecuteJSON(context.Background(), []byte(`{"type":"split_checkout_by_billing","stepId":"c1"}`), h)
	assert.True(t, res.Success)
	assert.Equal(t, []string{"split c1"}, rec.calls)

	res = ExecuteJSON(context.Background(), []byte(`{"type":"rename_funnel"}`), h)
	assert.Equal(t, Result{Success: false, Message: "Unknown fix action"}, res)

	res = ExecuteJSON(context.Background(), []byte(`{`), h)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Invalid fix action")
	assert.Len(t, rec.calls, 1)
}

func TestTracker(t *testing.T) {
	var tr Tracker

	assert.True(t, tr.Begin("mixed-billing-c1"))
	assert.True(t, tr.Busy("mixed-billing-c1"))
	assert.False(t, tr.Begin("mixed-billing-c1"))
	assert.True(t, tr.Begin("unsync-p1"))

	tr.End("mixed-billing-c1")
	assert.False(t, tr.Busy("mixed-billing-c1"))
	assert.True(t, tr.Begin("mixed-billing-c1"))
}

func TestTracker_Concurrent(t *testing.T) {
	var (
		tr   Tracker
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tr.Begin("issue") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
