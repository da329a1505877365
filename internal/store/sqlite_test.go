package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-readiness/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleFunnel() *model.Funnel {
	return &model.Funnel{
		ID:   "fun_1",
		Name: "Launch",
		Steps: []model.Step{
			{ID: "c1", Kind: model.StepKindCheckout, Name: "Checkout", Config: model.CheckoutConfig{
				Items:       []model.LineItem{{PriceID: "p1", Quantity: 1}},
				ScreensMode: 1,
			}},
			{ID: "o1", Kind: model.StepKindOffer, Config: model.OfferConfig{CatalogPriceID: model.StringPtr("p2")}},
			{ID: "ty", Kind: model.StepKindThankYou, Config: model.ThankYouConfig{Headline: "Thanks"}},
		},
	}
}

// --- Funnels ---

func TestSQLite_SaveAndGetFunnel(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := sampleFunnel()
	require.NoError(t, st.SaveFunnel(ctx, f))
	assert.Equal(t, 1, f.Version)

	got, err := st.GetFunnel(ctx, "fun_1")
	require.NoError(t, err)
	assert.Equal(t, f, got)

	f.Name = "Relaunch"
	require.NoError(t, st.SaveFunnel(ctx, f))
	assert.Equal(t, 2, f.Version)
}

func TestSQLite_GetFunnel_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetFunnel(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListFunnels(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	second := sampleFunnel()
	second.ID = "fun_2"
	require.NoError(t, st.SaveFunnel(ctx, second))
	require.NoError(t, st.SaveFunnel(ctx, sampleFunnel()))
	require.NoError(t, st.SaveFunnel(ctx, &model.Funnel{ID: "fun_0"}))

	funnels, err := st.ListFunnels(ctx)
	require.NoError(t, err)
	require.Len(t, funnels, 3)
	assert.Equal(t, "fun_0", funnels[0].ID)
	assert.Empty(t, funnels[0].Steps)
	assert.Equal(t, "fun_2", funnels[2].ID)
}

func TestSQLite_UpdateSteps(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := sampleFunnel()
	require.NoError(t, st.SaveFunnel(ctx, f))

	steps := f.CloneSteps()[:1]
	version, err := st.UpdateSteps(ctx, f.ID, f.Version, steps)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	got, err := st.GetFunnel(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, steps, got.Steps)
	assert.Equal(t, 2, got.Version)
}

func TestSQLite_UpdateSteps_StaleVersion(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := sampleFunnel()
	require.NoError(t, st.SaveFunnel(ctx, f))
	_, err := st.UpdateSteps(ctx, f.ID, f.Version, f.Steps)
	require.NoError(t, err)

	_, err = st.UpdateSteps(ctx, f.ID, f.Version, f.Steps)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))

	_, err = st.UpdateSteps(ctx, "missing", 1, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_MarkPublished(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.SaveFunnel(ctx, sampleFunnel()))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := model.PublishMeta{Status: model.PublishStatusPublished, PublishedAt: &at}
	version, err := st.MarkPublished(ctx, "fun_1", 1, meta)
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	got, err := st.GetFunnel(ctx, "fun_1")
	require.NoError(t, err)
	assert.Equal(t, model.PublishStatusPublished, got.Publish.Status)
	require.NotNil(t, got.Publish.PublishedAt)
	assert.True(t, at.Equal(*got.Publish.PublishedAt))
	assert.Equal(t, 2, got.Version)

	_, err = st.MarkPublished(ctx, "fun_1", 1, meta)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Contains(t, err.Error(), "found 2")

	_, err = st.MarkPublished(ctx, "missing", 1, meta)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_SaveFunnelRejectsRepeatedStepID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	f := sampleFunnel()
	f.Steps = append(f.Steps, model.Step{ID: f.Steps[0].ID, Kind: model.StepKindPage})
	err := st.SaveFunnel(ctx, f)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicateStepID))

	_, err = st.GetFunnel(ctx, f.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

// --- Prices ---

func TestSQLite_Prices(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	prices := []model.Price{
		{ID: "p2", ProductID: "prod_club", UnitAmount: 2900, Currency: "usd",
			Billing: model.Billing{Type: model.BillingRecurring, Interval: "month"}},
		{ID: "p1", ProductID: "prod_course", Nickname: "Course", UnitAmount: 19700, Currency: "usd",
			Billing: model.Billing{Type: model.BillingOneTime}, StripePriceID: "price_1"},
	}
	require.NoError(t, st.UpsertPrices(ctx, prices))

	all, err := st.ListPrices(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, prices[1], all[0])
	assert.Equal(t, prices[0], all[1])

	some, err := st.ListPrices(ctx, "p2", "ghost")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "p2", some[0].ID)

	require.NoError(t, st.SetStripePriceIDs(ctx, map[string]string{"p2": "price_2"}))
	some, err = st.ListPrices(ctx, "p2")
	require.NoError(t, err)
	assert.True(t, some[0].Synced())

	err = st.SetStripePriceIDs(ctx, map[string]string{"ghost": "price_x"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_UpsertPrices_KeepsStripeID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	p := model.Price{ID: "p1", Billing: model.Billing{Type: model.BillingOneTime}, UnitAmount: 100}
	require.NoError(t, st.UpsertPrices(ctx, []model.Price{p}))
	require.NoError(t, st.SetStripePriceIDs(ctx, map[string]string{"p1": "price_1"}))

	p.UnitAmount = 200
	require.NoError(t, st.UpsertPrices(ctx, []model.Price{p}))

	got, err := st.ListPrices(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(200), got[0].UnitAmount)
	assert.Equal(t, "price_1", got[0].StripePriceID)
}

func TestSQLite_EmptyWrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	assert.NoError(t, st.UpsertPrices(ctx, nil))
	assert.NoError(t, st.SetStripePriceIDs(ctx, nil))

	prices, err := st.ListPrices(ctx)
	require.NoError(t, err)
	assert.Empty(t, prices)
}
