package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-readiness/internal/model"
)

func TestImportDocuments(t *testing.T) {
	useTestConfig(t)
	st := seedStore(t)
	ctx := context.Background()

	f, err := st.GetFunnel(ctx, "launch")
	require.NoError(t, err)
	assert.Equal(t, "Course launch", f.Name)
	assert.Len(t, f.Steps, 4)
	assert.Equal(t, 1, f.Version)

	prices, err := st.ListPrices(ctx)
	require.NoError(t, err)
	assert.Len(t, prices, 4)
}

func TestImportDocuments_KeepsSyncedIDs(t *testing.T) {
	useTestConfig(t)
	st := seedStore(t)
	ctx := context.Background()

	require.NoError(t, st.SetStripePriceIDs(ctx, map[string]string{"club": "price_club"}))

	// Re-importing the catalog must not forget the provider id.
	club := model.Price{ID: "club", UnitAmount: 3900, Currency: "usd",
		Billing: model.Billing{Type: model.BillingRecurring, Interval: "month"}}
	require.NoError(t, importDocuments(ctx, st, []model.Price{club}, nil))

	got, err := st.ListPrices(ctx, "club")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(3900), got[0].UnitAmount)
	assert.Equal(t, "price_club", got[0].StripePriceID)
}

func TestImportDocuments_BumpsVersion(t *testing.T) {
	useTestConfig(t)
	st := seedStore(t)
	ctx := context.Background()

	f, err := st.GetFunnel(ctx, "launch")
	require.NoError(t, err)
	require.NoError(t, importDocuments(ctx, st, nil, []*model.Funnel{f}))
	assert.Equal(t, 2, f.Version)
}
