package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/funnel-readiness/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var funnelCols = []string{"id", "name", "steps", "publish", "version"}

func TestPostgresStore_GetFunnel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, steps, publish, version FROM funnels WHERE id = \$1`).
		WithArgs("fun_1").
		WillReturnRows(pgxmock.NewRows(funnelCols).AddRow(
			"fun_1", "Launch",
			[]byte(`[{"id":"c1","kind":"checkout","config":{"items":[{"priceId":"p1","quantity":1}]}}]`),
			[]byte(`{"status":"draft"}`),
			3,
		))

	f, err := s.GetFunnel(context.Background(), "fun_1")
	require.NoError(t, err)
	assert.Equal(t, "Launch", f.Name)
	assert.Equal(t, 3, f.Version)
	assert.Equal(t, model.PublishStatusDraft, f.Publish.Status)
	require.Len(t, f.Steps, 1)
	cfg := f.Steps[0].Config.(model.CheckoutConfig)
	assert.Equal(t, "p1", cfg.Items[0].PriceID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFunnel_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, steps, publish, version FROM funnels`).
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetFunnel(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveFunnel(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO funnels .* ON CONFLICT \(id\) DO UPDATE SET .* RETURNING version`).
		WithArgs("fun_1", "Launch", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(4))

	f := sampleFunnel()
	require.NoError(t, s.SaveFunnel(context.Background(), f))
	assert.Equal(t, 4, f.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSteps(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET steps = \$1, version = version \+ 1`).
		WithArgs(pgxmock.AnyArg(), "fun_1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(3))

	version, err := s.UpdateSteps(context.Background(), "fun_1", 2, sampleFunnel().Steps)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSteps_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET steps`).
		WithArgs(pgxmock.AnyArg(), "fun_1", 2).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT version FROM funnels WHERE id = \$1`).
		WithArgs("fun_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(5))

	_, err := s.UpdateSteps(context.Background(), "fun_1", 2, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Contains(t, err.Error(), "found 5")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSteps_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET steps`).
		WithArgs(pgxmock.AnyArg(), "gone", 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT version FROM funnels`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.UpdateSteps(context.Background(), "gone", 1, nil)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET publish = \$1`).
		WithArgs(pgxmock.AnyArg(), "fun_1", 3).
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(4))

	version, err := s.MarkPublished(context.Background(), "fun_1", 3, model.PublishMeta{Status: model.PublishStatusPublished})
	require.NoError(t, err)
	assert.Equal(t, 4, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished_Conflict(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET publish = \$1`).
		WithArgs(pgxmock.AnyArg(), "fun_1", 3).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT version FROM funnels WHERE id = \$1`).
		WithArgs("fun_1").
		WillReturnRows(pgxmock.NewRows([]string{"version"}).AddRow(4))

	_, err := s.MarkPublished(context.Background(), "fun_1", 3, model.PublishMeta{Status: model.PublishStatusPublished})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrVersionConflict))
	assert.Contains(t, err.Error(), "mark published fun_1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkPublished_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`UPDATE funnels SET publish = \$1`).
		WithArgs(pgxmock.AnyArg(), "gone", 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT version FROM funnels`).
		WithArgs("gone").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.MarkPublished(context.Background(), "gone", 1, model.PublishMeta{Status: model.PublishStatusPublished})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPrices(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	cols := []string{"id", "product_id", "nickname", "unit_amount", "currency", "billing_type", "billing_interval", "stripe_price_id"}
	mock.ExpectQuery(`SELECT id, product_id, .* FROM prices WHERE id = ANY\(\$1\) ORDER BY id`).
		WithArgs([]string{"p1", "p2"}).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("p1", "prod_1", "", int64(1000), "usd", "one_time", "", "price_1").
			AddRow("p2", "prod_2", "Club", int64(900), "usd", "recurring", "month", ""))

	prices, err := s.ListPrices(context.Background(), "p1", "p2")
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.Equal(t, model.BillingOneTime, prices[0].Billing.Type)
	assert.True(t, prices[0].Synced())
	assert.Equal(t, model.Billing{Type: model.BillingRecurring, Interval: "month"}, prices[1].Billing)
	assert.False(t, prices[1].Synced())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertPrices(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_prices"}, priceUpsert.Columns).WillReturnResult(1)
	mock.ExpectExec(`INSERT INTO "prices"`).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertPrices(context.Background(), []model.Price{
		{ID: "p1", Billing: model.Billing{Type: model.BillingOneTime}},
	})
	require.NoError(t, err)
	assert.NotContains(t, priceUpsert.UpdateCols, "stripe_price_id")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStripePriceIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET stripe_price_id = \$1 WHERE id = \$2`).
		WithArgs("price_a", "a").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE prices SET stripe_price_id`).
		WithArgs("price_b", "b").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.SetStripePriceIDs(context.Background(), map[string]string{"b": "price_b", "a": "price_a"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStripePriceIDs_UnknownPrice(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE prices SET stripe_price_id`).
		WithArgs("price_x", "ghost").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := s.SetStripePriceIDs(context.Background(), map[string]string{"ghost": "price_x"})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS funnels`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
