package store

import (
	"context"
	"database/sql"
	"errors"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/funnel-readiness/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS funnels (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	steps      TEXT NOT NULL,
	publish    TEXT NOT NULL DEFAULT '{}',
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS prices (
	id               TEXT PRIMARY KEY,
	product_id       TEXT NOT NULL DEFAULT '',
	nickname         TEXT NOT NULL DEFAULT '',
	unit_amount      INTEGER NOT NULL DEFAULT 0,
	currency         TEXT NOT NULL DEFAULT '',
	billing_type     TEXT NOT NULL,
	billing_interval TEXT NOT NULL DEFAULT '',
	stripe_price_id  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_prices_product_id ON prices(product_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetFunnel(ctx context.Context, funnelID string) (*model.Funnel, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, steps, publish, version FROM funnels WHERE id = ?`, funnelID)
	f, err := scanSQLiteFunnel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get funnel %s", funnelID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get funnel %s", funnelID)
	}
	return f, nil
}

func (s *SQLiteStore) ListFunnels(ctx context.Context) ([]model.Funnel, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, steps, publish, version FROM funnels ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list funnels")
	}
	defer rows.Close() //nolint:errcheck

	var funnels []model.Funnel
	for rows.Next() {
		f, err := scanSQLiteFunnel(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: list funnels")
		}
		funnels = append(funnels, *f)
	}
	return funnels, eris.Wrap(rows.Err(), "sqlite: list funnels rows")
}

func (s *SQLiteStore) SaveFunnel(ctx context.Context, f *model.Funnel) error {
	steps, publish, err := encodeFunnel(f)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO funnels (id, name, steps, publish, version, updated_at)
		VALUES (?, ?, ?, ?, 1, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			steps = excluded.steps,
			publish = excluded.publish,
			version = funnels.version + 1,
			updated_at = excluded.updated_at
		RETURNING version`,
		f.ID, f.Name, string(steps), string(publish), time.Now().UTC(),
	).Scan(&f.Version)
	return eris.Wrapf(err, "sqlite: save funnel %s", f.ID)
}

func (s *SQLiteStore) UpdateSteps(ctx context.Context, funnelID string, expectedVersion int, steps []model.Step) (int, error) {
	stepsJSON, _, err := encodeFunnel(&model.Funnel{ID: funnelID, Steps: steps})
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRowContext(ctx,
		`UPDATE funnels SET steps = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? RETURNING version`,
		string(stepsJSON), time.Now().UTC(), funnelID, expectedVersion,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.missOrConflict(ctx, "update steps", funnelID, expectedVersion)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: update steps %s", funnelID)
	}
	return version, nil
}

func (s *SQLiteStore) missOrConflict(ctx context.Context, op, funnelID string, expectedVersion int) error {
	var current int
	err := s.db.QueryRowContext(ctx, `SELECT version FROM funnels WHERE id = ?`, funnelID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", op, funnelID)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %s", op, funnelID)
	}
	return eris.Wrapf(ErrVersionConflict, "sqlite: %s %s: expected version %d, found %d",
		op, funnelID, expectedVersion, current)
}

func (s *SQLiteStore) MarkPublished(ctx context.Context, funnelID string, expectedVersion int, publish model.PublishMeta) (int, error) {
	_, publishJSON, err := encodeFunnel(&model.Funnel{ID: funnelID, Publish: publish})
	if err != nil {
		return 0, err
	}

	var version int
	err = s.db.QueryRowContext(ctx,
		`UPDATE funnels SET publish = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ? RETURNING version`,
		string(publishJSON), time.Now().UTC(), funnelID, expectedVersion,
	).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, s.missOrConflict(ctx, "mark published", funnelID, expectedVersion)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: mark published %s", funnelID)
	}
	return version, nil
}

func (s *SQLiteStore) ListPrices(ctx context.Context, ids ...string) ([]model.Price, error) {
	query := `SELECT ` + priceColumns + ` FROM prices`
	args := make([]any, 0, len(ids))
	if len(ids) > 0 {
		query += ` WHERE id IN (?` + strings.Repeat(", ?", len(ids)-1) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list prices")
	}
	defer rows.Close() //nolint:errcheck

	var prices []model.Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan price")
		}
		prices = append(prices, p)
	}
	return prices, eris.Wrap(rows.Err(), "sqlite: list prices rows")
}

func (s *SQLiteStore) UpsertPrices(ctx context.Context, prices []model.Price) error {
	if len(prices) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin upsert prices")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO prices (`+priceColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			product_id = excluded.product_id,
			nickname = excluded.nickname,
			unit_amount = excluded.unit_amount,
			currency = excluded.currency,
			billing_type = excluded.billing_type,
			billing_interval = excluded.billing_interval`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare upsert prices")
	}
	defer stmt.Close() //nolint:errcheck

	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx, priceRow(p)...); err != nil {
			return eris.Wrapf(err, "sqlite: upsert price %s", p.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit upsert prices")
}

func (s *SQLiteStore) SetStripePriceIDs(ctx context.Context, ids map[string]string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin set stripe ids")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, priceID := range slices.Sorted(maps.Keys(ids)) {
		res, err := tx.ExecContext(ctx,
			`UPDATE prices SET stripe_price_id = ? WHERE id = ?`, ids[priceID], priceID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: set stripe id of %s", priceID)
		}
		if err := checkRowsAffected(res, "price", priceID); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit set stripe ids")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

func scanSQLiteFunnel(row scannable) (*model.Funnel, error) {
	var f model.Funnel
	var steps, publish string
	if err := row.Scan(&f.ID, &f.Name, &steps, &publish, &f.Version); err != nil {
		return nil, err
	}
	if err := decodeFunnel(&f, []byte(steps), []byte(publish)); err != nil {
		return nil, err
	}
	return &f, nil
}
