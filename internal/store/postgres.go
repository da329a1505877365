package store

import (
	"context"
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/funnel-readiness/internal/db"
	"github.com/sells-group/funnel-readiness/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS funnels (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	steps      JSONB NOT NULL DEFAULT '[]',
	publish    JSONB NOT NULL DEFAULT '{}',
	version    INTEGER NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS prices (
	id               TEXT PRIMARY KEY,
	product_id       TEXT NOT NULL DEFAULT '',
	nickname         TEXT NOT NULL DEFAULT '',
	unit_amount      BIGINT NOT NULL DEFAULT 0,
	currency         TEXT NOT NULL DEFAULT '',
	billing_type     TEXT NOT NULL,
	billing_interval TEXT NOT NULL DEFAULT '',
	stripe_price_id  TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_prices_product_id ON prices(product_id);
`

// priceUpsert leaves stripe_price_id out of the update set so a catalog
// import never clears a synced price.
var priceUpsert = db.UpsertConfig{
	Table:        "prices",
	Columns:      []string{"id", "product_id", "nickname", "unit_amount", "currency", "billing_type", "billing_interval", "stripe_price_id"},
	ConflictKeys: []string{"id"},
	UpdateCols:   []string{"product_id", "nickname", "unit_amount", "currency", "billing_type", "billing_interval"},
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetFunnel(ctx context.Context, funnelID string) (*model.Funnel, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, steps, publish, version FROM funnels WHERE id = $1`, funnelID)
	f, err := scanPostgresFunnel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get funnel %s", funnelID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get funnel %s", funnelID)
	}
	return f, nil
}

func (s *PostgresStore) ListFunnels(ctx context.Context) ([]model.Funnel, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, steps, publish, version FROM funnels ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list funnels")
	}
	defer rows.Close()

	var funnels []model.Funnel
	for rows.Next() {
		f, err := scanPostgresFunnel(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list funnels")
		}
		funnels = append(funnels, *f)
	}
	return funnels, eris.Wrap(rows.Err(), "postgres: list funnels rows")
}

func (s *PostgresStore) SaveFunnel(ctx context.Context, f *model.Funnel) error {
	steps, publish, err := encodeFunnel(f)
	if err != nil {
		return err
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO funnels (id, name, steps, publish, version, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			steps = EXCLUDED.steps,
			publish = EXCLUDED.publish,
			version = funnels.version + 1,
			updated_at = now()
		RETURNING version`,
		f.ID, f.Name, steps, publish,
	).Scan(&f.Version)
	return eris.Wrapf(err, "postgres: save funnel %s", f.ID)
}

func (s *PostgresStore) UpdateSteps(ctx context.Context, funnelID string, expectedVersion int, steps []model.Step) (int, error) {
	stepsJSON, _, err := encodeFunnel(&model.Funnel{ID: funnelID, Steps: steps})
	if err != nil {
		return 0, err
	}

	var version int
	err = s.pool.QueryRow(ctx,
		`UPDATE funnels SET steps = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3 RETURNING version`,
		stepsJSON, funnelID, expectedVersion,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, s.missOrConflict(ctx, "update steps", funnelID, expectedVersion)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: update steps %s", funnelID)
	}
	return version, nil
}

func (s *PostgresStore) missOrConflict(ctx context.Context, op, funnelID string, expectedVersion int) error {
	var current int
	err := s.pool.QueryRow(ctx, `SELECT version FROM funnels WHERE id = $1`, funnelID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "postgres: %s %s", op, funnelID)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: %s %s", op, funnelID)
	}
	return eris.Wrapf(ErrVersionConflict, "postgres: %s %s: expected version %d, found %d",
		op, funnelID, expectedVersion, current)
}

func (s *PostgresStore) MarkPublished(ctx context.Context, funnelID string, expectedVersion int, publish model.PublishMeta) (int, error) {
	_, publishJSON, err := encodeFunnel(&model.Funnel{ID: funnelID, Publish: publish})
	if err != nil {
		return 0, err
	}

	var version int
	err = s.pool.QueryRow(ctx,
		`UPDATE funnels SET publish = $1, version = version + 1, updated_at = now()
		 WHERE id = $2 AND version = $3 RETURNING version`,
		publishJSON, funnelID, expectedVersion,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, s.missOrConflict(ctx, "mark published", funnelID, expectedVersion)
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: mark published %s", funnelID)
	}
	return version, nil
}

func (s *PostgresStore) ListPrices(ctx context.Context, ids ...string) ([]model.Price, error) {
	query := `SELECT ` + priceColumns + ` FROM prices`
	var args []any
	if len(ids) > 0 {
		query += ` WHERE id = ANY($1)`
		args = append(args, ids)
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list prices")
	}
	defer rows.Close()

	var prices []model.Price
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan price")
		}
		prices = append(prices, p)
	}
	return prices, eris.Wrap(rows.Err(), "postgres: list prices rows")
}

func (s *PostgresStore) UpsertPrices(ctx context.Context, prices []model.Price) error {
	rows := make([][]any, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, priceRow(p))
	}
	_, err := db.BulkUpsert(ctx, s.pool, priceUpsert, rows)
	return eris.Wrap(err, "postgres: upsert prices")
}

func (s *PostgresStore) SetStripePriceIDs(ctx context.Context, ids map[string]string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin set stripe ids")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, priceID := range slices.Sorted(maps.Keys(ids)) {
		tag, err := tx.Exec(ctx,
			`UPDATE prices SET stripe_price_id = $1 WHERE id = $2`, ids[priceID], priceID)
		if err != nil {
			return eris.Wrapf(err, "postgres: set stripe id of %s", priceID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(ErrNotFound, "price %s", priceID)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit set stripe ids")
}

func scanPostgresFunnel(row scannable) (*model.Funnel, error) {
	var f model.Funnel
	var steps, publish []byte
	if err := row.Scan(&f.ID, &f.Name, &steps, &publish, &f.Version); err != nil {
		return nil, err
	}
	if err := decodeFunnel(&f, steps, publish); err != nil {
		return nil, err
	}
	return &f, nil
}
