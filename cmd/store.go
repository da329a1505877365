package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/funnel-readiness/internal/editor"
	"github.com/sells-group/funnel-readiness/internal/paysync"
	"github.com/sells-group/funnel-readiness/internal/resilience"
	"github.com/sells-group/funnel-readiness/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// initSyncer returns nil when no sync job is configured.
func initSyncer() editor.Syncer {
	if cfg.Sync.BaseURL == "" {
		return nil
	}
	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Sync.MaxAttempts
	return paysync.New(paysync.Options{
		BaseURL:   cfg.Sync.BaseURL,
		APIKey:    cfg.Sync.APIKey,
		Timeout:   time.Duration(cfg.Sync.TimeoutSecs) * time.Second,
		RateLimit: rate.Limit(cfg.Sync.RateLimit),
		Burst:     cfg.Sync.Burst,
		BatchSize: cfg.Sync.BatchSize,
		Retry:     retry,
	})
}

// initEditor opens the store and wires the editor. The caller closes the store.
func initEditor(ctx context.Context) (*editor.Editor, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return editor.New(st, initSyncer()), st, nil
}
