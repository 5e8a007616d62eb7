package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadmatch/internal/config"
	"github.com/sells-group/leadmatch/internal/store"
)

// initStore opens the canonical store selected by store.driver.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "leadmatch.db"
		}
		return store.NewSQLite(dsn, sc.Table)
	case "postgres":
		if sc.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for postgres (LEADMATCH_STORE_DATABASE_URL)")
		}
		return store.NewPostgres(ctx, sc.DatabaseURL, sc.Table, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
			Retry:    sc.Retry,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}
