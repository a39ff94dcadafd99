package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/AldinMesan/ParcelsScript/internal/store"
)

// initStore opens the configured store and brings its schema up to date.
func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	loc, err := cfg.Scrape.Location()
	if err != nil {
		return nil, err
	}
	opts := store.Options{LogLocation: loc, MaxConns: cfg.Store.MaxConns}

	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.DatabaseURL, opts)
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL, opts)
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
