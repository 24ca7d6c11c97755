package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cyberrisk/internal/distribution"
	"github.com/sells-group/cyberrisk/internal/model"
	"github.com/sells-group/cyberrisk/internal/simulate"
	"github.com/sells-group/cyberrisk/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "cyberrisk.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// openStore connects and applies the schema. Migrate is idempotent, so every
// command that touches the store can call it.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// initResolver loads the configured distribution table, or the bundled one
// when no path is set.
func initResolver() (*distribution.Resolver, error) {
	var (
		t   *distribution.Table
		err error
	)
	if cfg.Distribution.TablePath != "" {
		t, err = distribution.LoadTable(cfg.Distribution.TablePath)
	} else {
		t, err = distribution.DefaultTable()
	}
	if err != nil {
		return nil, err
	}
	return distribution.NewResolver(t), nil
}

func initEngine() (*simulate.Engine, error) {
	return simulate.New(simulate.Config{
		DefaultSimulations: cfg.Simulation.DefaultSimulations,
		NegativeCosts:      model.NegativeCostPolicy(cfg.Simulation.NegativeCostPolicy),
	})
}
