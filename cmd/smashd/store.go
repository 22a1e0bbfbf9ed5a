package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"smash-rewards/internal/config"
	"smash-rewards/internal/handler"
	"smash-rewards/internal/pkg/db"
	"smash-rewards/internal/repository"
	"smash-rewards/internal/service"
)

// backend is an opened account store and ledger with their health check
// and cleanup.
type backend struct {
	store   service.AccountStore
	ledger  service.Ledger
	check   handler.Check
	migrate func(ctx context.Context) error
	close   func()
}

// openStore connects the configured store backend.
func openStore(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pool, err := db.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}
		prometheus.MustRegister(db.StatsCollector(pool.Pool))
		return &backend{
			store:  repository.NewAccountRepository(pool.Pool),
			ledger: repository.NewLedgerRepository(pool.Pool),
			check:  pool.HealthCheck,
			migrate: func(ctx context.Context) error {
				return repository.Migrate(ctx, pool.Pool)
			},
			close: pool.Close,
		}, nil

	case config.StoreMongo:
		m, err := db.NewMongo(ctx, &cfg.Mongo)
		if err != nil {
			return nil, err
		}
		repo := repository.NewMongoRepository(m.Client, m.DB)
		ledger := repository.NewMongoLedger(m.DB)
		return &backend{
			store:  repo,
			ledger: ledger,
			check:  m.HealthCheck,
			migrate: func(ctx context.Context) error {
				if err := repo.EnsureIndexes(ctx); err != nil {
					return err
				}
				return ledger.EnsureIndexes(ctx)
			},
			close: func() { m.Close(context.Background()) },
		}, nil

	case config.StoreMemory:
		log.Warn().Msg("Using in-memory store; accounts are lost on restart")
		return &backend{
			store:   repository.NewMemoryRepository(),
			ledger:  repository.NewMemoryLedger(),
			check:   func(context.Context) error { return nil },
			migrate: func(context.Context) error { return nil },
			close:   func() {},
		}, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
