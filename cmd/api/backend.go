package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
)

// ledgerBackend agrupa los adaptadores de persistencia que usa la API.
type ledgerBackend struct {
	tx        inventory.TxRunner
	products  repository.ProductRepository
	locations repository.LocationRepository
	movements repository.MovementRepository
	stock     repository.StockRepository
	ping      func(ctx context.Context) error
}

func postgresBackend(pool *pgxpool.Pool) ledgerBackend {
	return ledgerBackend{
		tx:        postgres.NewTxRunner(pool),
		products:  postgres.NewProductRepository(pool),
		locations: postgres.NewLocationRepository(pool),
		movements: postgres.NewMovementRepository(pool),
		stock:     postgres.NewStockRepository(pool),
		ping:      pool.Ping,
	}
}

func memoryBackend(store *memory.Store) ledgerBackend {
	return ledgerBackend{
		tx:        store,
		products:  store.Products(),
		locations: store.Locations(),
		movements: store.Movements(),
		stock:     store.Stock(),
		ping:      func(context.Context) error { return nil },
	}
}
