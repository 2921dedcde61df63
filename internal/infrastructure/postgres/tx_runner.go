package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción READ COMMITTED, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los bloqueos FOR UPDATE tomados dentro de fn viven hasta el final de la transacción.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, uow inventory.UnitOfWork) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &unitOfWork{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Stock() repository.StockRepository       { return NewStockRepository(u.tx) }
func (u *unitOfWork) Movements() repository.MovementRepository { return NewMovementRepository(u.tx) }
func (u *unitOfWork) Products() repository.ProductRepository   { return NewProductRepository(u.tx) }
func (u *unitOfWork) Locations() repository.LocationRepository { return NewLocationRepository(u.tx) }
