package inventory

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// UnitOfWork expone repositorios atados a una única transacción de BD.
// Lo crea TxRunner y vive exactamente lo que dura una operación del libro:
// los bloqueos tomados a través de él se liberan en el Commit o Rollback.
type UnitOfWork interface {
	Stock() repository.StockRepository
	Movements() repository.MovementRepository
	Products() repository.ProductRepository
	Locations() repository.LocationRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando la unidad de trabajo.
// Si fn devuelve error se hace Rollback de todo; si no, Commit.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// IdempotencyStore registra llaves de idempotencia de movimientos.
type IdempotencyStore interface {
	// Reserve marca la llave como en proceso. Devuelve el ID del movimiento si la llave ya
	// se completó antes, o domain.ErrConflict si otra petición la tiene en proceso.
	Reserve(ctx context.Context, key string) (movementID string, err error)
	// Complete asocia la llave al movimiento confirmado.
	Complete(ctx context.Context, key, movementID string) error
	// Release libera la llave tras un fallo para permitir reintentos.
	Release(ctx context.Context, key string) error
}
