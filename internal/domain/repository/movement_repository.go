package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository define el puerto del registro de movimientos (sólo inserción).
type MovementRepository interface {
	// Create persiste la cabecera y todas sus líneas.
	Create(ctx context.Context, movement *entity.Movement) error
	GetByID(ctx context.Context, id string) (*entity.Movement, error)
}
