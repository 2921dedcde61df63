package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockRepository define el puerto para leer/bloquear/escribir filas de stock.
// Los métodos *ForUpdate sólo tienen sentido dentro de una transacción: el bloqueo
// (SELECT ... FOR UPDATE) se mantiene hasta el Commit o Rollback.
type StockRepository interface {
	// GetForUpdate devuelve la fila bloqueada o nil si no existe.
	GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockRow, error)
	// ListForUpdate bloquea y devuelve todas las filas (todos los lotes) de producto+ubicación en orden FIFO.
	ListForUpdate(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error)
	// VolumeAt Σ(cantidad * volumen unitario) de las filas de la ubicación.
	VolumeAt(ctx context.Context, locationID string, defaultUnitVolume decimal.Decimal) (decimal.Decimal, error)
	Insert(ctx context.Context, row *entity.StockRow) error
	Update(ctx context.Context, row *entity.StockRow) error
	// ListByProductLocation lectura sin bloqueo (consultas).
	ListByProductLocation(ctx context.Context, productID, locationID string) ([]*entity.StockRow, error)
}
