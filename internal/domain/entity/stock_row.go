package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica una fila de stock: producto, ubicación y lote ("" = sin lote).
type StockKey struct {
	ProductID  string
	LocationID string
	BatchLabel string
}

// String formato legible para logs y errores.
func (k StockKey) String() string {
	if k.BatchLabel == "" {
		return fmt.Sprintf("%s@%s", k.ProductID, k.LocationID)
	}
	return fmt.Sprintf("%s@%s#%s", k.ProductID, k.LocationID, k.BatchLabel)
}

// StockRow es la unidad atómica de existencias. Nunca se borra: una fila en cero
// conserva el último costo promedio conocido del lote.
type StockRow struct {
	ID          string
	ProductID   string
	LocationID  string
	BatchLabel  string
	Quantity    decimal.Decimal
	AverageCost decimal.Decimal
	ExpiryDate  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewStockRow construye una fila validada.
func NewStockRow(id string, key StockKey, qty, avgCost decimal.Decimal, expiry *time.Time, now time.Time) (*StockRow, error) {
	row := &StockRow{
		ID:          id,
		ProductID:   key.ProductID,
		LocationID:  key.LocationID,
		BatchLabel:  key.BatchLabel,
		Quantity:    qty,
		AverageCost: avgCost,
		ExpiryDate:  expiry,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := row.Validate(); err != nil {
		return nil, err
	}
	return row, nil
}

// Key devuelve la llave compuesta de la fila.
func (r *StockRow) Key() StockKey {
	return StockKey{ProductID: r.ProductID, LocationID: r.LocationID, BatchLabel: r.BatchLabel}
}

// Validate verifica cantidad >= 0 y costo >= 0.
func (r *StockRow) Validate() error {
	if r.ProductID == "" || r.LocationID == "" {
		return fmt.Errorf("stock row: producto y ubicación requeridos")
	}
	if r.Quantity.IsNegative() {
		return fmt.Errorf("stock row %s: cantidad negativa %s", r.Key(), r.Quantity)
	}
	if r.AverageCost.IsNegative() {
		return fmt.Errorf("stock row %s: costo negativo %s", r.Key(), r.AverageCost)
	}
	return nil
}

// Clone copia profunda (incluye la fecha de vencimiento).
func (r *StockRow) Clone() *StockRow {
	c := *r
	if r.ExpiryDate != nil {
		exp := *r.ExpiryDate
		c.ExpiryDate = &exp
	}
	return &c
}
