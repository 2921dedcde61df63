package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento del libro de existencias.
type MovementKind string

// Tipos de movimiento.
const (
	MovementReceipt    MovementKind = "RECEIPT"    // entrada (recepción de OC, entrada manual)
	MovementShipment   MovementKind = "SHIPMENT"   // salida (despacho de pedido, salida manual)
	MovementTransfer   MovementKind = "TRANSFER"   // traslado entre ubicaciones
	MovementAdjustment MovementKind = "ADJUSTMENT" // ajuste por conteo físico (stock opname)
)

// IsValid indica si el tipo es conocido.
func (k MovementKind) IsValid() bool {
	switch k {
	case MovementReceipt, MovementShipment, MovementTransfer, MovementAdjustment:
		return true
	}
	return false
}

// Movement cabecera inmutable de un evento que afecta existencias.
type Movement struct {
	ID             string
	Kind           MovementKind
	Reference      string // contraparte: OC, pedido, proveedor, cliente
	OperatorID     string
	Note           string
	IdempotencyKey string
	CreatedAt      time.Time
	Lines          []MovementLine
}

// MovementLine una mutación de una fila de stock. Quantity es positiva en entradas y negativa en salidas.
type MovementLine struct {
	ID         string
	MovementID string
	LineNo     int
	ProductID  string
	LocationID string
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal // costo/precio unitario al momento del evento
	BatchLabel string
	ExpiryDate *time.Time
}

// TotalCost Quantity * UnitPrice (con signo).
func (l MovementLine) TotalCost() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
