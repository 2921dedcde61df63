package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementLineInput línea de una entrada (RECEIPT) o salida (SHIPMENT).
// UnitPrice es obligatorio en entradas y se ignora en salidas (el costo sale del lote consumido).
// En salidas, BatchLabel restringe el consumo a ese lote; vacío = FIFO por vencimiento.
type MovementLineInput struct {
	ProductID    string
	LocationID   string
	Quantity     decimal.Decimal
	UnitPrice    *decimal.Decimal
	BatchLabel   string
	ExpiryDate   *time.Time
	SellingPrice *decimal.Decimal
}

// MovementRequest petición de entrada o salida con una o más líneas.
type MovementRequest struct {
	Reference      string // contraparte: OC, pedido, proveedor, cliente
	OperatorID     string
	Note           string
	IdempotencyKey string
	Lines          []MovementLineInput
}

// TransferLineInput traslado de un producto entre dos ubicaciones.
type TransferLineInput struct {
	ProductID      string
	FromLocationID string
	ToLocationID   string
	Quantity       decimal.Decimal
}

// TransferRequest petición de traslado.
type TransferRequest struct {
	Reference      string
	OperatorID     string
	Note           string // motivo
	IdempotencyKey string
	Lines          []TransferLineInput
}

// CountLineInput resultado del conteo físico (stock opname). Con BatchLabel cuenta ese lote;
// sin él cuenta el producto en la ubicación, sumando todos sus lotes.
// Delta aplicado = PhysicalCount - SystemCount. UnitCost sólo se usa si el sobrante cae en una fila nueva o vacía.
type CountLineInput struct {
	ProductID     string
	LocationID    string
	BatchLabel    string
	PhysicalCount decimal.Decimal
	SystemCount   decimal.Decimal
	UnitCost      *decimal.Decimal
	ExpiryDate    *time.Time
}

// Delta diferencia a aplicar.
func (l CountLineInput) Delta() decimal.Decimal {
	return l.PhysicalCount.Sub(l.SystemCount)
}

// AdjustmentRequest petición de ajuste por conteo físico.
type AdjustmentRequest struct {
	Reference      string
	OperatorID     string
	Note           string
	IdempotencyKey string
	Lines          []CountLineInput
}
