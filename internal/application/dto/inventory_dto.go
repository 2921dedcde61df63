package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

// DateLayout formato de fechas de vencimiento en la API.
const DateLayout = "2006-01-02"

// ReceiptLineRequest línea de una entrada.
type ReceiptLineRequest struct {
	ProductID    string           `json:"product_id" validate:"required"`
	LocationID   string           `json:"location_id" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity" validate:"dec_gt0"`
	UnitPrice    *decimal.Decimal `json:"unit_price" validate:"required,dec_gte0"`
	BatchLabel   string           `json:"batch_label" validate:"max=64"`
	ExpiryDate   string           `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	SellingPrice *decimal.Decimal `json:"selling_price" validate:"omitempty,dec_gte0"`
}

// ReceiptRequest body para POST /api/movements/receipts.
type ReceiptRequest struct {
	Reference string               `json:"reference" validate:"max=120"`
	Note      string               `json:"note" validate:"max=500"`
	Lines     []ReceiptLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ShipmentLineRequest línea de una salida. BatchLabel opcional restringe el lote a consumir.
type ShipmentLineRequest struct {
	ProductID    string           `json:"product_id" validate:"required"`
	LocationID   string           `json:"location_id" validate:"required"`
	Quantity     decimal.Decimal  `json:"quantity" validate:"dec_gt0"`
	BatchLabel   string           `json:"batch_label" validate:"max=64"`
	SellingPrice *decimal.Decimal `json:"selling_price" validate:"omitempty,dec_gte0"`
}

// ShipmentRequest body para POST /api/movements/shipments.
type ShipmentRequest struct {
	Reference string                `json:"reference" validate:"max=120"`
	Note      string                `json:"note" validate:"max=500"`
	Lines     []ShipmentLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// TransferLineRequest línea de un traslado.
type TransferLineRequest struct {
	ProductID      string          `json:"product_id" validate:"required"`
	FromLocationID string          `json:"from_location_id" validate:"required"`
	ToLocationID   string          `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       decimal.Decimal `json:"quantity" validate:"dec_gt0"`
}

// TransferRequest body para POST /api/movements/transfers.
type TransferRequest struct {
	Reference string                `json:"reference" validate:"max=120"`
	Note      string                `json:"note" validate:"max=500"`
	Lines     []TransferLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// CountLineRequest resultado del conteo físico de una fila.
type CountLineRequest struct {
	ProductID     string           `json:"product_id" validate:"required"`
	LocationID    string           `json:"location_id" validate:"required"`
	BatchLabel    string           `json:"batch_label" validate:"max=64"`
	PhysicalCount decimal.Decimal  `json:"physical_count" validate:"dec_gte0"`
	SystemCount   decimal.Decimal  `json:"system_count" validate:"dec_gte0"`
	UnitCost      *decimal.Decimal `json:"unit_cost" validate:"omitempty,dec_gte0"`
	ExpiryDate    string           `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
}

// AdjustmentRequest body para POST /api/movements/adjustments.
type AdjustmentRequest struct {
	Reference string             `json:"reference" validate:"max=120"`
	Note      string             `json:"note" validate:"required,max=500"`
	Lines     []CountLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// MovementLineResponse línea de movimiento.
type MovementLineResponse struct {
	LineNo     int             `json:"line_no"`
	ProductID  string          `json:"product_id"`
	LocationID string          `json:"location_id"`
	Quantity   decimal.Decimal `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalCost  decimal.Decimal `json:"total_cost"`
	BatchLabel string          `json:"batch_label,omitempty"`
	ExpiryDate string          `json:"expiry_date,omitempty"`
}

// MovementResponse movimiento confirmado.
type MovementResponse struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	Reference  string                 `json:"reference,omitempty"`
	OperatorID string                 `json:"operator_id"`
	Note       string                 `json:"note,omitempty"`
	CreatedAt  time.Time              `json:"created_at"`
	Lines      []MovementLineResponse `json:"lines"`
}

// StockRowResponse fila de stock. AverageCost va redondeado a 2 decimales; AverageCostExact conserva la precisión interna.
type StockRowResponse struct {
	ID               string          `json:"id"`
	ProductID        string          `json:"product_id"`
	LocationID       string          `json:"location_id"`
	BatchLabel       string          `json:"batch_label,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	AverageCost      decimal.Decimal `json:"average_cost"`
	AverageCostExact decimal.Decimal `json:"average_cost_exact"`
	ExpiryDate       string          `json:"expiry_date,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ToInput convierte el body a la petición del libro.
func (r ReceiptRequest) ToInput(operatorID, idempotencyKey string) (inventory.MovementRequest, error) {
	out := inventory.MovementRequest{Reference: r.Reference, OperatorID: operatorID, Note: r.Note, IdempotencyKey: idempotencyKey}
	for _, l := range r.Lines {
		exp, err := ParseDate(l.ExpiryDate)
		if err != nil {
			return out, err
		}
		out.Lines = append(out.Lines, inventory.MovementLineInput{
			ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity,
			UnitPrice: l.UnitPrice, BatchLabel: l.BatchLabel, ExpiryDate: exp, SellingPrice: l.SellingPrice,
		})
	}
	return out, nil
}

// ToInput convierte el body a la petición del libro.
func (r ShipmentRequest) ToInput(operatorID, idempotencyKey string) inventory.MovementRequest {
	out := inventory.MovementRequest{Reference: r.Reference, OperatorID: operatorID, Note: r.Note, IdempotencyKey: idempotencyKey}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, inventory.MovementLineInput{
			ProductID: l.ProductID, LocationID: l.LocationID, Quantity: l.Quantity,
			BatchLabel: l.BatchLabel, SellingPrice: l.SellingPrice,
		})
	}
	return out
}

// ToInput convierte el body a la petición del libro.
func (r TransferRequest) ToInput(operatorID, idempotencyKey string) inventory.TransferRequest {
	out := inventory.TransferRequest{Reference: r.Reference, OperatorID: operatorID, Note: r.Note, IdempotencyKey: idempotencyKey}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, inventory.TransferLineInput{
			ProductID: l.ProductID, FromLocationID: l.FromLocationID, ToLocationID: l.ToLocationID, Quantity: l.Quantity,
		})
	}
	return out
}

// ToInput convierte el body a la petición del libro.
func (r AdjustmentRequest) ToInput(operatorID, idempotencyKey string) (inventory.AdjustmentRequest, error) {
	out := inventory.AdjustmentRequest{Reference: r.Reference, OperatorID: operatorID, Note: r.Note, IdempotencyKey: idempotencyKey}
	for _, l := range r.Lines {
		exp, err := ParseDate(l.ExpiryDate)
		if err != nil {
			return out, err
		}
		out.Lines = append(out.Lines, inventory.CountLineInput{
			ProductID: l.ProductID, LocationID: l.LocationID, BatchLabel: l.BatchLabel,
			PhysicalCount: l.PhysicalCount, SystemCount: l.SystemCount, UnitCost: l.UnitCost, ExpiryDate: exp,
		})
	}
	return out, nil
}

// ParseDate "" -> nil; si no, fecha en UTC.
func ParseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(DateLayout)
}

// ToMovementResponse mapea un movimiento del dominio.
func ToMovementResponse(m *entity.Movement) *MovementResponse {
	if m == nil {
		return nil
	}
	out := &MovementResponse{
		ID: m.ID, Kind: string(m.Kind), Reference: m.Reference, OperatorID: m.OperatorID,
		Note: m.Note, CreatedAt: m.CreatedAt, Lines: make([]MovementLineResponse, 0, len(m.Lines)),
	}
	for _, l := range m.Lines {
		out.Lines = append(out.Lines, MovementLineResponse{
			LineNo: l.LineNo, ProductID: l.ProductID, LocationID: l.LocationID,
			Quantity: l.Quantity, UnitPrice: l.UnitPrice, TotalCost: domaininv.RoundForReport(l.TotalCost()),
			BatchLabel: l.BatchLabel, ExpiryDate: formatDate(l.ExpiryDate),
		})
	}
	return out
}

// ToStockRowResponse mapea una fila de stock.
func ToStockRowResponse(r *entity.StockRow) StockRowResponse {
	return StockRowResponse{
		ID: r.ID, ProductID: r.ProductID, LocationID: r.LocationID, BatchLabel: r.BatchLabel,
		Quantity: r.Quantity, AverageCost: domaininv.RoundForReport(r.AverageCost), AverageCostExact: r.AverageCost,
		ExpiryDate: formatDate(r.ExpiryDate), UpdatedAt: r.UpdatedAt,
	}
}
