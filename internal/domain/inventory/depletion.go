package inventory

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Draw cantidad a tomar de una fila concreta, con el costo del lote al momento del consumo.
type Draw struct {
	Row      *entity.StockRow
	Quantity decimal.Decimal
	UnitCost decimal.Decimal
}

// PlanDepletion selecciona de qué filas descontar needed unidades (FIFO por vencimiento).
// Orden: vencimiento ascendente (sin vencimiento al final), luego orden de creación.
// Es una simulación: no modifica las filas. Si el total disponible no alcanza devuelve
// ErrInsufficientStock y ningún plan.
func PlanDepletion(rows []*entity.StockRow, needed decimal.Decimal) ([]Draw, error) {
	if !needed.IsPositive() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuantity, needed)
	}
	candidates := make([]*entity.StockRow, 0, len(rows))
	available := decimal.Zero
	for _, r := range rows {
		if r.Quantity.IsPositive() {
			candidates = append(candidates, r)
			available = available.Add(r.Quantity)
		}
	}
	if available.LessThan(needed) {
		return nil, fmt.Errorf("%w: disponible %s, solicitado %s", domain.ErrInsufficientStock, available, needed)
	}
	SortFIFO(candidates)

	plan := make([]Draw, 0, len(candidates))
	remaining := needed
	for _, r := range candidates {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(r.Quantity, remaining)
		plan = append(plan, Draw{Row: r, Quantity: take, UnitCost: r.AverageCost})
		remaining = remaining.Sub(take)
	}
	return plan, nil
}

// SortFIFO ordena filas por vencimiento ascendente, nulos al final, luego CreatedAt e ID.
func SortFIFO(rows []*entity.StockRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate == nil:
			return true
		case a.ExpiryDate == nil && b.ExpiryDate != nil:
			return false
		case a.ExpiryDate != nil && b.ExpiryDate != nil && !a.ExpiryDate.Equal(*b.ExpiryDate):
			return a.ExpiryDate.Before(*b.ExpiryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}
