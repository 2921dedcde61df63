package inventory

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// CapacityChecker admite entradas contra la capacidad volumétrica de cada ubicación.
// Vive lo que dura una operación: acumula el volumen ya admitido por ubicación para que
// dos líneas que por separado caben no puedan, juntas, desbordar la ubicación.
type CapacityChecker struct {
	reserved map[string]decimal.Decimal
}

// NewCapacityChecker crea un verificador vacío para una operación.
func NewCapacityChecker() *CapacityChecker {
	return &CapacityChecker{reserved: make(map[string]decimal.Decimal)}
}

// CheckAndReserve verifica currentUsed + reservado + incoming <= capacidad y reserva incoming.
// currentUsed es el volumen ocupado antes de la operación (Σ cantidad * volumen unitario).
func (c *CapacityChecker) CheckAndReserve(loc *entity.Location, currentUsed, incoming decimal.Decimal) error {
	if incoming.IsNegative() {
		return fmt.Errorf("%w: volumen entrante negativo", domain.ErrInvalidQuantity)
	}
	pending := c.reserved[loc.ID]
	if loc.HasCapacityLimit() {
		total := currentUsed.Add(pending).Add(incoming)
		if limit := *loc.MaxCapacityVolume; total.GreaterThan(limit) {
			return fmt.Errorf("%w: ubicación %s ocupado %s + pendiente %s + entrante %s > máximo %s",
				domain.ErrCapacityExceeded, loc.ID, currentUsed, pending, incoming, limit)
		}
	}
	c.reserved[loc.ID] = pending.Add(incoming)
	return nil
}
