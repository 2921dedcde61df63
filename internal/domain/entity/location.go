package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location representa una ubicación física del almacén (rack, pasillo, bodega).
type Location struct {
	ID   string
	Name string
	// MaxCapacityVolume en m³; nil = sin límite volumétrico, cero = no admite entradas.
	MaxCapacityVolume *decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasCapacityLimit indica si la ubicación restringe el volumen almacenado.
func (l *Location) HasCapacityLimit() bool {
	return l.MaxCapacityVolume != nil
}
