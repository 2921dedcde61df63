package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto o SKU del almacén.
// UnitVolume es opcional; cuando falta se aplica el volumen por defecto configurado.
type Product struct {
	ID           string
	SKU          string // único
	Name         string
	UnitVolume   decimal.NullDecimal // m³ por unidad
	SellingPrice decimal.Decimal     // precio de venta vigente
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// VolumePerUnit devuelve el volumen unitario o def si el producto no lo tiene.
func (p *Product) VolumePerUnit(def decimal.Decimal) decimal.Decimal {
	if p.UnitVolume.Valid {
		return p.UnitVolume.Decimal
	}
	return def
}
