package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto. El SKU se normaliza (mayúsculas, NFKC).
type CreateProductRequest struct {
	SKU          string           `json:"sku" validate:"required,min=1,max=64"`
	Name         string           `json:"name" validate:"required,min=1,max=200"`
	UnitVolume   *decimal.Decimal `json:"unit_volume" validate:"omitempty,dec_gte0"`
	SellingPrice decimal.Decimal  `json:"selling_price" validate:"dec_gte0"`
}

// UpdateProductRequest entrada para actualizar un producto. Costo y existencias sólo cambian con movimientos.
type UpdateProductRequest struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=200"`
	UnitVolume   *decimal.Decimal `json:"unit_volume" validate:"omitempty,dec_gte0"`
	SellingPrice *decimal.Decimal `json:"selling_price" validate:"omitempty,dec_gte0"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID           string           `json:"id"`
	SKU          string           `json:"sku"`
	Name         string           `json:"name"`
	UnitVolume   *decimal.Decimal `json:"unit_volume,omitempty"`
	SellingPrice decimal.Decimal  `json:"selling_price"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}
