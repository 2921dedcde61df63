package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateLocationRequest entrada para crear una ubicación. Sin max_capacity_volume la ubicación no tiene límite.
type CreateLocationRequest struct {
	Name              string           `json:"name" validate:"required,min=1,max=200"`
	MaxCapacityVolume *decimal.Decimal `json:"max_capacity_volume" validate:"omitempty,dec_gte0"`
}

// UpdateLocationRequest entrada para actualizar una ubicación.
type UpdateLocationRequest struct {
	Name              *string          `json:"name" validate:"omitempty,min=1,max=200"`
	MaxCapacityVolume *decimal.Decimal `json:"max_capacity_volume" validate:"omitempty,dec_gte0"`
	// UnlimitedCapacity quita el límite volumétrico; tiene prioridad sobre max_capacity_volume.
	UnlimitedCapacity bool `json:"unlimited_capacity"`
}

// LocationResponse salida de una ubicación.
type LocationResponse struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	MaxCapacityVolume *decimal.Decimal `json:"max_capacity_volume"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// LocationListResponse lista paginada de ubicaciones.
type LocationListResponse struct {
	Items []LocationResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
