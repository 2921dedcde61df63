package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Errores del libro de existencias. Cualquiera de ellos aborta la operación completa.
var (
	ErrInvalidReference  = errors.New("producto o ubicación inexistente")
	ErrInvalidQuantity   = errors.New("cantidad inválida")
	ErrInsufficientStock = errors.New("stock insuficiente")
	ErrCapacityExceeded  = errors.New("capacidad de la ubicación excedida")
	ErrInvalidTransfer   = errors.New("origen y destino deben ser distintos")
)
