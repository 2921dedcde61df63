package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

// HeaderIdempotencyKey reintentos con la misma llave devuelven el movimiento original.
const HeaderIdempotencyKey = "Idempotency-Key"

// InventoryHandler maneja las peticiones HTTP del libro de existencias (protegido).
type InventoryHandler struct {
	uc       *inventory.LedgerUseCase
	validate *validator.Validate
	log      *logger.Logger
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(uc *inventory.LedgerUseCase, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{uc: uc, validate: newValidator(), log: log}
}

// parseBody decodifica y valida el body. Si ok es false la respuesta 400 ya se escribió.
func parseBody(c *fiber.Ctx, v *validator.Validate, out any) (ok bool, err error) {
	if err := c.BodyParser(out); err != nil {
		return false, badRequest(c, "INVALID_BODY", "cuerpo inválido")
	}
	if err := v.Struct(out); err != nil {
		return false, badRequest(c, "VALIDATION", validationMessage(err))
	}
	return true, nil
}

func (h *InventoryHandler) created(c *fiber.Ctx, m *entity.Movement, err error) error {
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.ToMovementResponse(m))
}

// Receive godoc
// @Summary      Registrar entrada (RECEIPT)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string              false  "llave de idempotencia"
// @Param        body             body    dto.ReceiptRequest  true   "líneas con precio unitario"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/receipts [post]
func (h *InventoryHandler) Receive(c *fiber.Ctx) error {
	var in dto.ReceiptRequest
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}
	req, err := in.ToInput(GetUserID(c), c.Get(HeaderIdempotencyKey))
	if err != nil {
		return badRequest(c, "VALIDATION", "expiry_date inválida")
	}
	m, err := h.uc.Receive(c.Context(), req)
	return h.created(c, m, err)
}

// Ship godoc
// @Summary      Registrar salida (SHIPMENT), consumo FIFO por vencimiento
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string               false  "llave de idempotencia"
// @Param        body             body    dto.ShipmentRequest  true   "líneas a despachar"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/shipments [post]
func (h *InventoryHandler) Ship(c *fiber.Ctx) error {
	var in dto.ShipmentRequest
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}
	m, err := h.uc.Ship(c.Context(), in.ToInput(GetUserID(c), c.Get(HeaderIdempotencyKey)))
	return h.created(c, m, err)
}

// Transfer godoc
// @Summary      Trasladar existencias entre ubicaciones (TRANSFER)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string               false  "llave de idempotencia"
// @Param        body             body    dto.TransferRequest  true   "origen, destino y cantidad"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/transfers [post]
func (h *InventoryHandler) Transfer(c *fiber.Ctx) error {
	var in dto.TransferRequest
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}
	m, err := h.uc.Transfer(c.Context(), in.ToInput(GetUserID(c), c.Get(HeaderIdempotencyKey)))
	return h.created(c, m, err)
}

// Adjust godoc
// @Summary      Ajuste por conteo físico (ADJUSTMENT)
// @Tags         movements
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                 false  "llave de idempotencia"
// @Param        body             body    dto.AdjustmentRequest  true   "conteo físico y de sistema por fila"
// @Success      201   {object}  dto.MovementResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/movements/adjustments [post]
func (h *InventoryHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustmentRequest
	if ok, err := parseBody(c, h.validate, &in); !ok {
		return err
	}
	req, err := in.ToInput(GetUserID(c), c.Get(HeaderIdempotencyKey))
	if err != nil {
		return badRequest(c, "VALIDATION", "expiry_date inválida")
	}
	m, err := h.uc.Adjust(c.Context(), req)
	return h.created(c, m, err)
}

// GetMovement godoc
// @Summary      Obtener movimiento con sus líneas
// @Tags         movements
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del movimiento"
// @Success      200  {object}  dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/movements/{id} [get]
func (h *InventoryHandler) GetMovement(c *fiber.Ctx) error {
	m, err := h.uc.GetMovement(c.Context(), c.Params("id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(dto.ToMovementResponse(m))
}

// ListStock godoc
// @Summary      Filas de stock de un producto en una ubicación (orden FIFO)
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        product_id   query  string  true  "ID del producto"
// @Param        location_id  query  string  true  "ID de la ubicación"
// @Success      200  {array}   dto.StockRowResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock [get]
func (h *InventoryHandler) ListStock(c *fiber.Ctx) error {
	rows, err := h.uc.ListStock(c.Context(), c.Query("product_id"), c.Query("location_id"))
	if err != nil {
		return writeError(c, h.log, err)
	}
	out := make([]dto.StockRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.ToStockRowResponse(r))
	}
	return c.JSON(out)
}
