package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
)

// StockHandler maneja entradas, salidas, traslados y ajustes (protegido).
type StockHandler struct {
	stock *inventory.StockService
}

// NewStockHandler construye el handler.
func NewStockHandler(stock *inventory.StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

// Receive godoc
// @Summary      Registrar entrada de stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ReceiveStockRequest  true  "producto, ubicación, cantidad, lote y vencimiento opcionales"
// @Success      201   {object}  dto.StockLevelResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/stock/receipts [post]
func (h *StockHandler) Receive(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.ReceiveStockRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	level, err := h.stock.ReceiveStock(c.Context(), inventory.ReceiveInput{
		OperationID: in.OperationID,
		TenantID:    tenantID,
		ProductID:   in.ProductID,
		LocationID:  in.LocationID,
		Quantity:    in.Quantity,
		BatchNumber: in.BatchNumber,
		ExpiryDate:  expiry,
		Reference:   toReference(in.Reference),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toLevelResponse(level))
}

// Issue godoc
// @Summary      Registrar salida de stock
// @Description  Con reservation_id la salida consume la reserva en la ubicación indicada.
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.IssueStockRequest  true  "producto, ubicación, cantidad"
// @Success      201   {object}  dto.StockLevelResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/issues [post]
func (h *StockHandler) Issue(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.IssueStockRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	level, err := h.stock.IssueStock(c.Context(), inventory.IssueInput{
		OperationID:   in.OperationID,
		TenantID:      tenantID,
		ProductID:     in.ProductID,
		LocationID:    in.LocationID,
		Quantity:      in.Quantity,
		BatchNumber:   in.BatchNumber,
		ExpiryDate:    expiry,
		ReservationID: in.ReservationID,
		Reference:     toReference(in.Reference),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toLevelResponse(level))
}

// Transfer godoc
// @Summary      Trasladar stock entre ubicaciones
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.TransferStockRequest  true  "producto, origen, destino, cantidad"
// @Success      201   {object}  dto.TransferResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/transfers [post]
func (h *StockHandler) Transfer(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.TransferStockRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	res, err := h.stock.TransferStock(c.Context(), inventory.TransferInput{
		OperationID:    in.OperationID,
		TenantID:       tenantID,
		ProductID:      in.ProductID,
		FromLocationID: in.FromLocationID,
		ToLocationID:   in.ToLocationID,
		Quantity:       in.Quantity,
		BatchNumber:    in.BatchNumber,
		ExpiryDate:     expiry,
		Reference:      toReference(in.Reference),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.TransferResponse{
		From: toLevelResponse(res.From),
		To:   toLevelResponse(res.To),
	})
}

// Adjust godoc
// @Summary      Ajustar stock (conteo, merma)
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.AdjustStockRequest  true  "producto, ubicación, delta con signo, motivo"
// @Success      201   {object}  dto.StockLevelResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/adjustments [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.AdjustStockRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	level, err := h.stock.AdjustStock(c.Context(), inventory.AdjustInput{
		OperationID: in.OperationID,
		TenantID:    tenantID,
		ProductID:   in.ProductID,
		LocationID:  in.LocationID,
		Delta:       in.Delta,
		BatchNumber: in.BatchNumber,
		ExpiryDate:  expiry,
		ReasonCode:  in.ReasonCode,
		Reference:   toReference(in.Reference),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toLevelResponse(level))
}
