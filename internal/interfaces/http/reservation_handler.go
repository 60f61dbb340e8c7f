package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReservationHandler maneja reservas: crear, liberar, consumir y consultar (protegido).
type ReservationHandler struct {
	reservations *inventory.ReservationManager
}

// NewReservationHandler construye el handler.
func NewReservationHandler(reservations *inventory.ReservationManager) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// Create godoc
// @Summary      Crear reserva (asignación FEFO)
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateReservationRequest  true  "producto, cantidad, referencia"
// @Success      201   {object}  dto.ReservationResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/reservations [post]
func (h *ReservationHandler) Create(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.CreateReservationRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	expiry, err := parseDate(in.ExpiryDate)
	if err != nil {
		return badRequest(c, "VALIDATION", err.Error(), nil)
	}
	res, err := h.reservations.Reserve(c.Context(), inventory.ReserveInput{
		ReservationID: in.ReservationID,
		TenantID:      tenantID,
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		LocationID:    in.LocationID,
		BatchNumber:   in.BatchNumber,
		ExpiryDate:    expiry,
		Reference:     entity.Reference{Type: in.Reference.Type, ID: in.Reference.ID},
		ExpiresAt:     in.ExpiresAt,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toReservationResponse(res))
}

// GetByID godoc
// @Summary      Obtener reserva
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la reserva"
// @Success      200  {object}  dto.ReservationResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/reservations/{id} [get]
func (h *ReservationHandler) GetByID(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	res, err := h.reservations.GetReservation(c.Context(), tenantID, c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReservationResponse(res))
}

// ListByReference godoc
// @Summary      Reservas de un documento
// @Tags         reservations
// @Security     Bearer
// @Produce      json
// @Param        reference_type  query  string  true  "tipo de documento"
// @Param        reference_id    query  string  true  "id del documento"
// @Success      200  {array}   dto.ReservationResponse
// @Router       /api/reservations [get]
func (h *ReservationHandler) ListByReference(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	ref := entity.Reference{
		Type: strings.TrimSpace(c.Query("reference_type")),
		ID:   strings.TrimSpace(c.Query("reference_id")),
	}
	if ref.Type == "" || ref.ID == "" {
		return badRequest(c, "VALIDATION", "reference_type y reference_id son requeridos", nil)
	}
	list, err := h.reservations.ListByReference(c.Context(), tenantID, ref)
	if err != nil {
		return respondError(c, err)
	}
	out := make([]dto.ReservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	return c.JSON(fiber.Map{
		"total":        len(out),
		"reservations": out,
	})
}

// Release godoc
// @Summary      Liberar reserva (total o parcial)
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                          true   "ID de la reserva"
// @Param        body  body  dto.ReleaseReservationRequest  false  "cantidad opcional"
// @Success      200   {object}  dto.ReservationResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/reservations/{id}/release [post]
func (h *ReservationHandler) Release(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.ReleaseReservationRequest
	if len(c.Body()) > 0 {
		if errResp := bindJSON(c, &in); errResp != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errResp)
		}
	}
	res, err := h.reservations.Release(c.Context(), inventory.ReleaseInput{
		TenantID:      tenantID,
		ReservationID: c.Params("id"),
		Quantity:      in.Quantity,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toReservationResponse(res))
}

// Consume godoc
// @Summary      Consumir reserva como salida
// @Description  allow_short libera lo que no se pudo despachar en lugar de fallar.
// @Tags         reservations
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                          true  "ID de la reserva"
// @Param        body  body  dto.ConsumeReservationRequest  true  "cantidad y filtros opcionales"
// @Success      200   {object}  dto.ConsumeResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/reservations/{id}/consume [post]
func (h *ReservationHandler) Consume(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return unauthorized(c)
	}
	var in dto.ConsumeReservationRequest
	if errResp := bindJSON(c, &in); errResp != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errResp)
	}
	res, err := h.reservations.ConsumeForIssue(c.Context(), inventory.ConsumeInput{
		OperationID:   in.OperationID,
		TenantID:      tenantID,
		ReservationID: c.Params("id"),
		ProductID:     in.ProductID,
		Quantity:      in.Quantity,
		AllowShort:    in.AllowShort,
		LocationID:    in.LocationID,
		BatchNumber:   in.BatchNumber,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(toConsumeResponse(res))
}
