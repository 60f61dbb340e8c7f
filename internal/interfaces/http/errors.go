package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// stockErrorDetails claves y cantidades de un rechazo de stock.
type stockErrorDetails struct {
	Operation string   `json:"operation"`
	Keys      []string `json:"keys,omitempty"`
	Requested string   `json:"requested"`
	Available string   `json:"available"`
}

var errorMessages = map[string]string{
	"VALIDATION":          "datos inválidos",
	"INVALID_REFERENCE":   "producto o ubicación desconocidos",
	"NOT_FOUND":           "recurso no encontrado",
	"INSUFFICIENT_STOCK":  "stock insuficiente",
	"NEGATIVE_STOCK":      "el stock resultante sería negativo",
	"ALREADY_TERMINAL":    "la reserva ya está cerrada",
	"DUPLICATE_OPERATION": "operación ya aplicada",
	"VERSION_CONFLICT":    "conflicto de versión, reintente",
	"CONTENTION":          "recurso ocupado, reintente",
}

// statusFor código HTTP para un código de error del motor.
func statusFor(code string) int {
	switch code {
	case "VALIDATION", "INVALID_REFERENCE":
		return fiber.StatusBadRequest
	case "NOT_FOUND":
		return fiber.StatusNotFound
	case "INSUFFICIENT_STOCK", "NEGATIVE_STOCK", "ALREADY_TERMINAL", "DUPLICATE_OPERATION", "VERSION_CONFLICT":
		return fiber.StatusConflict
	case "CONTENTION":
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError traduce un error del motor a la respuesta HTTP.
func respondError(c *fiber.Ctx, err error) error {
	code := inventory.ErrorCode(err)
	body := dto.ErrorResponse{Code: code, Message: err.Error()}
	if msg, ok := errorMessages[code]; ok && code != "VALIDATION" {
		body.Message = msg
	}
	if code == "INTERNAL" {
		body.Message = "error interno"
	}
	if se, ok := domain.AsStockError(err); ok {
		body.Message = se.Err.Error()
		body.Details = stockErrorDetails{
			Operation: se.Op,
			Keys:      se.Keys,
			Requested: se.Quantity.String(),
			Available: se.Available.String(),
		}
	}
	return c.Status(statusFor(code)).JSON(body)
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
}

func badRequest(c *fiber.Ctx, code, msg string, details interface{}) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: code, Message: msg, Details: details})
}
