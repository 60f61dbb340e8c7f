package inventory

import (
	"errors"

	"github.com/jhoicas/stock-ledger/internal/domain"
)

// errorCode código estable de un error de dominio (métricas, logs, respuestas HTTP).
func errorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInsufficientStock):
		return "INSUFFICIENT_STOCK"
	case errors.Is(err, domain.ErrNegativeStock):
		return "NEGATIVE_STOCK"
	case errors.Is(err, domain.ErrContention):
		return "CONTENTION"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrInvalidReference):
		return "INVALID_REFERENCE"
	case errors.Is(err, domain.ErrInvalidInput):
		return "VALIDATION"
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return "ALREADY_TERMINAL"
	case errors.Is(err, domain.ErrDuplicateOperation):
		return "DUPLICATE_OPERATION"
	case errors.Is(err, domain.ErrVersionConflict):
		return "VERSION_CONFLICT"
	default:
		return "INTERNAL"
	}
}

// ErrorCode expone el código para la capa de interfaces.
func ErrorCode(err error) string { return errorCode(err) }
