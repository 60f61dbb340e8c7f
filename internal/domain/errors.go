package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias de infraestructura).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrInvalidReference   = errors.New("referencia inválida: producto o ubicación desconocidos")
	ErrInsufficientStock  = errors.New("stock insuficiente")
	ErrNegativeStock      = errors.New("el stock resultante sería negativo")
	ErrContention         = errors.New("contención: no se obtuvo el bloqueo de la clave a tiempo")
	ErrDuplicateOperation = errors.New("operación ya aplicada")
	ErrAlreadyTerminal    = errors.New("la reserva ya está en un estado terminal")
	ErrVersionConflict    = errors.New("conflicto de versión")
	ErrUnauthorized       = errors.New("no autorizado")
)

// StockError acompaña a un error de dominio con las claves y la cantidad involucradas,
// suficiente para que el llamador decida una acción compensatoria (pick corto, backorder).
type StockError struct {
	Op        string
	Keys      []string
	Quantity  decimal.Decimal
	Available decimal.Decimal
	Err       error
}

func (e *StockError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.Keys) > 0 {
		fmt.Fprintf(&b, " (claves=%s", strings.Join(e.Keys, ","))
		fmt.Fprintf(&b, " solicitado=%s disponible=%s)", e.Quantity.String(), e.Available.String())
	}
	return b.String()
}

func (e *StockError) Unwrap() error { return e.Err }

// NewStockError construye un StockError para la operación op.
func NewStockError(op string, err error, qty, available decimal.Decimal, keys ...string) *StockError {
	return &StockError{Op: op, Keys: keys, Quantity: qty, Available: available, Err: err}
}

// AsStockError extrae el StockError de una cadena de errores, si existe.
func AsStockError(err error) (*StockError, bool) {
	var se *StockError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
