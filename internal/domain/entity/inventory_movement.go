package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementType tipo de movimiento del ledger.
type MovementType string

// Tipos de movimiento de inventario.
const (
	MovementReceipt    MovementType = "RECEIPT"    // entrada
	MovementIssue      MovementType = "ISSUE"      // salida
	MovementTransfer   MovementType = "TRANSFER"   // traslado entre ubicaciones (dos asientos)
	MovementAdjustment MovementType = "ADJUSTMENT" // ajuste (positivo o negativo)
)

// IsValid verifica que el tipo sea conocido.
func (t MovementType) IsValid() bool {
	switch t {
	case MovementReceipt, MovementIssue, MovementTransfer, MovementAdjustment:
		return true
	}
	return false
}

// Reference documento externo que originó la operación (orden, tarea, conteo).
type Reference struct {
	Type string
	ID   string
}

// MovementEntry asiento del ledger. Solo se agrega; nunca se actualiza ni se borra.
// Quantity es con signo: positivo suma a OnHand de Key, negativo resta.
type MovementEntry struct {
	ID             string // único; reintentar el mismo ID no tiene efecto
	Sequence       int64  // orden de inserción asignado por el ledger
	Key            StockKey
	Type           MovementType
	Quantity       decimal.Decimal
	FromLocationID string // traslados: ubicación origen
	ToLocationID   string // traslados: ubicación destino
	ReservationID  string // salidas contra una reserva: libera Reserved en el mismo apply
	ReasonCode     string // ajustes y compensaciones
	Reference      Reference
	OccurredAt     time.Time
}

// IsDebit indica si el asiento resta existencias.
func (m MovementEntry) IsDebit() bool { return m.Quantity.IsNegative() }
