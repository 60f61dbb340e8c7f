package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReservationStatus estado del ciclo de vida de una reserva.
type ReservationStatus string

const (
	ReservationActive            ReservationStatus = "ACTIVE"
	ReservationPartiallyConsumed ReservationStatus = "PARTIALLY_CONSUMED"
	ReservationConsumed          ReservationStatus = "CONSUMED"
	ReservationReleased          ReservationStatus = "RELEASED"
)

// IsTerminal Consumed y Released no admiten más transiciones.
func (s ReservationStatus) IsTerminal() bool {
	return s == ReservationConsumed || s == ReservationReleased
}

// Allocation porción de una reserva asignada a una StockKey concreta.
type Allocation struct {
	Key      StockKey
	Quantity decimal.Decimal // asignado originalmente
	Consumed decimal.Decimal // convertido en salida
	Released decimal.Decimal // devuelto a disponible
}

// Outstanding cantidad aún reservada en la clave.
func (a Allocation) Outstanding() decimal.Decimal {
	return a.Quantity.Sub(a.Consumed).Sub(a.Released)
}

// Reservation compromiso de cantidad de un producto contra una demanda (línea de pedido).
// Puede abarcar varios lotes/ubicaciones cuando FEFO tuvo que dividir.
type Reservation struct {
	ID                string
	TenantID          string
	ProductID         string
	RequestedQuantity decimal.Decimal
	Allocations       []Allocation
	Reference         Reference
	Status            ReservationStatus
	ExpiresAt         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Outstanding suma de lo pendiente en todas las asignaciones.
func (r *Reservation) Outstanding() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Outstanding())
	}
	return total
}

// ConsumedQuantity suma de lo ya despachado.
func (r *Reservation) ConsumedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Consumed)
	}
	return total
}

// ReleasedQuantity suma de lo ya liberado.
func (r *Reservation) ReleasedQuantity() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Released)
	}
	return total
}

// IsExpiredAt indica si la reserva activa venció en el instante now.
func (r *Reservation) IsExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && !r.Status.IsTerminal() && !now.Before(*r.ExpiresAt)
}

// Keys claves de stock de todas las asignaciones, en orden de asignación.
func (r *Reservation) Keys() []StockKey {
	keys := make([]StockKey, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		keys = append(keys, a.Key)
	}
	return keys
}

// RecordConsumption registra qty despachada en la asignación i.
func (r *Reservation) RecordConsumption(i int, qty decimal.Decimal, now time.Time) {
	r.Allocations[i].Consumed = r.Allocations[i].Consumed.Add(qty)
	r.UpdatedAt = now
}

// RecordRelease registra qty liberada en la asignación i.
func (r *Reservation) RecordRelease(i int, qty decimal.Decimal, now time.Time) {
	r.Allocations[i].Released = r.Allocations[i].Released.Add(qty)
	r.UpdatedAt = now
}

// SettleAfterConsume recalcula el estado después de un despacho:
// sin pendiente -> Consumed; con pendiente -> PartiallyConsumed.
func (r *Reservation) SettleAfterConsume() {
	if r.Outstanding().IsZero() {
		r.Status = ReservationConsumed
		return
	}
	r.Status = ReservationPartiallyConsumed
}

// SettleAfterRelease recalcula el estado después de una liberación:
// sin pendiente -> Released; con pendiente conserva el estado no terminal actual.
func (r *Reservation) SettleAfterRelease() {
	if r.Outstanding().IsZero() {
		r.Status = ReservationReleased
	}
}
