package inventory

import (
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ApplyMovement calcula el nivel resultante de aplicar entry sobre level (servicio de dominio puro).
// No muta level. Garantiza OnHand >= 0 y 0 <= Reserved <= OnHand en el resultado.
//
//	RECEIPT:    OnHand += qty (qty > 0)
//	ISSUE:      OnHand -= |qty|; si es contra una reserva, Reserved -= |qty| en el mismo paso
//	TRANSFER:   débito u origen (negativo) o crédito en destino (positivo)
//	ADJUSTMENT: OnHand += delta (delta con signo)
func ApplyMovement(level entity.StockLevel, entry entity.MovementEntry) (entity.StockLevel, error) {
	const op = "apply"
	if !entry.Type.IsValid() || entry.Quantity.IsZero() {
		return level, domain.NewStockError(op, domain.ErrInvalidInput, entry.Quantity, level.QuantityAvailable(), level.Key.String())
	}
	qty := entry.Quantity
	next := level

	switch entry.Type {
	case entity.MovementReceipt:
		if qty.IsNegative() {
			return level, domain.NewStockError(op, domain.ErrInvalidInput, qty, level.QuantityAvailable(), level.Key.String())
		}
	case entity.MovementIssue:
		if qty.IsPositive() {
			return level, domain.NewStockError(op, domain.ErrInvalidInput, qty, level.QuantityAvailable(), level.Key.String())
		}
		if entry.ReservationID != "" {
			if level.QuantityReserved.LessThan(qty.Neg()) {
				return level, domain.NewStockError(op, domain.ErrNegativeStock, qty.Neg(), level.QuantityReserved, level.Key.String())
			}
			next.QuantityReserved = level.QuantityReserved.Add(qty)
		}
	}

	next.QuantityOnHand = level.QuantityOnHand.Add(qty)
	if next.QuantityOnHand.IsNegative() {
		return level, domain.NewStockError(op, domain.ErrNegativeStock, qty.Abs(), level.QuantityOnHand, level.Key.String())
	}
	// Una salida o ajuste no reservado nunca puede tomar unidades ya prometidas.
	if next.QuantityReserved.GreaterThan(next.QuantityOnHand) {
		return level, domain.NewStockError(op, domain.ErrInsufficientStock, qty.Abs(), level.QuantityAvailable(), level.Key.String())
	}
	next.Version = level.Version + 1
	next.UpdatedAt = entry.OccurredAt
	return next, nil
}

// CheckMovement valida entry contra level sin producir el nivel (pre-chequeo antes del append).
func CheckMovement(level entity.StockLevel, entry entity.MovementEntry) error {
	_, err := ApplyMovement(level, entry)
	return err
}

// ChangeReserved aplica delta a Reserved (positivo reserva, negativo libera) sin superar on-hand.
func ChangeReserved(level entity.StockLevel, delta decimal.Decimal) (entity.StockLevel, error) {
	const op = "reserve"
	next := level
	next.QuantityReserved = level.QuantityReserved.Add(delta)
	if next.QuantityReserved.IsNegative() {
		return level, domain.NewStockError(op, domain.ErrInvalidInput, delta.Neg(), level.QuantityReserved, level.Key.String())
	}
	if next.QuantityReserved.GreaterThan(level.QuantityOnHand) {
		return level, domain.NewStockError(op, domain.ErrInsufficientStock, delta, level.QuantityAvailable(), level.Key.String())
	}
	next.Version = level.Version + 1
	return next, nil
}

// ReplayOnHand reconstruye OnHand sumando los asientos (equivalencia ledger-proyección).
func ReplayOnHand(entries []entity.MovementEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Quantity)
	}
	return total
}

// CheckInvariants verifica on-hand >= 0 y 0 <= reserved <= on-hand.
func CheckInvariants(level entity.StockLevel) error {
	if level.QuantityOnHand.IsNegative() {
		return domain.NewStockError("invariant", domain.ErrNegativeStock, level.QuantityOnHand, decimal.Zero, level.Key.String())
	}
	if level.QuantityReserved.IsNegative() || level.QuantityReserved.GreaterThan(level.QuantityOnHand) {
		return domain.NewStockError("invariant", domain.ErrInsufficientStock, level.QuantityReserved, level.QuantityOnHand, level.Key.String())
	}
	return nil
}
