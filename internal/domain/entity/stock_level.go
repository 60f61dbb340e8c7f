package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockLevel proyección actual de una StockKey. Derivada del ledger de movimientos;
// solo el agregador la modifica.
type StockLevel struct {
	Key              StockKey
	QuantityOnHand   decimal.Decimal // unidades físicas (>= 0)
	QuantityReserved decimal.Decimal // unidades prometidas a reservas activas (<= OnHand)
	Version          int64           // contador monótono para detectar conflictos
	UpdatedAt        time.Time
}

// NewStockLevel nivel en cero para una clave nunca vista.
func NewStockLevel(key StockKey) StockLevel {
	return StockLevel{Key: key, QuantityOnHand: decimal.Zero, QuantityReserved: decimal.Zero}
}

// QuantityAvailable OnHand - Reserved.
func (l StockLevel) QuantityAvailable() decimal.Decimal {
	return l.QuantityOnHand.Sub(l.QuantityReserved)
}

// IsZero indica si la clave no tiene existencias ni reservas.
func (l StockLevel) IsZero() bool {
	return l.QuantityOnHand.IsZero() && l.QuantityReserved.IsZero()
}
