package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tipos de eventos de dominio emitidos por el motor.
const (
	EventStockChanged    = "inventory.stock_changed"
	EventLowStockCrossed = "inventory.low_stock_crossed"
)

// DomainEvent evento emitido después de una operación confirmada. La entrega
// (correo, webhook, push) corresponde al colaborador de automatización.
type DomainEvent interface {
	EventType() string
	Tenant() string
	OccurredAt() time.Time
}

// StockChanged se emite por cada clave cuyo OnHand cambió.
type StockChanged struct {
	TenantID    string          `json:"tenant_id"`
	ProductID   string          `json:"product_id"`
	LocationID  string          `json:"location_id"`
	BatchNumber string          `json:"batch_number,omitempty"`
	NewQuantity decimal.Decimal `json:"new_quantity"`
	Delta       decimal.Decimal `json:"delta"`
	MovementID  string          `json:"movement_id"`
	At          time.Time       `json:"occurred_at"`
}

func (e StockChanged) EventType() string     { return EventStockChanged }
func (e StockChanged) Tenant() string        { return e.TenantID }
func (e StockChanged) OccurredAt() time.Time { return e.At }

// LowStockCrossed se emite cuando el OnHand total del producto cae por debajo del umbral.
type LowStockCrossed struct {
	TenantID        string          `json:"tenant_id"`
	ProductID       string          `json:"product_id"`
	SKU             string          `json:"sku"`
	CurrentQuantity decimal.Decimal `json:"current_quantity"`
	Threshold       decimal.Decimal `json:"threshold"`
	At              time.Time       `json:"occurred_at"`
}

func (e LowStockCrossed) EventType() string     { return EventLowStockCrossed }
func (e LowStockCrossed) Tenant() string        { return e.TenantID }
func (e LowStockCrossed) OccurredAt() time.Time { return e.At }
