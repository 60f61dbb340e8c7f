package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout formato de fechas de vencimiento en requests y responses.
const DateLayout = "2006-01-02"

// ReferenceDTO documento externo que origina el movimiento o la reserva (pedido, OC, conteo).
type ReferenceDTO struct {
	Type string `json:"type" validate:"max=64"`
	ID   string `json:"id" validate:"max=128"`
}

// ReceiveStockRequest body para POST /api/stock/receipts.
type ReceiveStockRequest struct {
	OperationID string          `json:"operation_id,omitempty" validate:"max=128"`
	ProductID   string          `json:"product_id" validate:"required"`
	LocationID  string          `json:"location_id" validate:"required"`
	Quantity    decimal.Decimal `json:"quantity"`
	BatchNumber string          `json:"batch_number,omitempty" validate:"max=64"`
	ExpiryDate  string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reference   *ReferenceDTO   `json:"reference,omitempty"`
}

// IssueStockRequest body para POST /api/stock/issues. Con reservation_id la salida
// consume la reserva en esa ubicación.
type IssueStockRequest struct {
	OperationID   string          `json:"operation_id,omitempty" validate:"max=128"`
	ProductID     string          `json:"product_id" validate:"required"`
	LocationID    string          `json:"location_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	BatchNumber   string          `json:"batch_number,omitempty" validate:"max=64"`
	ExpiryDate    string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ReservationID string          `json:"reservation_id,omitempty"`
	Reference     *ReferenceDTO   `json:"reference,omitempty"`
}

// TransferStockRequest body para POST /api/stock/transfers.
type TransferStockRequest struct {
	OperationID    string          `json:"operation_id,omitempty" validate:"max=128"`
	ProductID      string          `json:"product_id" validate:"required"`
	FromLocationID string          `json:"from_location_id" validate:"required"`
	ToLocationID   string          `json:"to_location_id" validate:"required,nefield=FromLocationID"`
	Quantity       decimal.Decimal `json:"quantity"`
	BatchNumber    string          `json:"batch_number,omitempty" validate:"max=64"`
	ExpiryDate     string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reference      *ReferenceDTO   `json:"reference,omitempty"`
}

// AdjustStockRequest body para POST /api/stock/adjustments (delta con signo).
type AdjustStockRequest struct {
	OperationID string          `json:"operation_id,omitempty" validate:"max=128"`
	ProductID   string          `json:"product_id" validate:"required"`
	LocationID  string          `json:"location_id" validate:"required"`
	Delta       decimal.Decimal `json:"delta"`
	BatchNumber string          `json:"batch_number,omitempty" validate:"max=64"`
	ExpiryDate  string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ReasonCode  string          `json:"reason_code" validate:"required,max=64"`
	Reference   *ReferenceDTO   `json:"reference,omitempty"`
}

// StockLevelResponse nivel de una clave de stock.
type StockLevelResponse struct {
	ProductID   string          `json:"product_id"`
	LocationID  string          `json:"location_id"`
	BatchNumber string          `json:"batch_number,omitempty"`
	ExpiryDate  string          `json:"expiry_date,omitempty"`
	OnHand      decimal.Decimal `json:"quantity_on_hand"`
	Reserved    decimal.Decimal `json:"quantity_reserved"`
	Available   decimal.Decimal `json:"quantity_available"`
	Version     int64           `json:"version"`
	UpdatedAt   *time.Time      `json:"updated_at,omitempty"`
}

// TransferResponse niveles de origen y destino tras el traslado.
type TransferResponse struct {
	From StockLevelResponse `json:"from"`
	To   StockLevelResponse `json:"to"`
}

// LevelPageResponse página de niveles.
type LevelPageResponse struct {
	PageResponse
	Items []StockLevelResponse `json:"items"`
}

// AvailableResponse disponible sumado para el filtro pedido.
type AvailableResponse struct {
	ProductID   string          `json:"product_id"`
	LocationID  string          `json:"location_id,omitempty"`
	BatchNumber string          `json:"batch_number,omitempty"`
	Available   decimal.Decimal `json:"quantity_available"`
}

// LocationBreakdownResponse totales de un producto en una ubicación.
type LocationBreakdownResponse struct {
	LocationID string          `json:"location_id"`
	OnHand     decimal.Decimal `json:"quantity_on_hand"`
	Reserved   decimal.Decimal `json:"quantity_reserved"`
	Available  decimal.Decimal `json:"quantity_available"`
}

// StockSummaryResponse totales del producto con desglose por ubicación.
type StockSummaryResponse struct {
	ProductID   string                      `json:"product_id"`
	UnitMeasure string                      `json:"unit_measure,omitempty"`
	OnHand      decimal.Decimal             `json:"quantity_on_hand"`
	Reserved    decimal.Decimal             `json:"quantity_reserved"`
	Available   decimal.Decimal             `json:"quantity_available"`
	Locations   []LocationBreakdownResponse `json:"locations"`
}

// LowStockResponse resultado de GET /api/stock/low-stock/:productId.
type LowStockResponse struct {
	ProductID string `json:"product_id"`
	LowStock  bool   `json:"low_stock"`
}

// MovementResponse asiento del ledger.
type MovementResponse struct {
	ID             string          `json:"id"`
	Sequence       int64           `json:"sequence"`
	Type           string          `json:"type"`
	ProductID      string          `json:"product_id"`
	LocationID     string          `json:"location_id"`
	BatchNumber    string          `json:"batch_number,omitempty"`
	ExpiryDate     string          `json:"expiry_date,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	FromLocationID string          `json:"from_location_id,omitempty"`
	ToLocationID   string          `json:"to_location_id,omitempty"`
	ReservationID  string          `json:"reservation_id,omitempty"`
	ReasonCode     string          `json:"reason_code,omitempty"`
	Reference      *ReferenceDTO   `json:"reference,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// MovementListResponse página del historial.
type MovementListResponse struct {
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []MovementResponse `json:"items"`
}
