package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateReservationRequest body para POST /api/reservations. Sin location_id ni
// batch_number se asigna FEFO sobre todas las ubicaciones del producto.
type CreateReservationRequest struct {
	ReservationID string          `json:"reservation_id,omitempty" validate:"max=128"`
	ProductID     string          `json:"product_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	LocationID    string          `json:"location_id,omitempty"`
	BatchNumber   string          `json:"batch_number,omitempty" validate:"max=64"`
	ExpiryDate    string          `json:"expiry_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Reference     ReferenceDTO    `json:"reference"`
	ExpiresAt     *time.Time      `json:"expires_at,omitempty"`
}

// ReleaseReservationRequest body para POST /api/reservations/:id/release.
// Sin quantity se libera todo lo pendiente.
type ReleaseReservationRequest struct {
	Quantity *decimal.Decimal `json:"quantity,omitempty"`
}

// ConsumeReservationRequest body para POST /api/reservations/:id/consume.
type ConsumeReservationRequest struct {
	OperationID string          `json:"operation_id,omitempty" validate:"max=128"`
	ProductID   string          `json:"product_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	AllowShort  bool            `json:"allow_short"`
	LocationID  string          `json:"location_id,omitempty"`
	BatchNumber string          `json:"batch_number,omitempty" validate:"max=64"`
}

// AllocationResponse asignación de una reserva a una clave de stock.
type AllocationResponse struct {
	LocationID  string          `json:"location_id"`
	BatchNumber string          `json:"batch_number,omitempty"`
	ExpiryDate  string          `json:"expiry_date,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Consumed    decimal.Decimal `json:"consumed"`
	Released    decimal.Decimal `json:"released"`
	Outstanding decimal.Decimal `json:"outstanding"`
}

// ReservationResponse estado de una reserva.
type ReservationResponse struct {
	ID                string               `json:"id"`
	ProductID         string               `json:"product_id"`
	Status            string               `json:"status"`
	RequestedQuantity decimal.Decimal      `json:"requested_quantity"`
	Outstanding       decimal.Decimal      `json:"outstanding"`
	Consumed          decimal.Decimal      `json:"consumed"`
	Released          decimal.Decimal      `json:"released"`
	Reference         ReferenceDTO         `json:"reference"`
	Allocations       []AllocationResponse `json:"allocations"`
	ExpiresAt         *time.Time           `json:"expires_at,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// ConsumeResponse resultado de consumir una reserva.
type ConsumeResponse struct {
	Issued      decimal.Decimal      `json:"issued"`
	Short       decimal.Decimal      `json:"short"`
	Released    decimal.Decimal      `json:"released"`
	Reservation ReservationResponse  `json:"reservation"`
	Levels      []StockLevelResponse `json:"levels"`
}
