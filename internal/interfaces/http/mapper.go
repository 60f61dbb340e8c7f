package http

import (
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func keyExpiry(k entity.StockKey) string {
	if k.ExpiryDate == nil {
		return ""
	}
	return k.ExpiryDate.Format(dto.DateLayout)
}

func toReference(r *dto.ReferenceDTO) entity.Reference {
	if r == nil {
		return entity.Reference{}
	}
	return entity.Reference{Type: r.Type, ID: r.ID}
}

func fromReference(r entity.Reference) *dto.ReferenceDTO {
	if r.Type == "" && r.ID == "" {
		return nil
	}
	return &dto.ReferenceDTO{Type: r.Type, ID: r.ID}
}

func toLevelResponse(l entity.StockLevel) dto.StockLevelResponse {
	out := dto.StockLevelResponse{
		ProductID:   l.Key.ProductID,
		LocationID:  l.Key.LocationID,
		BatchNumber: l.Key.BatchNumber,
		ExpiryDate:  keyExpiry(l.Key),
		OnHand:      l.QuantityOnHand,
		Reserved:    l.QuantityReserved,
		Available:   l.QuantityAvailable(),
		Version:     l.Version,
	}
	if !l.UpdatedAt.IsZero() {
		t := l.UpdatedAt
		out.UpdatedAt = &t
	}
	return out
}

func toLevelResponses(levels []entity.StockLevel) []dto.StockLevelResponse {
	out := make([]dto.StockLevelResponse, 0, len(levels))
	for _, l := range levels {
		out = append(out, toLevelResponse(l))
	}
	return out
}

func toReservationResponse(r *entity.Reservation) dto.ReservationResponse {
	out := dto.ReservationResponse{
		ID:                r.ID,
		ProductID:         r.ProductID,
		Status:            string(r.Status),
		RequestedQuantity: r.RequestedQuantity,
		Outstanding:       r.Outstanding(),
		Consumed:          r.ConsumedQuantity(),
		Released:          r.ReleasedQuantity(),
		Reference:         dto.ReferenceDTO{Type: r.Reference.Type, ID: r.Reference.ID},
		Allocations:       make([]dto.AllocationResponse, 0, len(r.Allocations)),
		ExpiresAt:         r.ExpiresAt,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
	for _, a := range r.Allocations {
		out.Allocations = append(out.Allocations, dto.AllocationResponse{
			LocationID:  a.Key.LocationID,
			BatchNumber: a.Key.BatchNumber,
			ExpiryDate:  keyExpiry(a.Key),
			Quantity:    a.Quantity,
			Consumed:    a.Consumed,
			Released:    a.Released,
			Outstanding: a.Outstanding(),
		})
	}
	return out
}

func toConsumeResponse(res inventory.ConsumeResult) dto.ConsumeResponse {
	out := dto.ConsumeResponse{
		Issued:   res.Issued,
		Short:    res.Short,
		Released: res.Released,
		Levels:   toLevelResponses(res.Levels),
	}
	if res.Reservation != nil {
		out.Reservation = toReservationResponse(res.Reservation)
	}
	return out
}

func toMovementResponse(m entity.MovementEntry) dto.MovementResponse {
	return dto.MovementResponse{
		ID:             m.ID,
		Sequence:       m.Sequence,
		Type:           string(m.Type),
		ProductID:      m.Key.ProductID,
		LocationID:     m.Key.LocationID,
		BatchNumber:    m.Key.BatchNumber,
		ExpiryDate:     keyExpiry(m.Key),
		Quantity:       m.Quantity,
		FromLocationID: m.FromLocationID,
		ToLocationID:   m.ToLocationID,
		ReservationID:  m.ReservationID,
		ReasonCode:     m.ReasonCode,
		Reference:      fromReference(m.Reference),
		OccurredAt:     m.OccurredAt,
	}
}

func toSummaryResponse(s inventory.StockSummary) dto.StockSummaryResponse {
	out := dto.StockSummaryResponse{
		ProductID:   s.ProductID,
		UnitMeasure: s.UnitMeasure,
		OnHand:      s.OnHand,
		Reserved:    s.Reserved,
		Available:   s.Available,
		Locations:   make([]dto.LocationBreakdownResponse, 0, len(s.Locations)),
	}
	for _, b := range s.Locations {
		out.Locations = append(out.Locations, dto.LocationBreakdownResponse{
			LocationID: b.LocationID,
			OnHand:     b.OnHand,
			Reserved:   b.Reserved,
			Available:  b.Available,
		})
	}
	return out
}
