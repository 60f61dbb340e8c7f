package inventory

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// PlanLine cantidad a tomar de una clave.
type PlanLine struct {
	Key      entity.StockKey
	Quantity decimal.Decimal
}

// AllocationPlan resultado de seleccionar lotes para una cantidad solicitada.
type AllocationPlan struct {
	Lines          []PlanLine
	TotalAllocated decimal.Decimal
	Remaining      decimal.Decimal // lo que no se pudo cubrir
	TotalAvailable decimal.Decimal // disponible total entre los candidatos
}

// FullyCovered indica si el plan cubre toda la cantidad.
func (p AllocationPlan) FullyCovered() bool { return p.Remaining.IsZero() }

// LocationCodes código de ubicación por ID. Una ubicación ausente o sin código se ordena por su ID.
type LocationCodes map[string]string

// Of código de la ubicación.
func (c LocationCodes) Of(locationID string) string {
	if code := c[locationID]; code != "" {
		return code
	}
	return locationID
}

// SortFEFO ordena niveles por First-Expire-First-Out: vencimiento ascendente, sin vencimiento al final,
// empates por código de ubicación y luego por lote. El orden es determinista.
func SortFEFO(levels []entity.StockLevel, codes LocationCodes) {
	sort.SliceStable(levels, func(i, j int) bool {
		a, b := levels[i].Key, levels[j].Key
		switch {
		case a.ExpiryDate != nil && b.ExpiryDate != nil:
			if !a.ExpiryDate.Equal(*b.ExpiryDate) {
				return a.ExpiryDate.Before(*b.ExpiryDate)
			}
		case a.ExpiryDate != nil:
			return true // a vence, b no: a primero
		case b.ExpiryDate != nil:
			return false
		}
		if ca, cb := codes.Of(a.LocationID), codes.Of(b.LocationID); ca != cb {
			return ca < cb
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.BatchNumber < b.BatchNumber
	})
}

// PlanFEFO selecciona de forma voraz, en orden FEFO, las claves con disponible > 0 hasta cubrir requested.
// No modifica los niveles recibidos. Un plan parcial se devuelve con Remaining > 0;
// la política todo-o-nada la aplica el llamador.
func PlanFEFO(requested decimal.Decimal, levels []entity.StockLevel, codes LocationCodes) (AllocationPlan, error) {
	if !requested.IsPositive() {
		return AllocationPlan{}, domain.ErrInvalidInput
	}
	candidates := make([]entity.StockLevel, 0, len(levels))
	for _, l := range levels {
		if l.QuantityAvailable().IsPositive() {
			candidates = append(candidates, l)
		}
	}
	SortFEFO(candidates, codes)

	plan := AllocationPlan{
		Lines:          make([]PlanLine, 0),
		TotalAllocated: decimal.Zero,
		Remaining:      requested,
		TotalAvailable: decimal.Zero,
	}
	for _, c := range candidates {
		avail := c.QuantityAvailable()
		plan.TotalAvailable = plan.TotalAvailable.Add(avail)
		if plan.Remaining.IsZero() {
			continue
		}
		take := decimal.Min(plan.Remaining, avail)
		plan.Lines = append(plan.Lines, PlanLine{Key: c.Key, Quantity: take})
		plan.TotalAllocated = plan.TotalAllocated.Add(take)
		plan.Remaining = plan.Remaining.Sub(take)
	}
	return plan, nil
}
