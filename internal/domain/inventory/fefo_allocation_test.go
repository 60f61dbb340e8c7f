package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

func batchLevel(loc, batch string, expiry *time.Time, onHand, reserved int64) entity.StockLevel {
	l := entity.NewStockLevel(entity.NewStockKey("tenantA", "SKU-1", loc, batch, expiry))
	l.QuantityOnHand = d(onHand)
	l.QuantityReserved = d(reserved)
	return l
}

func date(y int, m time.Month, day int) *time.Time {
	t := time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortFEFO_VencimientoSinFechaYDesempate(t *testing.T) {
	levels := []entity.StockLevel{
		batchLevel("LOC-2", "NOEXP", nil, 5, 0),
		batchLevel("LOC-2", "B2", date(2025, 6, 1), 5, 0),
		batchLevel("LOC-9", "B1", date(2025, 1, 1), 5, 0),
		batchLevel("LOC-1", "B1b", date(2025, 1, 1), 5, 0),
		batchLevel("LOC-1", "NOEXP", nil, 5, 0),
	}
	inventory.SortFEFO(levels, nil)

	got := make([]string, 0, len(levels))
	for _, l := range levels {
		got = append(got, l.Key.LocationID+"/"+l.Key.BatchNumber)
	}
	assert.Equal(t, []string{"LOC-1/B1b", "LOC-9/B1", "LOC-2/B2", "LOC-1/NOEXP", "LOC-2/NOEXP"}, got)
}

func TestSortFEFO_DesempataPorCodigoDeUbicacion(t *testing.T) {
	levels := []entity.StockLevel{
		batchLevel("LOC-1", "B1", date(2025, 1, 1), 5, 0),
		batchLevel("LOC-2", "B1", date(2025, 1, 1), 5, 0),
		batchLevel("LOC-3", "B1", date(2025, 1, 1), 5, 0),
	}
	// LOC-3 no tiene código: se ordena por su ID.
	codes := inventory.LocationCodes{"LOC-1": "Z-09", "LOC-2": "A-01"}
	inventory.SortFEFO(levels, codes)

	got := make([]string, 0, len(levels))
	for _, l := range levels {
		got = append(got, l.Key.LocationID)
	}
	assert.Equal(t, []string{"LOC-2", "LOC-3", "LOC-1"}, got)

	plan, err := inventory.PlanFEFO(d(7), levels, codes)
	require.NoError(t, err)
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "LOC-2", plan.Lines[0].Key.LocationID)
	assert.Equal(t, "LOC-3", plan.Lines[1].Key.LocationID)
}

// Escenario: B1 (vence 2025-01-01, 10) y B2 (vence 2025-06-01, 10); reservar 15 toma 10 de B1 y 5 de B2.
func TestPlanFEFO_DivideEntreLotes(t *testing.T) {
	levels := []entity.StockLevel{
		batchLevel("LOC-1", "B2", date(2025, 6, 1), 10, 0),
		batchLevel("LOC-1", "B1", date(2025, 1, 1), 10, 0),
	}
	plan, err := inventory.PlanFEFO(d(15), levels, nil)
	require.NoError(t, err)
	require.True(t, plan.FullyCovered())
	require.Len(t, plan.Lines, 2)
	assert.Equal(t, "B1", plan.Lines[0].Key.BatchNumber)
	assert.True(t, plan.Lines[0].Quantity.Equal(d(10)))
	assert.Equal(t, "B2", plan.Lines[1].Key.BatchNumber)
	assert.True(t, plan.Lines[1].Quantity.Equal(d(5)))
}

func TestPlanFEFO_CantidadMenorAlPrimerLoteNoTocaElSegundo(t *testing.T) {
	levels := []entity.StockLevel{
		batchLevel("LOC-1", "B2", date(2025, 6, 1), 10, 0),
		batchLevel("LOC-1", "B1", date(2025, 1, 1), 10, 0),
	}
	for q := int64(1); q <= 10; q++ {
		plan, err := inventory.PlanFEFO(d(q), levels, nil)
		require.NoError(t, err)
		require.Len(t, plan.Lines, 1)
		assert.Equal(t, "B1", plan.Lines[0].Key.BatchNumber)
	}
}

func TestPlanFEFO_IgnoraReservadoYReportaFaltante(t *testing.T) {
	levels := []entity.StockLevel{
		batchLevel("LOC-1", "B1", date(2025, 1, 1), 10, 10),
		batchLevel("LOC-1", "B2", date(2025, 6, 1), 10, 4),
	}
	plan, err := inventory.PlanFEFO(d(8), levels, nil)
	require.NoError(t, err)
	assert.False(t, plan.FullyCovered())
	assert.True(t, plan.Remaining.Equal(d(2)))
	assert.True(t, plan.TotalAvailable.Equal(d(6)))
}

func TestPlanFEFO_CantidadNoPositiva(t *testing.T) {
	_, err := inventory.PlanFEFO(d(0), nil, nil)
	assert.Error(t, err)
}
