package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func seedLevels(t *testing.T, f *fixture) {
	t.Helper()
	f.receive(t, loc2, "B2", day(2025, 6, 1), 4)
	f.receive(t, loc1, "B1", day(2025, 1, 1), 10)
	f.receive(t, loc3, "", nil, 7)
	_, err := f.engine.Stock.ReceiveStock(context.Background(), ReceiveInput{TenantID: tenantA, ProductID: sku2, LocationID: loc1, Quantity: qty(2)})
	require.NoError(t, err)
}

func TestQuery_GetLevelsOrdenPorDefectoYPaginacion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedLevels(t, f)

	p1, err := f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, p1.Total)
	require.Len(t, p1.Items, 2)
	assert.Equal(t, sku1, p1.Items[0].Key.ProductID)
	assert.Equal(t, loc1, p1.Items[0].Key.LocationID)
	assert.Equal(t, loc2, p1.Items[1].Key.LocationID)

	p2, err := f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{}, 2, 2)
	require.NoError(t, err)
	require.Len(t, p2.Items, 2)
	assert.Equal(t, loc3, p2.Items[0].Key.LocationID)
	assert.Equal(t, sku2, p2.Items[1].Key.ProductID)

	p3, err := f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{}, 3, 2)
	require.NoError(t, err)
	assert.Empty(t, p3.Items)
}

func TestQuery_GetLevelsOrdenaPorCodigoDeUbicacion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedLevels(t, f)
	f.locations.Add(entity.Location{ID: loc1, TenantID: tenantA, WarehouseID: wh1, Code: "Z-99"})

	page, err := f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{ProductID: sku1}, 1, 10)
	require.NoError(t, err)
	got := make([]string, 0, len(page.Items))
	for _, l := range page.Items {
		got = append(got, l.Key.LocationID)
	}
	assert.Equal(t, []string{loc2, loc3, loc1}, got, "el código Z-99 de LOC-1 va al final")
}

func TestQuery_GetLevelsFiltros(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedLevels(t, f)
	_, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(4), LocationID: loc2})
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter LevelFilter
		want   int
	}{
		{"producto", LevelFilter{ProductID: sku1}, 3},
		{"ubicación", LevelFilter{LocationID: loc1}, 2},
		{"bodega", LevelFilter{WarehouseID: wh1}, 3},
		{"lote", LevelFilter{BatchNumber: "B1"}, 1},
		{"vencimiento desde", LevelFilter{ExpiresFrom: day(2025, 2, 1)}, 1},
		{"vencimiento hasta", LevelFilter{ExpiresTo: day(2025, 1, 1)}, 1},
		{"solo disponibles", LevelFilter{ProductID: sku1, OnlyAvailable: true}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := f.engine.Query.GetLevels(ctx, tenantA, tt.filter, 1, 50)
			require.NoError(t, err)
			assert.Equal(t, tt.want, page.Total)
		})
	}

	_, err = f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{SortBy: "color"}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{ExpiresFrom: day(2025, 6, 1), ExpiresTo: day(2025, 1, 1)}, 1, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQuery_GetLevelsOrdenPorVencimientoDescendente(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedLevels(t, f)

	page, err := f.engine.Query.GetLevels(ctx, tenantA, LevelFilter{ProductID: sku1, SortBy: SortByExpiry, Desc: true}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Nil(t, page.Items[0].Key.ExpiryDate, "sin vencimiento va al final en ascendente")
	assert.Equal(t, "2025-06-01", page.Items[1].Key.ExpiryString())
	assert.Equal(t, "2025-01-01", page.Items[2].Key.ExpiryString())
}

func TestQuery_DisponibleResumenYStockBajo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	seedLevels(t, f)
	_, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(3)})
	require.NoError(t, err)

	avail, err := f.engine.Query.GetAvailableQuantity(ctx, tenantA, sku1, "", "")
	require.NoError(t, err)
	assert.True(t, avail.Equal(qty(18)))
	avail, err = f.engine.Query.GetAvailableQuantity(ctx, tenantA, sku1, loc1, "B1")
	require.NoError(t, err)
	assert.True(t, avail.Equal(qty(7)), "FEFO reservó del lote B1")

	sum, err := f.engine.Query.GetSummary(ctx, tenantA, sku1)
	require.NoError(t, err)
	assert.Equal(t, "UND", sum.UnitMeasure)
	assert.True(t, sum.OnHand.Equal(qty(21)))
	assert.True(t, sum.Reserved.Equal(qty(3)))
	assert.True(t, sum.Available.Equal(qty(18)))
	require.Len(t, sum.Locations, 3)
	assert.Equal(t, loc1, sum.Locations[0].LocationID)

	threshold := qty(25)
	low, err := f.engine.Query.IsLowStock(ctx, tenantA, sku1, &threshold)
	require.NoError(t, err)
	assert.True(t, low)

	low, err = f.engine.Query.IsLowStock(ctx, tenantA, sku1, nil)
	require.NoError(t, err)
	assert.False(t, low, "21 no está por debajo del punto de reorden 10")

	_, err = f.engine.Query.IsLowStock(ctx, tenantA, "NOPE", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidReference)
}

func TestQuery_ListMovementsPaginado(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		f.receive(t, loc1, "", nil, int64(i+1))
	}
	page, err := f.engine.Query.ListMovements(ctx, tenantA, sku1, loc1, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.True(t, page[0].Quantity.Equal(qty(3)))
	assert.True(t, page[1].Quantity.Equal(qty(4)))
	assert.Equal(t, entity.MovementReceipt, page[0].Type)
	assert.Less(t, page[0].Sequence, page[1].Sequence)
}
