package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ──────────────────────────────────────────────────────────────────────────────
// Reserve
// ──────────────────────────────────────────────────────────────────────────────

func TestReserve_FEFODivideEntreLotes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "B2", day(2025, 6, 1), 10)
	f.receive(t, loc1, "B1", day(2025, 1, 1), 10)

	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(15)})
	require.NoError(t, err)
	require.Len(t, r.Allocations, 2)
	assert.Equal(t, "B1", r.Allocations[0].Key.BatchNumber)
	assert.True(t, r.Allocations[0].Quantity.Equal(qty(10)))
	assert.Equal(t, "B2", r.Allocations[1].Key.BatchNumber)
	assert.True(t, r.Allocations[1].Quantity.Equal(qty(5)))
	assert.Equal(t, entity.ReservationActive, r.Status)

	assert.True(t, f.level(t, loc1, "B1", day(2025, 1, 1)).QuantityReserved.Equal(qty(10)))
	assert.True(t, f.level(t, loc1, "B2", day(2025, 6, 1)).QuantityReserved.Equal(qty(5)))
	f.assertConsistent(t, tenantA)
}

func TestReserve_FEFODeterminista(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f := newFixture(t)
		f.receive(t, loc2, "", nil, 50)
		f.receive(t, loc1, "LATE", day(2025, 9, 1), 50)
		f.receive(t, loc1, "EARLY", day(2025, 3, 1), 50)

		r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(40)})
		require.NoError(t, err)
		require.Len(t, r.Allocations, 1, "cabe en el lote que vence primero")
		assert.Equal(t, "EARLY", r.Allocations[0].Key.BatchNumber)
	}
}

func TestReserve_EmpateFEFOPorCodigoDeUbicacion(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.locations.Add(entity.Location{ID: loc1, TenantID: tenantA, WarehouseID: wh1, Code: "B-02"})
	f.locations.Add(entity.Location{ID: loc2, TenantID: tenantA, WarehouseID: wh1, Code: "A-01"})
	f.receive(t, loc1, "", nil, 5)
	f.receive(t, loc2, "", nil, 5)

	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(3)})
	require.NoError(t, err)
	require.Len(t, r.Allocations, 1)
	assert.Equal(t, loc2, r.Allocations[0].Key.LocationID, "A-01 antes que B-02")
}

func TestReserve_TodoONada(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 40)
	f.receive(t, loc2, "", nil, 30)

	_, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(200)})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	se, ok := domain.AsStockError(err)
	require.True(t, ok)
	assert.True(t, se.Available.Equal(qty(70)))
	assert.Len(t, se.Keys, 2)

	assert.True(t, f.available(t).Equal(qty(70)), "ninguna clave queda reservada")
	assert.True(t, f.level(t, loc1, "", nil).QuantityReserved.IsZero())
	assert.True(t, f.level(t, loc2, "", nil).QuantityReserved.IsZero())
}

func TestReserve_SinCandidatas(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Reservations.Reserve(context.Background(), ReserveInput{TenantID: tenantA, ProductID: sku2, Quantity: qty(1)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestReserve_FiltrosDeUbicacionYLote(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "B1", day(2025, 1, 1), 5)
	f.receive(t, loc2, "B1", day(2025, 1, 1), 5)
	f.receive(t, loc2, "B2", day(2024, 1, 1), 5)

	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(3), LocationID: loc2})
	require.NoError(t, err)
	assert.Equal(t, "B2", r.Allocations[0].Key.BatchNumber, "FEFO dentro de la ubicación")

	r, err = f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(8), BatchNumber: "B1"})
	require.NoError(t, err, "lote sin ubicación: FEFO del lote entre ubicaciones")
	require.Len(t, r.Allocations, 2)
	assert.Equal(t, loc1, r.Allocations[0].Key.LocationID)

	_, err = f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(3), LocationID: loc1, BatchNumber: "B1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock, "ese lote ya está comprometido en LOC-1")
	f.assertConsistent(t, tenantA)
}

func TestReserve_IdempotentePorReservationID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	in := ReserveInput{ReservationID: "res-1", TenantID: tenantA, ProductID: sku1, Quantity: qty(4)}

	first, err := f.engine.Reservations.Reserve(ctx, in)
	require.NoError(t, err)
	second, err := f.engine.Reservations.Reserve(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, f.level(t, loc1, "", nil).QuantityReserved.Equal(qty(4)), "sin doble reserva")
}

func TestReserve_ConcurrentesNuncaExcedenOnHand(t *testing.T) {
	for i := 0; i < 20; i++ {
		f := newFixture(t)
		f.receive(t, loc1, "", nil, 70)

		var errs [2]error
		g := new(errgroup.Group)
		for j, n := range []int64{30, 50} {
			g.Go(func() error {
				_, errs[j] = f.engine.Reservations.Reserve(context.Background(), ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(n)})
				return nil
			})
		}
		require.NoError(t, g.Wait())

		failed := 0
		for _, err := range errs {
			if err != nil {
				require.ErrorIs(t, err, domain.ErrInsufficientStock)
				failed++
			}
		}
		assert.Equal(t, 1, failed, "exactamente una reserva falla")
		l := f.level(t, loc1, "", nil)
		assert.True(t, l.QuantityReserved.LessThanOrEqual(l.QuantityOnHand))
		f.assertConsistent(t, tenantA)
	}
}

func TestReserve_TTLPorDefecto(t *testing.T) {
	f := newFixture(t)
	f.engine.Reservations.ttl = 15 * time.Minute
	now := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	f.engine.Reservations.now = func() time.Time { return now }
	f.receive(t, loc1, "", nil, 5)

	r, err := f.engine.Reservations.Reserve(context.Background(), ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(1)})
	require.NoError(t, err)
	require.NotNil(t, r.ExpiresAt)
	assert.Equal(t, now.Add(15*time.Minute), *r.ExpiresAt)
}

// ──────────────────────────────────────────────────────────────────────────────
// Release
// ──────────────────────────────────────────────────────────────────────────────

func TestRelease_TotalYTerminal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(6)})
	require.NoError(t, err)

	got, err := f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationReleased, got.Status)
	assert.True(t, f.available(t).Equal(qty(10)))

	_, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID})
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	_, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantB, ReservationID: r.ID})
	assert.ErrorIs(t, err, domain.ErrNotFound, "otra empresa no ve la reserva")
}

func TestRelease_ParcialProporcional(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "B1", day(2025, 1, 1), 10)
	f.receive(t, loc1, "B2", day(2025, 6, 1), 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(15)})
	require.NoError(t, err)

	part := qty(6)
	got, err := f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID, Quantity: &part})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, got.Status)
	assert.True(t, got.Allocations[0].Released.Equal(qty(4)), "10/15 de 6")
	assert.True(t, got.Allocations[1].Released.Equal(qty(2)), "5/15 de 6")
	assert.True(t, got.Outstanding().Equal(qty(9)))

	tooMuch := qty(10)
	_, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID, Quantity: &tooMuch})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	rest := qty(9)
	got, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID, Quantity: &rest})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationReleased, got.Status)
	f.assertConsistent(t, tenantA)
}

// ──────────────────────────────────────────────────────────────────────────────
// ConsumeForIssue
// ──────────────────────────────────────────────────────────────────────────────

func TestConsume_ParcialYLuegoTotal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 20)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(10)})
	require.NoError(t, err)

	out, err := f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{TenantID: tenantA, ReservationID: r.ID, Quantity: qty(4)})
	require.NoError(t, err)
	assert.True(t, out.Issued.Equal(qty(4)))
	assert.True(t, out.Short.IsZero())
	assert.Equal(t, entity.ReservationPartiallyConsumed, out.Reservation.Status)

	out, err = f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{TenantID: tenantA, ReservationID: r.ID, Quantity: qty(6)})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationConsumed, out.Reservation.Status)

	l := f.level(t, loc1, "", nil)
	assert.True(t, l.QuantityOnHand.Equal(qty(10)))
	assert.True(t, l.QuantityReserved.IsZero())

	_, err = f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{TenantID: tenantA, ReservationID: r.ID, Quantity: qty(1)})
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	f.assertConsistent(t, tenantA)
}

func TestConsume_SinPickCortoFallaSinMutar(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(8)})
	require.NoError(t, err)

	_, err = f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{TenantID: tenantA, ReservationID: r.ID, Quantity: qty(9)})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	se, ok := domain.AsStockError(err)
	require.True(t, ok)
	assert.True(t, se.Available.Equal(qty(8)))

	l := f.level(t, loc1, "", nil)
	assert.True(t, l.QuantityOnHand.Equal(qty(10)))
	assert.True(t, l.QuantityReserved.Equal(qty(8)))
	got, err := f.engine.Reservations.GetReservation(ctx, tenantA, r.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, got.Status)
}

func TestConsume_PickCortoLiberaElFaltante(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(10)})
	require.NoError(t, err)

	// Merma: se libera parte de lo comprometido y se ajusta el físico a la baja.
	part := qty(6)
	_, err = f.engine.Reservations.Release(ctx, ReleaseInput{TenantID: tenantA, ReservationID: r.ID, Quantity: &part})
	require.NoError(t, err)
	_, err = f.engine.Stock.AdjustStock(ctx, AdjustInput{TenantID: tenantA, ProductID: sku1, LocationID: loc1, Delta: qty(-6), ReasonCode: "MERMA"})
	require.NoError(t, err)

	out, err := f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{TenantID: tenantA, ReservationID: r.ID, Quantity: qty(6), AllowShort: true})
	require.NoError(t, err)
	assert.True(t, out.Issued.Equal(qty(4)))
	assert.True(t, out.Short.Equal(qty(2)))
	assert.True(t, out.Released.IsZero(), "no quedaba pendiente para liberar")
	assert.Equal(t, entity.ReservationConsumed, out.Reservation.Status)
	f.assertConsistent(t, tenantA)
}

func TestConsume_PickCortoConPendienteSinStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 5)
	f.receive(t, loc2, "", nil, 5)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(10)})
	require.NoError(t, err)

	// Solo se despacha en LOC-1: lo pendiente en LOC-2 no es elegible para esta salida.
	out, err := f.engine.Reservations.ConsumeForIssue(ctx, ConsumeInput{
		TenantID: tenantA, ReservationID: r.ID, Quantity: qty(7), AllowShort: true, LocationID: loc1,
	})
	require.NoError(t, err)
	assert.True(t, out.Issued.Equal(qty(5)))
	assert.True(t, out.Short.Equal(qty(2)))
	assert.Equal(t, entity.ReservationPartiallyConsumed, out.Reservation.Status)
	assert.True(t, out.Reservation.Outstanding().Equal(qty(5)), "LOC-2 sigue reservado")
	f.assertConsistent(t, tenantA)
}

func TestConsume_ReintentoConMismoOperationID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(5)})
	require.NoError(t, err)

	in := ConsumeInput{OperationID: "pick-1", TenantID: tenantA, ReservationID: r.ID, Quantity: qty(3)}
	_, err = f.engine.Reservations.ConsumeForIssue(ctx, in)
	require.NoError(t, err)
	out, err := f.engine.Reservations.ConsumeForIssue(ctx, in)
	require.NoError(t, err)
	assert.True(t, out.Issued.Equal(qty(3)))

	l := f.level(t, loc1, "", nil)
	assert.True(t, l.QuantityOnHand.Equal(qty(7)), "sin segunda salida")
	assert.True(t, l.QuantityReserved.Equal(qty(2)))
	f.assertConsistent(t, tenantA)
}

func TestConsume_ProductoDistintoEsInvalido(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	r, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(5)})
	require.NoError(t, err)

	_, err = f.engine.Stock.IssueStock(ctx, IssueInput{TenantID: tenantA, ProductID: sku2, LocationID: loc1, Quantity: qty(1), ReservationID: r.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

// ──────────────────────────────────────────────────────────────────────────────
// Consultas por referencia y vencimientos
// ──────────────────────────────────────────────────────────────────────────────

func TestReservations_ListarPorReferencia(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	ref := entity.Reference{Type: "SO", ID: "SO-9"}
	for i := 0; i < 2; i++ {
		_, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(1), Reference: ref})
		require.NoError(t, err)
	}
	_, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(1), Reference: entity.Reference{Type: "SO", ID: "OTRA"}})
	require.NoError(t, err)

	list, err := f.engine.Reservations.ListByReference(ctx, tenantA, ref)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = f.engine.Reservations.ListByReference(ctx, tenantA, entity.Reference{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReservationExpiration_LiberaVencidas(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.receive(t, loc1, "", nil, 10)
	past := time.Now().Add(-time.Minute)
	future := time.Now().Add(time.Hour)

	expired, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(3), ExpiresAt: &past})
	require.NoError(t, err)
	alive, err := f.engine.Reservations.Reserve(ctx, ReserveInput{TenantID: tenantA, ProductID: sku1, Quantity: qty(2), ExpiresAt: &future})
	require.NoError(t, err)

	svc := NewReservationExpirationService(f.reservations, f.engine.Reservations, time.Minute, f.engine.Components.Log)
	stats, err := svc.ReleaseExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalExpired)
	assert.Equal(t, 1, stats.Released)

	got, err := f.engine.Reservations.GetReservation(ctx, tenantA, expired.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationReleased, got.Status)
	got, err = f.engine.Reservations.GetReservation(ctx, tenantA, alive.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, got.Status)
	assert.True(t, f.level(t, loc1, "", nil).QuantityReserved.Equal(qty(2)))

	stats, err = svc.ReleaseExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalExpired, "las terminales no se tocan")
}

func TestReservationExpiration_RunTerminaConElContexto(t *testing.T) {
	f := newFixture(t)
	svc := NewReservationExpirationService(f.reservations, f.engine.Reservations, 5*time.Millisecond, f.engine.Components.Log)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run no terminó tras cancelar")
	}
}
