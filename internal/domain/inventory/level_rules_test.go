package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/inventory"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func levelWith(onHand, reserved int64) entity.StockLevel {
	l := entity.NewStockLevel(entity.NewStockKey("tenantA", "SKU-1", "LOC-1", "", nil))
	l.QuantityOnHand = d(onHand)
	l.QuantityReserved = d(reserved)
	return l
}

func entry(t entity.MovementType, qty int64) entity.MovementEntry {
	return entity.MovementEntry{ID: "m", Type: t, Quantity: d(qty), OccurredAt: time.Now()}
}

func TestApplyMovement_Recepcion(t *testing.T) {
	next, err := inventory.ApplyMovement(levelWith(0, 0), entry(entity.MovementReceipt, 100))
	require.NoError(t, err)
	assert.True(t, next.QuantityOnHand.Equal(d(100)))
	assert.Equal(t, int64(1), next.Version)
}

func TestApplyMovement_SalidaSinStock(t *testing.T) {
	_, err := inventory.ApplyMovement(levelWith(5, 0), entry(entity.MovementIssue, -6))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNegativeStock))

	se, ok := domain.AsStockError(err)
	require.True(t, ok, "el error debe llevar claves y cantidad")
	assert.True(t, se.Quantity.Equal(d(6)))
	assert.Len(t, se.Keys, 1)
}

func TestApplyMovement_SalidaNoReservadaNoTomaLoPrometido(t *testing.T) {
	_, err := inventory.ApplyMovement(levelWith(10, 8), entry(entity.MovementIssue, -3))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
}

func TestApplyMovement_SalidaContraReserva(t *testing.T) {
	e := entry(entity.MovementIssue, -30)
	e.ReservationID = "rsv-1"
	next, err := inventory.ApplyMovement(levelWith(100, 30), e)
	require.NoError(t, err)
	assert.True(t, next.QuantityOnHand.Equal(d(70)))
	assert.True(t, next.QuantityReserved.IsZero())
}

func TestApplyMovement_Ajustes(t *testing.T) {
	cases := []struct {
		name     string
		onHand   int64
		reserved int64
		delta    int64
		wantErr  error
		want     int64
	}{
		{"positivo", 10, 0, 5, nil, 15},
		{"negativo dentro del disponible", 10, 2, -8, nil, 2},
		{"negativo bajo cero", 10, 0, -11, domain.ErrNegativeStock, 0},
		{"negativo bajo lo reservado", 10, 5, -6, domain.ErrInsufficientStock, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := inventory.ApplyMovement(levelWith(tc.onHand, tc.reserved), entry(entity.MovementAdjustment, tc.delta))
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "error esperado %v, obtenido %v", tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, next.QuantityOnHand.Equal(d(tc.want)))
			require.NoError(t, inventory.CheckInvariants(next))
		})
	}
}

func TestApplyMovement_CantidadCeroEsInvalida(t *testing.T) {
	_, err := inventory.ApplyMovement(levelWith(1, 0), entry(entity.MovementReceipt, 0))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestChangeReserved(t *testing.T) {
	next, err := inventory.ChangeReserved(levelWith(70, 0), d(30))
	require.NoError(t, err)
	assert.True(t, next.QuantityAvailable().Equal(d(40)))

	_, err = inventory.ChangeReserved(next, d(41))
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))

	_, err = inventory.ChangeReserved(next, d(-31))
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}

func TestReplayOnHand(t *testing.T) {
	entries := []entity.MovementEntry{
		entry(entity.MovementReceipt, 100),
		entry(entity.MovementIssue, -30),
		entry(entity.MovementTransfer, -20),
		entry(entity.MovementAdjustment, 3),
	}
	assert.True(t, inventory.ReplayOnHand(entries).Equal(d(53)))
}
