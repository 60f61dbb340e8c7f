package memory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func receipt(tenantID, id string, n int64) entity.MovementEntry {
	return entity.MovementEntry{
		ID:       id,
		Key:      entity.NewStockKey(tenantID, "P1", "L1", "", nil),
		Type:     entity.MovementReceipt,
		Quantity: decimal.NewFromInt(n),
	}
}

func TestMovementStore_IDPorTenant(t *testing.T) {
	ctx := context.Background()
	s := NewMovementStore()

	a, created, err := s.Append(ctx, receipt("t1", "op-1", 100))
	require.NoError(t, err)
	assert.True(t, created)
	b, created, err := s.Append(ctx, receipt("t2", "op-1", 50))
	require.NoError(t, err)
	assert.True(t, created, "el mismo id en otro tenant es otro asiento")
	assert.NotEqual(t, a.Sequence, b.Sequence)

	got, err := s.GetByID(ctx, "t2", "op-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Quantity.Equal(decimal.NewFromInt(50)))

	missing, err := s.GetByID(ctx, "t3", "op-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMovementStore_AppendRepetidoDevuelveOriginal(t *testing.T) {
	ctx := context.Background()
	s := NewMovementStore()
	_, _, err := s.Append(ctx, receipt("t1", "op-1", 100))
	require.NoError(t, err)

	stored, created, err := s.Append(ctx, receipt("t1", "op-1", 7))
	require.NoError(t, err)
	assert.False(t, created)
	assert.True(t, stored.Quantity.Equal(decimal.NewFromInt(100)))

	entries, err := s.ListByKey(ctx, entity.NewStockKey("t1", "P1", "L1", "", nil))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
