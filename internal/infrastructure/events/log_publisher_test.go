package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/memory"
)

func TestLogPublisher_EscribeCamposDelEvento(t *testing.T) {
	var buf bytes.Buffer
	p := NewLogPublisher(zerolog.New(&buf))

	err := p.Publish(context.Background(), entity.StockChanged{
		TenantID: "t1", ProductID: "p1", LocationID: "l1", Delta: decimal.NewFromInt(-2), NewQuantity: decimal.NewFromInt(8), MovementID: "op-9",
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `"event":"inventory.stock_changed"`)
	assert.Contains(t, out, `"delta":"-2"`)
	assert.Contains(t, out, `"movement_id":"op-9"`)
}

func TestFanout_EntregaATodosYCombinaErrores(t *testing.T) {
	ok := memory.NewRecordingPublisher()
	failing := memory.NewRecordingPublisher()
	failing.Err = errors.New("caído")

	f := Fanout{failing, nil, ok}
	err := f.Publish(context.Background(), entity.LowStockCrossed{TenantID: "t1"})
	assert.EqualError(t, err, "caído")
	assert.Len(t, ok.Events(), 1)
}
