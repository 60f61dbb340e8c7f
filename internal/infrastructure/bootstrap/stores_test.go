package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/events"
	"github.com/jhoicas/stock-ledger/pkg/config"
)

func memoryConfig(seed string) *config.Config {
	return &config.Config{Ledger: config.LedgerConfig{StorageDriver: config.StorageMemory, SeedFile: seed}}
}

func TestOpen_MemoriaConSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"products": [{"id": "P1", "tenant_id": "t1"}],
		"locations": [{"id": "L1", "tenant_id": "t1"}]
	}`), 0o600))

	res, err := Open(context.Background(), memoryConfig(path), zerolog.Nop())
	require.NoError(t, err)
	defer res.Close()

	ok, err := res.Stores.Catalog.ProductExists(context.Background(), "t1", "P1")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = res.Stores.Locations.LocationExists(context.Background(), "t1", "L1")
	require.NoError(t, err)
	assert.True(t, ok)

	fanout, isFanout := res.Stores.Publisher.(events.Fanout)
	require.True(t, isFanout)
	assert.Len(t, fanout, 1, "sin Redis solo queda el publicador de log")
}

func TestOpen_SeedInexistente(t *testing.T) {
	_, err := Open(context.Background(), memoryConfig(filepath.Join(t.TempDir(), "no.json")), zerolog.Nop())
	assert.Error(t, err)
}

func TestResources_CloseEnOrdenInverso(t *testing.T) {
	var order []int
	r := &Resources{closers: []func(){
		func() { order = append(order, 1) },
		func() { order = append(order, 2) },
	}}
	r.Close()
	r.Close()
	assert.Equal(t, []int{2, 1}, order)
}
