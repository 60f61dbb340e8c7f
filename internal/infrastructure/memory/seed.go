package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Seed datos de referencia para arrancar el motor en memoria.
type Seed struct {
	Products []struct {
		ID           string          `json:"id"`
		TenantID     string          `json:"tenant_id"`
		SKU          string          `json:"sku"`
		UnitMeasure  string          `json:"unit_measure"`
		ReorderPoint decimal.Decimal `json:"reorder_point"`
	} `json:"products"`
	Locations []struct {
		ID          string `json:"id"`
		TenantID    string `json:"tenant_id"`
		WarehouseID string `json:"warehouse_id"`
		Code        string `json:"code"`
	} `json:"locations"`
}

// LoadSeed lee el JSON de r y registra productos y ubicaciones. Devuelve cuántos de cada uno.
func LoadSeed(r io.Reader, catalog *Catalog, locations *Locations) (int, int, error) {
	var seed Seed
	if err := json.NewDecoder(r).Decode(&seed); err != nil {
		return 0, 0, fmt.Errorf("leer seed: %w", err)
	}
	for i, p := range seed.Products {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.TenantID) == "" {
			return 0, 0, fmt.Errorf("seed: producto %d sin id o tenant", i)
		}
		sku := p.SKU
		if sku == "" {
			sku = p.ID
		}
		catalog.Add(entity.ProductInfo{
			ID:           p.ID,
			TenantID:     p.TenantID,
			SKU:          sku,
			UnitMeasure:  p.UnitMeasure,
			ReorderPoint: p.ReorderPoint,
		})
	}
	for i, l := range seed.Locations {
		if strings.TrimSpace(l.ID) == "" || strings.TrimSpace(l.TenantID) == "" {
			return 0, 0, fmt.Errorf("seed: ubicación %d sin id o tenant", i)
		}
		wh := l.WarehouseID
		if wh == "" {
			wh = l.ID
		}
		locations.Add(entity.Location{ID: l.ID, TenantID: l.TenantID, WarehouseID: wh, Code: l.Code})
	}
	return len(seed.Products), len(seed.Locations), nil
}
