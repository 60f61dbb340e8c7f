package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var (
	_ repository.ProductCatalog    = (*Catalog)(nil)
	_ repository.LocationDirectory = (*Locations)(nil)
)

// Catalog catálogo de productos en memoria.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]entity.ProductInfo // tenant|id
}

// NewCatalog construye el catálogo con los productos dados.
func NewCatalog(products ...entity.ProductInfo) *Catalog {
	c := &Catalog{products: make(map[string]entity.ProductInfo)}
	for _, p := range products {
		c.Add(p)
	}
	return c
}

// Add registra o reemplaza un producto.
func (c *Catalog) Add(p entity.ProductInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.TenantID+"|"+p.ID] = p
}

// ProductExists indica si el producto existe para el tenant.
func (c *Catalog) ProductExists(_ context.Context, tenantID, productID string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.products[tenantID+"|"+productID]
	return ok, nil
}

// GetUnitOfMeasure unidad de medida o domain.ErrNotFound.
func (c *Catalog) GetUnitOfMeasure(_ context.Context, tenantID, productID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[tenantID+"|"+productID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p.UnitMeasure, nil
}

// GetProduct devuelve nil si el producto no existe.
func (c *Catalog) GetProduct(_ context.Context, tenantID, productID string) (*entity.ProductInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[tenantID+"|"+productID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// Locations directorio de ubicaciones en memoria.
type Locations struct {
	mu        sync.RWMutex
	locations map[string]entity.Location // tenant|id
}

// NewLocations construye el directorio con las ubicaciones dadas.
func NewLocations(locations ...entity.Location) *Locations {
	d := &Locations{locations: make(map[string]entity.Location)}
	for _, l := range locations {
		d.Add(l)
	}
	return d
}

// Add registra o reemplaza una ubicación.
func (d *Locations) Add(l entity.Location) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locations[l.TenantID+"|"+l.ID] = l
}

// LocationExists indica si la ubicación existe para el tenant.
func (d *Locations) LocationExists(_ context.Context, tenantID, locationID string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.locations[tenantID+"|"+locationID]
	return ok, nil
}

// ResolveWarehouse bodega de la ubicación o domain.ErrNotFound.
func (d *Locations) ResolveWarehouse(_ context.Context, tenantID, locationID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.locations[tenantID+"|"+locationID]
	if !ok {
		return "", domain.ErrNotFound
	}
	return l.WarehouseID, nil
}

// LocationCode código de la ubicación (el ID si no tiene) o domain.ErrNotFound.
func (d *Locations) LocationCode(_ context.Context, tenantID, locationID string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	l, ok := d.locations[tenantID+"|"+locationID]
	if !ok {
		return "", domain.ErrNotFound
	}
	if l.Code == "" {
		return l.ID, nil
	}
	return l.Code, nil
}
