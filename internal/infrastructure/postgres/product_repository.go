package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ProductCatalog = (*ProductRepo)(nil)

// ProductRepo lectura del catálogo de productos (tabla products) sobre PostgreSQL.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador del catálogo. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// ProductExists indica si el producto existe para el tenant.
func (r *ProductRepo) ProductExists(ctx context.Context, tenantID, productID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE tenant_id = $1 AND id = $2)`, tenantID, productID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("product exists: %w", err)
	}
	return exists, nil
}

// GetUnitOfMeasure unidad de medida del producto.
func (r *ProductRepo) GetUnitOfMeasure(ctx context.Context, tenantID, productID string) (string, error) {
	p, err := r.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return "", err
	}
	if p == nil {
		return "", fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	return p.UnitMeasure, nil
}

// GetProduct devuelve nil si el producto no existe.
func (r *ProductRepo) GetProduct(ctx context.Context, tenantID, productID string) (*entity.ProductInfo, error) {
	var p entity.ProductInfo
	err := r.q.QueryRow(ctx, `
		SELECT id, tenant_id, sku, unit_measure, reorder_point
		FROM products WHERE tenant_id = $1 AND id = $2`, tenantID, productID,
	).Scan(&p.ID, &p.TenantID, &p.SKU, &p.UnitMeasure, &p.ReorderPoint)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}
