package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ProductCatalog puerto hacia el servicio de catálogo (colaborador externo).
// Se usa para validar entradas antes de mutar estado y para los umbrales de stock bajo.
type ProductCatalog interface {
	ProductExists(ctx context.Context, tenantID, productID string) (bool, error)
	GetUnitOfMeasure(ctx context.Context, tenantID, productID string) (string, error)
	// GetProduct devuelve nil si el producto no existe para el tenant.
	GetProduct(ctx context.Context, tenantID, productID string) (*entity.ProductInfo, error)
}
