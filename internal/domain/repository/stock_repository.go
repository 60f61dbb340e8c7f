package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// StockRepository puerto de la proyección de niveles (una fila por StockKey).
// Save escribe condicionado a expectedVersion (0 = la clave no existía) y devuelve
// domain.ErrVersionConflict si otro escritor se adelantó.
type StockRepository interface {
	Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)
	Save(ctx context.Context, level entity.StockLevel, expectedVersion int64) error
	// ListByProduct niveles de un producto del tenant (todas las ubicaciones y lotes).
	ListByProduct(ctx context.Context, tenantID, productID string) ([]entity.StockLevel, error)
	// ListByTenant niveles del tenant; productID vacío = todos los productos.
	ListByTenant(ctx context.Context, tenantID, productID string) ([]entity.StockLevel, error)
}
