package repository

import "context"

// LocationDirectory puerto hacia la jerarquía de ubicaciones/bodegas (colaborador externo).
type LocationDirectory interface {
	LocationExists(ctx context.Context, tenantID, locationID string) (bool, error)
	// ResolveWarehouse devuelve la bodega de la ubicación, o domain.ErrNotFound.
	ResolveWarehouse(ctx context.Context, tenantID, locationID string) (string, error)
	// LocationCode devuelve el código de la ubicación (el ID si no tiene), o domain.ErrNotFound.
	LocationCode(ctx context.Context, tenantID, locationID string) (string, error)
}
