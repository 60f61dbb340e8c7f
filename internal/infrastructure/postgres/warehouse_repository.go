package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.LocationDirectory = (*LocationRepo)(nil)

// LocationRepo directorio de ubicaciones y su bodega (tabla locations).
type LocationRepo struct {
	q Querier
}

// NewLocationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewLocationRepository(q Querier) *LocationRepo {
	return &LocationRepo{q: q}
}

// LocationExists indica si la ubicación existe para el tenant.
func (r *LocationRepo) LocationExists(ctx context.Context, tenantID, locationID string) (bool, error) {
	var exists bool
	err := r.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM locations WHERE tenant_id = $1 AND id = $2)`, tenantID, locationID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("location exists: %w", err)
	}
	return exists, nil
}

// ResolveWarehouse bodega de la ubicación, o domain.ErrNotFound.
func (r *LocationRepo) ResolveWarehouse(ctx context.Context, tenantID, locationID string) (string, error) {
	var warehouseID string
	err := r.q.QueryRow(ctx,
		`SELECT warehouse_id FROM locations WHERE tenant_id = $1 AND id = $2`, tenantID, locationID,
	).Scan(&warehouseID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("resolve warehouse: %w", err)
	}
	return warehouseID, nil
}

// LocationCode código de la ubicación (el id si está vacío), o domain.ErrNotFound.
func (r *LocationRepo) LocationCode(ctx context.Context, tenantID, locationID string) (string, error) {
	var code string
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(NULLIF(code, ''), id) FROM locations WHERE tenant_id = $1 AND id = $2`, tenantID, locationID,
	).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("location code: %w", err)
	}
	return code, nil
}
