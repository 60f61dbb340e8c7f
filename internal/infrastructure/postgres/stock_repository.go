package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockRepo)(nil)

const levelColumns = `tenant_id, product_id, location_id, batch_number, expiry_date,
	quantity_on_hand, quantity_reserved, version, updated_at`

// StockRepo proyección de niveles sobre PostgreSQL (usable con pool o tx).
type StockRepo struct {
	q Querier
}

// NewStockRepository construye el adaptador de stock. Pasar pool o tx (Querier).
func NewStockRepository(q Querier) *StockRepo {
	return &StockRepo{q: q}
}

// Get obtiene el nivel de la clave; nil si nunca se escribió.
func (r *StockRepo) Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	row := r.q.QueryRow(ctx, `SELECT `+levelColumns+` FROM stock_levels WHERE key_id = $1`, key.String())
	l, err := scanLevel(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock level: %w", err)
	}
	return &l, nil
}

// Save escribe el nivel si la versión guardada es expectedVersion (0 = fila nueva).
func (r *StockRepo) Save(ctx context.Context, level entity.StockLevel, expectedVersion int64) error {
	var (
		query string
		args  []any
	)
	if expectedVersion == 0 {
		query = `
			INSERT INTO stock_levels (key_id, tenant_id, product_id, location_id, batch_number, expiry_date,
				quantity_on_hand, quantity_reserved, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (key_id) DO NOTHING`
		args = append(keyColumns(level.Key), level.QuantityOnHand, level.QuantityReserved, level.Version, updatedAt(level))
	} else {
		query = `
			UPDATE stock_levels
			SET quantity_on_hand = $2, quantity_reserved = $3, version = $4, updated_at = $5
			WHERE key_id = $1 AND version = $6`
		args = []any{level.Key.String(), level.QuantityOnHand, level.QuantityReserved, level.Version, updatedAt(level), expectedVersion}
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("save stock level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrVersionConflict
	}
	return nil
}

// ListByProduct niveles del producto ordenados por clave.
func (r *StockRepo) ListByProduct(ctx context.Context, tenantID, productID string) ([]entity.StockLevel, error) {
	return r.ListByTenant(ctx, tenantID, productID)
}

// ListByTenant niveles del tenant; productID vacío = todos.
func (r *StockRepo) ListByTenant(ctx context.Context, tenantID, productID string) ([]entity.StockLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM stock_levels WHERE tenant_id = $1`
	args := []any{tenantID}
	if productID != "" {
		query += ` AND product_id = $2`
		args = append(args, productID)
	}
	query += ` ORDER BY key_id`
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock levels: %w", err)
	}
	defer rows.Close()
	list := make([]entity.StockLevel, 0)
	for rows.Next() {
		l, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

func scanLevel(row pgx.Row) (entity.StockLevel, error) {
	var l entity.StockLevel
	var tenant, product, location, batch string
	var expiry *time.Time
	if err := row.Scan(&tenant, &product, &location, &batch, &expiry,
		&l.QuantityOnHand, &l.QuantityReserved, &l.Version, &l.UpdatedAt); err != nil {
		return entity.StockLevel{}, err
	}
	l.Key = scanKey(tenant, product, location, batch, expiry)
	return l, nil
}

func updatedAt(l entity.StockLevel) time.Time {
	if l.UpdatedAt.IsZero() {
		return time.Now().UTC()
	}
	return l.UpdatedAt
}
