package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Querier operaciones comunes de *pgxpool.Pool y pgx.Tx; los repos aceptan cualquiera.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// isUniqueViolation verifica si un error es una violación de constraint único (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return strings.Contains(err.Error(), "23505")
}

// keyColumns valores de columna de una StockKey: key_id, tenant, producto, ubicación, lote, vencimiento.
func keyColumns(k entity.StockKey) []any {
	return []any{k.String(), k.TenantID, k.ProductID, k.LocationID, k.BatchNumber, k.ExpiryDate}
}

// scanKey reconstruye la clave desde sus columnas. DATE llega como medianoche UTC.
func scanKey(tenantID, productID, locationID, batch string, expiry *time.Time) entity.StockKey {
	return entity.NewStockKey(tenantID, productID, locationID, batch, expiry)
}
