package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*InventoryMovementRepo)(nil)

const movementColumns = `seq, id, tenant_id, product_id, location_id, batch_number, expiry_date, type, quantity,
	from_location_id, to_location_id, reservation_id, reason_code, reference_type, reference_id, occurred_at`

// InventoryMovementRepo ledger de movimientos sobre PostgreSQL (usable con pool o tx).
type InventoryMovementRepo struct {
	q Querier
}

// NewInventoryMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInventoryMovementRepository(q Querier) *InventoryMovementRepo {
	return &InventoryMovementRepo{q: q}
}

// Append inserta el asiento. Si el id ya existe para el tenant no escribe y devuelve el asiento guardado.
func (r *InventoryMovementRepo) Append(ctx context.Context, e entity.MovementEntry) (entity.MovementEntry, bool, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	query := `
		INSERT INTO inventory_movements (id, key_id, tenant_id, product_id, location_id, batch_number, expiry_date,
			type, quantity, from_location_id, to_location_id, reservation_id, reason_code, reference_type, reference_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (tenant_id, id) DO NOTHING
		RETURNING seq`
	args := append([]any{e.ID}, keyColumns(e.Key)...)
	args = append(args, string(e.Type), e.Quantity, e.FromLocationID, e.ToLocationID, e.ReservationID,
		e.ReasonCode, e.Reference.Type, e.Reference.ID, e.OccurredAt)

	err := r.q.QueryRow(ctx, query, args...).Scan(&e.Sequence)
	if err == nil {
		return e, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return entity.MovementEntry{}, false, fmt.Errorf("insert movement %s: %w", e.ID, err)
	}
	stored, err := r.GetByID(ctx, e.Key.TenantID, e.ID)
	if err != nil {
		return entity.MovementEntry{}, false, err
	}
	if stored == nil {
		return entity.MovementEntry{}, false, fmt.Errorf("movement %s: conflicto sin fila", e.ID)
	}
	return *stored, false, nil
}

// GetByID obtiene un asiento del tenant por id; nil si no existe.
func (r *InventoryMovementRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.MovementEntry, error) {
	row := r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	m, err := scanMovement(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return &m, nil
}

// ListByKey asientos de la clave en orden de inserción.
func (r *InventoryMovementRepo) ListByKey(ctx context.Context, key entity.StockKey) ([]entity.MovementEntry, error) {
	rows, err := r.q.Query(ctx, `SELECT `+movementColumns+` FROM inventory_movements WHERE key_id = $1 ORDER BY seq`, key.String())
	if err != nil {
		return nil, fmt.Errorf("list movements by key: %w", err)
	}
	return collectMovements(rows)
}

// List asientos del producto (y opcionalmente de una ubicación) en orden de inserción.
func (r *InventoryMovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]entity.MovementEntry, error) {
	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE tenant_id = $1`
	args := []any{f.TenantID}
	pos := 2
	if f.ProductID != "" {
		query += fmt.Sprintf(" AND product_id = $%d", pos)
		args = append(args, f.ProductID)
		pos++
	}
	if f.LocationID != "" {
		query += fmt.Sprintf(" AND location_id = $%d", pos)
		args = append(args, f.LocationID)
		pos++
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", pos, pos+1)
		args = append(args, f.Limit, f.Offset)
	}
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return collectMovements(rows)
}

// Keys claves con al menos un asiento para el tenant.
func (r *InventoryMovementRepo) Keys(ctx context.Context, tenantID string) ([]entity.StockKey, error) {
	rows, err := r.q.Query(ctx, `
		SELECT DISTINCT ON (key_id) tenant_id, product_id, location_id, batch_number, expiry_date
		FROM inventory_movements WHERE tenant_id = $1 ORDER BY key_id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list movement keys: %w", err)
	}
	defer rows.Close()
	var keys []entity.StockKey
	for rows.Next() {
		var tenant, product, location, batch string
		var expiry *time.Time
		if err := rows.Scan(&tenant, &product, &location, &batch, &expiry); err != nil {
			return nil, fmt.Errorf("scan movement key: %w", err)
		}
		keys = append(keys, scanKey(tenant, product, location, batch, expiry))
	}
	return keys, rows.Err()
}

func scanMovement(row pgx.Row) (entity.MovementEntry, error) {
	var m entity.MovementEntry
	var tenant, product, location, batch, typ string
	var expiry *time.Time
	err := row.Scan(&m.Sequence, &m.ID, &tenant, &product, &location, &batch, &expiry, &typ, &m.Quantity,
		&m.FromLocationID, &m.ToLocationID, &m.ReservationID, &m.ReasonCode, &m.Reference.Type, &m.Reference.ID, &m.OccurredAt)
	if err != nil {
		return entity.MovementEntry{}, err
	}
	m.Key = scanKey(tenant, product, location, batch, expiry)
	m.Type = entity.MovementType(typ)
	return m, nil
}

func collectMovements(rows pgx.Rows) ([]entity.MovementEntry, error) {
	defer rows.Close()
	list := make([]entity.MovementEntry, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
