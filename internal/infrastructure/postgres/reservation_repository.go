package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `tenant_id, id, product_id, requested_quantity, reference_type, reference_id,
	status, expires_at, created_at, updated_at`

// ReservationRepo reservas y asignaciones sobre PostgreSQL. Las escrituras van en una
// transacción para que la cabecera y sus asignaciones cambien juntas.
type ReservationRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewReservationRepository construye el adaptador de reservas.
func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepo {
	return &ReservationRepo{pool: pool, tx: NewTxRunner(pool)}
}

// Create inserta la reserva con sus asignaciones. Un id repetido devuelve ErrDuplicateOperation.
func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations (tenant_id, id, product_id, requested_quantity, reference_type, reference_id,
				status, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			res.TenantID, res.ID, res.ProductID, res.RequestedQuantity, res.Reference.Type, res.Reference.ID,
			string(res.Status), res.ExpiresAt, res.CreatedAt, res.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("reserva %s ya existe: %w", res.ID, domain.ErrDuplicateOperation)
			}
			return fmt.Errorf("insert reservation: %w", err)
		}
		for i, a := range res.Allocations {
			k := a.Key
			if _, err := tx.Exec(ctx, `
				INSERT INTO reservation_allocations (tenant_id, reservation_id, position, key_id, product_id,
					location_id, batch_number, expiry_date, quantity, consumed, released)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
				res.TenantID, res.ID, i, k.String(), k.ProductID, k.LocationID, k.BatchNumber, k.ExpiryDate,
				a.Quantity, a.Consumed, a.Released,
			); err != nil {
				return fmt.Errorf("insert allocation %d: %w", i, err)
			}
		}
		return nil
	})
}

// Update persiste estado y cantidades consumidas/liberadas. Las asignaciones no cambian de clave.
func (r *ReservationRepo) Update(ctx context.Context, res *entity.Reservation) error {
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE reservations SET status = $3, expires_at = $4, updated_at = $5
			WHERE tenant_id = $1 AND id = $2`,
			res.TenantID, res.ID, string(res.Status), res.ExpiresAt, res.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("reserva %s: %w", res.ID, domain.ErrNotFound)
		}
		for i, a := range res.Allocations {
			if _, err := tx.Exec(ctx, `
				UPDATE reservation_allocations SET consumed = $4, released = $5
				WHERE tenant_id = $1 AND reservation_id = $2 AND position = $3`,
				res.TenantID, res.ID, i, a.Consumed, a.Released,
			); err != nil {
				return fmt.Errorf("update allocation %d: %w", i, err)
			}
		}
		return nil
	})
}

// GetByID devuelve nil si la reserva no existe para el tenant.
func (r *ReservationRepo) GetByID(ctx context.Context, tenantID, id string) (*entity.Reservation, error) {
	list, err := r.query(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListByReference reservas del documento en orden de creación.
func (r *ReservationRepo) ListByReference(ctx context.Context, tenantID string, ref entity.Reference) ([]*entity.Reservation, error) {
	return r.query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE tenant_id = $1 AND reference_type = $2 AND reference_id = $3
		ORDER BY created_at, id`, tenantID, ref.Type, ref.ID)
}

// ListActiveByKey reservas no terminales con pendiente en la clave.
func (r *ReservationRepo) ListActiveByKey(ctx context.Context, key entity.StockKey) ([]*entity.Reservation, error) {
	return r.query(ctx, `
		SELECT `+reservationColumns+` FROM reservations res
		WHERE res.tenant_id = $1 AND res.status IN ('ACTIVE', 'PARTIALLY_CONSUMED')
		  AND EXISTS (
			SELECT 1 FROM reservation_allocations a
			WHERE a.tenant_id = res.tenant_id AND a.reservation_id = res.id
			  AND a.key_id = $2 AND a.quantity - a.consumed - a.released > 0)
		ORDER BY res.created_at, res.id`, key.TenantID, key.String())
}

// ListExpired reservas no terminales vencidas en now, las más antiguas primero.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	if limit <= 0 {
		limit = 500
	}
	return r.query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status IN ('ACTIVE', 'PARTIALLY_CONSUMED') AND expires_at IS NOT NULL AND expires_at <= $1
		ORDER BY expires_at LIMIT $2`, now, limit)
}

func (r *ReservationRepo) query(ctx context.Context, sql string, args ...any) ([]*entity.Reservation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	list := make([]*entity.Reservation, 0)
	for rows.Next() {
		var res entity.Reservation
		var status string
		if err := rows.Scan(&res.TenantID, &res.ID, &res.ProductID, &res.RequestedQuantity,
			&res.Reference.Type, &res.Reference.ID, &status, &res.ExpiresAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		res.Status = entity.ReservationStatus(status)
		list = append(list, &res)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	for _, res := range list {
		if err := r.loadAllocations(ctx, res); err != nil {
			return nil, err
		}
	}
	return list, nil
}

func (r *ReservationRepo) loadAllocations(ctx context.Context, res *entity.Reservation) error {
	rows, err := r.pool.Query(ctx, `
		SELECT product_id, location_id, batch_number, expiry_date, quantity, consumed, released
		FROM reservation_allocations WHERE tenant_id = $1 AND reservation_id = $2 ORDER BY position`,
		res.TenantID, res.ID)
	if err != nil {
		return fmt.Errorf("list allocations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var a entity.Allocation
		var product, location, batch string
		var expiry *time.Time
		if err := rows.Scan(&product, &location, &batch, &expiry, &a.Quantity, &a.Consumed, &a.Released); err != nil {
			return fmt.Errorf("scan allocation: %w", err)
		}
		a.Key = scanKey(res.TenantID, product, location, batch, expiry)
		res.Allocations = append(res.Allocations, a)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("list allocations: %w", err)
	}
	return nil
}
