package postgres

import (
	"context"
	"fmt"
)

// schema tablas del motor. key_id es la forma textual de la StockKey (lote vacío y
// vencimiento nulo incluidos), lo que evita índices únicos sobre columnas NULL.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	tenant_id     TEXT NOT NULL,
	id            TEXT NOT NULL,
	sku           TEXT NOT NULL,
	unit_measure  TEXT NOT NULL DEFAULT 'UND',
	reorder_point NUMERIC(20,4) NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS locations (
	tenant_id    TEXT NOT NULL,
	id           TEXT NOT NULL,
	warehouse_id TEXT NOT NULL,
	code         TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (tenant_id, id)
);

CREATE TABLE IF NOT EXISTS inventory_movements (
	seq              BIGSERIAL UNIQUE,
	id               TEXT NOT NULL,
	key_id           TEXT NOT NULL,
	tenant_id        TEXT NOT NULL,
	product_id       TEXT NOT NULL,
	location_id      TEXT NOT NULL,
	batch_number     TEXT NOT NULL DEFAULT '',
	expiry_date      DATE,
	type             TEXT NOT NULL,
	quantity         NUMERIC(20,4) NOT NULL,
	from_location_id TEXT NOT NULL DEFAULT '',
	to_location_id   TEXT NOT NULL DEFAULT '',
	reservation_id   TEXT NOT NULL DEFAULT '',
	reason_code      TEXT NOT NULL DEFAULT '',
	reference_type   TEXT NOT NULL DEFAULT '',
	reference_id     TEXT NOT NULL DEFAULT '',
	occurred_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_movements_key ON inventory_movements (key_id, seq);
CREATE INDEX IF NOT EXISTS idx_movements_product ON inventory_movements (tenant_id, product_id, seq);

CREATE TABLE IF NOT EXISTS stock_levels (
	key_id            TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	product_id        TEXT NOT NULL,
	location_id       TEXT NOT NULL,
	batch_number      TEXT NOT NULL DEFAULT '',
	expiry_date       DATE,
	quantity_on_hand  NUMERIC(20,4) NOT NULL CHECK (quantity_on_hand >= 0),
	quantity_reserved NUMERIC(20,4) NOT NULL CHECK (quantity_reserved >= 0),
	version           BIGINT NOT NULL,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (quantity_reserved <= quantity_on_hand)
);
CREATE INDEX IF NOT EXISTS idx_levels_product ON stock_levels (tenant_id, product_id);

CREATE TABLE IF NOT EXISTS reservations (
	tenant_id          TEXT NOT NULL,
	id                 TEXT NOT NULL,
	product_id         TEXT NOT NULL,
	requested_quantity NUMERIC(20,4) NOT NULL,
	reference_type     TEXT NOT NULL DEFAULT '',
	reference_id       TEXT NOT NULL DEFAULT '',
	status             TEXT NOT NULL,
	expires_at         TIMESTAMPTZ,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_reservations_reference ON reservations (tenant_id, reference_type, reference_id);
CREATE INDEX IF NOT EXISTS idx_reservations_expiry ON reservations (expires_at) WHERE status IN ('ACTIVE', 'PARTIALLY_CONSUMED');

CREATE TABLE IF NOT EXISTS reservation_allocations (
	tenant_id      TEXT NOT NULL,
	reservation_id TEXT NOT NULL,
	position       INT NOT NULL,
	key_id         TEXT NOT NULL,
	product_id     TEXT NOT NULL,
	location_id    TEXT NOT NULL,
	batch_number   TEXT NOT NULL DEFAULT '',
	expiry_date    DATE,
	quantity       NUMERIC(20,4) NOT NULL,
	consumed       NUMERIC(20,4) NOT NULL DEFAULT 0,
	released       NUMERIC(20,4) NOT NULL DEFAULT 0,
	PRIMARY KEY (tenant_id, reservation_id, position),
	FOREIGN KEY (tenant_id, reservation_id) REFERENCES reservations (tenant_id, id)
);
CREATE INDEX IF NOT EXISTS idx_allocations_key ON reservation_allocations (key_id);
`

// EnsureSchema crea las tablas si no existen. Es idempotente.
func EnsureSchema(ctx context.Context, q Querier) error {
	if _, err := q.Exec(ctx, schema); err != nil {
		return fmt.Errorf("crear esquema: %w", err)
	}
	return nil
}
