package postgres

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"pg 23505", &pgconn.PgError{Code: "23505"}, true},
		{"pg envuelto", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"otro código", &pgconn.PgError{Code: "23503"}, false},
		{"texto", errors.New("ERROR: duplicate key (SQLSTATE 23505)"), true},
		{"genérico", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isUniqueViolation(tt.err))
		})
	}
}

func TestKeyColumns_RoundTripDeClave(t *testing.T) {
	exp := time.Date(2025, 3, 9, 17, 30, 0, 0, time.FixedZone("COT", -5*3600))
	key := entity.NewStockKey("t1", "p1", "l1", " B7 ", &exp)

	cols := keyColumns(key)
	assert.Equal(t, key.String(), cols[0])
	assert.Equal(t, "B7", cols[4])

	back := scanKey(cols[1].(string), cols[2].(string), cols[3].(string), cols[4].(string), cols[5].(*time.Time))
	assert.True(t, back.Equal(key))
	assert.Equal(t, "2025-03-09", back.ExpiryString())

	noExpiry := entity.NewStockKey("t1", "p1", "l1", "", nil)
	assert.Nil(t, keyColumns(noExpiry)[5].(*time.Time))
}
