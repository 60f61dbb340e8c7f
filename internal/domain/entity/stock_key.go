package entity

import (
	"fmt"
	"strings"
	"time"
)

// dateLayout formato canónico de las fechas de vencimiento (sin hora).
const dateLayout = "2006-01-02"

// StockKey identidad compuesta de una línea de stock: empresa (tenant), producto, ubicación,
// lote y vencimiento opcionales. Dos lotes del mismo producto en la misma ubicación son claves distintas.
type StockKey struct {
	TenantID    string
	ProductID   string
	LocationID  string
	BatchNumber string     // vacío = sin lote
	ExpiryDate  *time.Time // nil = sin vencimiento
}

// NewStockKey construye la clave normalizando la fecha de vencimiento a día UTC.
func NewStockKey(tenantID, productID, locationID, batch string, expiry *time.Time) StockKey {
	return StockKey{
		TenantID:    tenantID,
		ProductID:   productID,
		LocationID:  locationID,
		BatchNumber: strings.TrimSpace(batch),
		ExpiryDate:  NormalizeDate(expiry),
	}
}

// NormalizeDate trunca la fecha a medianoche UTC. Devuelve nil si t es nil.
func NormalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	d := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

// String forma textual estable de la clave; define el orden global de bloqueo.
func (k StockKey) String() string {
	exp := "-"
	if k.ExpiryDate != nil {
		exp = k.ExpiryDate.Format(dateLayout)
	}
	batch := k.BatchNumber
	if batch == "" {
		batch = "-"
	}
	return fmt.Sprintf("%s|%s|%s|%s|%s", k.TenantID, k.ProductID, k.LocationID, batch, exp)
}

// Equal compara dos claves, incluida la fecha de vencimiento.
func (k StockKey) Equal(o StockKey) bool {
	return k.String() == o.String()
}

// WithLocation devuelve la misma clave (producto, lote, vencimiento) en otra ubicación.
func (k StockKey) WithLocation(locationID string) StockKey {
	k.LocationID = locationID
	return k
}

// HasExpiry indica si la clave tiene fecha de vencimiento.
func (k StockKey) HasExpiry() bool { return k.ExpiryDate != nil }

// ExpiryString fecha de vencimiento en formato YYYY-MM-DD o vacío.
func (k StockKey) ExpiryString() string {
	if k.ExpiryDate == nil {
		return ""
	}
	return k.ExpiryDate.Format(dateLayout)
}

// IsComplete verifica que tenant, producto y ubicación estén presentes.
func (k StockKey) IsComplete() bool {
	return k.TenantID != "" && k.ProductID != "" && k.LocationID != ""
}

// KeyStrings convierte una lista de claves a su forma textual (para errores y logs).
func KeyStrings(keys ...StockKey) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k.String())
	}
	return out
}
