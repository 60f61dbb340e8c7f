package entity

import "github.com/shopspring/decimal"

// ProductInfo vista del catálogo que el motor necesita para validar y alertar.
// El catálogo (CRUD de productos) es un colaborador externo.
type ProductInfo struct {
	ID           string
	TenantID     string
	SKU          string          // código único por empresa
	UnitMeasure  string
	ReorderPoint decimal.Decimal // umbral de stock bajo (0 = sin alerta)
}
