package entity

// Location ubicación física (bin, estantería) dentro de una bodega.
// La jerarquía de bodegas es un colaborador externo; aquí solo se usa para validar y filtrar.
type Location struct {
	ID          string
	TenantID    string
	WarehouseID string
	Code        string
}
