package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	dominv "github.com/jhoicas/stock-ledger/internal/domain/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Criterios de orden para GetLevels.
const (
	SortByProduct   = "product" // producto, ubicación, lote, vencimiento (por defecto)
	SortByLocation  = "location"
	SortByExpiry    = "expiry"
	SortByAvailable = "available"
	SortByOnHand    = "on_hand"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// LevelFilter filtros explícitos de la consulta de niveles.
type LevelFilter struct {
	ProductID     string
	LocationID    string
	WarehouseID   string
	BatchNumber   string
	ExpiresFrom   *time.Time // vencimiento >= (inclusive)
	ExpiresTo     *time.Time // vencimiento <= (inclusive)
	OnlyAvailable bool       // solo claves con disponible > 0
	SortBy        string
	Desc          bool
}

// LevelPage página de niveles.
type LevelPage struct {
	Items    []entity.StockLevel
	Total    int
	Page     int
	PageSize int
}

// LocationBreakdown totales de un producto en una ubicación.
type LocationBreakdown struct {
	LocationID string
	OnHand     decimal.Decimal
	Reserved   decimal.Decimal
	Available  decimal.Decimal
}

// StockSummary totales de un producto en todas sus claves.
type StockSummary struct {
	ProductID   string
	UnitMeasure string
	OnHand      decimal.Decimal
	Reserved    decimal.Decimal
	Available   decimal.Decimal
	Locations   []LocationBreakdown // ordenado por ubicación
}

// QueryService proyecciones de solo lectura. Nunca muta estado.
type QueryService struct {
	levels    repository.StockRepository
	ledger    *Ledger
	catalog   repository.ProductCatalog
	locations repository.LocationDirectory
}

// NewQueryService construye el servicio de consultas.
func NewQueryService(c *Components) *QueryService {
	return &QueryService{levels: c.Levels, ledger: c.Ledger, catalog: c.Catalog, locations: c.Locations}
}

// GetLevels lista paginada de niveles del tenant. El orden por defecto es estable
// (producto y luego ubicación) para que la paginación sea determinista.
func (q *QueryService) GetLevels(ctx context.Context, tenantID string, f LevelFilter, page, pageSize int) (LevelPage, error) {
	if strings.TrimSpace(tenantID) == "" {
		return LevelPage{}, fmt.Errorf("%w: tenant requerido", domain.ErrInvalidInput)
	}
	if f.ExpiresFrom != nil && f.ExpiresTo != nil && f.ExpiresTo.Before(*f.ExpiresFrom) {
		return LevelPage{}, fmt.Errorf("%w: rango de vencimiento invertido", domain.ErrInvalidInput)
	}
	if !validSort(f.SortBy) {
		return LevelPage{}, fmt.Errorf("%w: criterio de orden desconocido %q", domain.ErrInvalidInput, f.SortBy)
	}
	page, pageSize = normalizePage(page, pageSize)

	all, err := q.levels.ListByTenant(ctx, tenantID, f.ProductID)
	if err != nil {
		return LevelPage{}, fmt.Errorf("listar niveles: %w", err)
	}
	matched, err := q.filter(ctx, tenantID, all, f)
	if err != nil {
		return LevelPage{}, err
	}
	codes, err := locationCodes(ctx, q.locations, tenantID, matched)
	if err != nil {
		return LevelPage{}, err
	}
	less, err := levelOrder(f.SortBy, codes)
	if err != nil {
		return LevelPage{}, err
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if f.Desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	out := LevelPage{Items: []entity.StockLevel{}, Total: len(matched), Page: page, PageSize: pageSize}
	start := (page - 1) * pageSize
	if start < len(matched) {
		end := start + pageSize
		if end > len(matched) {
			end = len(matched)
		}
		out.Items = matched[start:end]
	}
	return out, nil
}

func (q *QueryService) filter(ctx context.Context, tenantID string, all []entity.StockLevel, f LevelFilter) ([]entity.StockLevel, error) {
	from := entity.NormalizeDate(f.ExpiresFrom)
	to := entity.NormalizeDate(f.ExpiresTo)
	warehouses := make(map[string]string)
	out := make([]entity.StockLevel, 0, len(all))
	for _, l := range all {
		k := l.Key
		if f.ProductID != "" && k.ProductID != f.ProductID {
			continue
		}
		if f.LocationID != "" && k.LocationID != f.LocationID {
			continue
		}
		if f.BatchNumber != "" && k.BatchNumber != f.BatchNumber {
			continue
		}
		if from != nil || to != nil {
			if k.ExpiryDate == nil {
				continue
			}
			if from != nil && k.ExpiryDate.Before(*from) {
				continue
			}
			if to != nil && k.ExpiryDate.After(*to) {
				continue
			}
		}
		if f.OnlyAvailable && !l.QuantityAvailable().IsPositive() {
			continue
		}
		if f.WarehouseID != "" {
			wh, ok := warehouses[k.LocationID]
			if !ok {
				var err error
				wh, err = q.resolveWarehouse(ctx, tenantID, k.LocationID)
				if err != nil {
					return nil, err
				}
				warehouses[k.LocationID] = wh
			}
			if wh != f.WarehouseID {
				continue
			}
		}
		out = append(out, l)
	}
	return out, nil
}

func (q *QueryService) resolveWarehouse(ctx context.Context, tenantID, locationID string) (string, error) {
	if q.locations == nil {
		return "", nil
	}
	wh, err := q.locations.ResolveWarehouse(ctx, tenantID, locationID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolver bodega de %s: %w", locationID, err)
	}
	return wh, nil
}

// GetAvailableQuantity suma el disponible de las claves del producto que coinciden.
func (q *QueryService) GetAvailableQuantity(ctx context.Context, tenantID, productID, locationID, batch string) (decimal.Decimal, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(productID) == "" {
		return decimal.Zero, fmt.Errorf("%w: tenant y producto requeridos", domain.ErrInvalidInput)
	}
	levels, err := q.levels.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("listar niveles: %w", err)
	}
	total := decimal.Zero
	for _, l := range levels {
		if locationID != "" && l.Key.LocationID != locationID {
			continue
		}
		if batch != "" && l.Key.BatchNumber != batch {
			continue
		}
		total = total.Add(l.QuantityAvailable())
	}
	return total, nil
}

// GetSummary totales del producto con desglose por ubicación.
func (q *QueryService) GetSummary(ctx context.Context, tenantID, productID string) (StockSummary, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(productID) == "" {
		return StockSummary{}, fmt.Errorf("%w: tenant y producto requeridos", domain.ErrInvalidInput)
	}
	levels, err := q.levels.ListByProduct(ctx, tenantID, productID)
	if err != nil {
		return StockSummary{}, fmt.Errorf("listar niveles: %w", err)
	}
	sum := StockSummary{ProductID: productID, OnHand: decimal.Zero, Reserved: decimal.Zero, Available: decimal.Zero}
	if q.catalog != nil {
		if uom, err := q.catalog.GetUnitOfMeasure(ctx, tenantID, productID); err == nil {
			sum.UnitMeasure = uom
		}
	}
	byLoc := make(map[string]*LocationBreakdown)
	for _, l := range levels {
		b, ok := byLoc[l.Key.LocationID]
		if !ok {
			b = &LocationBreakdown{LocationID: l.Key.LocationID, OnHand: decimal.Zero, Reserved: decimal.Zero, Available: decimal.Zero}
			byLoc[l.Key.LocationID] = b
		}
		b.OnHand = b.OnHand.Add(l.QuantityOnHand)
		b.Reserved = b.Reserved.Add(l.QuantityReserved)
		b.Available = b.Available.Add(l.QuantityAvailable())
		sum.OnHand = sum.OnHand.Add(l.QuantityOnHand)
		sum.Reserved = sum.Reserved.Add(l.QuantityReserved)
		sum.Available = sum.Available.Add(l.QuantityAvailable())
	}
	sum.Locations = make([]LocationBreakdown, 0, len(byLoc))
	for _, b := range byLoc {
		sum.Locations = append(sum.Locations, *b)
	}
	sort.Slice(sum.Locations, func(i, j int) bool { return sum.Locations[i].LocationID < sum.Locations[j].LocationID })
	return sum, nil
}

// IsLowStock compara el OnHand total del producto con threshold. threshold nil usa el punto
// de reorden del catálogo.
func (q *QueryService) IsLowStock(ctx context.Context, tenantID, productID string, threshold *decimal.Decimal) (bool, error) {
	limit := decimal.Zero
	switch {
	case threshold != nil:
		limit = *threshold
	case q.catalog != nil:
		p, err := q.catalog.GetProduct(ctx, tenantID, productID)
		if err != nil {
			return false, fmt.Errorf("leer producto %s: %w", productID, err)
		}
		if p == nil {
			return false, fmt.Errorf("%w: producto %s", domain.ErrInvalidReference, productID)
		}
		limit = p.ReorderPoint
	}
	if limit.IsNegative() {
		return false, fmt.Errorf("%w: el umbral no puede ser negativo", domain.ErrInvalidInput)
	}
	sum, err := q.GetSummary(ctx, tenantID, productID)
	if err != nil {
		return false, err
	}
	return sum.OnHand.LessThan(limit), nil
}

// ListMovements historial del ledger del producto (opcionalmente de una ubicación) en orden de inserción.
func (q *QueryService) ListMovements(ctx context.Context, tenantID, productID, locationID string, page, pageSize int) ([]entity.MovementEntry, error) {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(productID) == "" {
		return nil, fmt.Errorf("%w: tenant y producto requeridos", domain.ErrInvalidInput)
	}
	page, pageSize = normalizePage(page, pageSize)
	return q.ledger.List(ctx, repository.MovementFilter{
		TenantID:   tenantID,
		ProductID:  productID,
		LocationID: locationID,
		Limit:      pageSize,
		Offset:     (page - 1) * pageSize,
	})
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

// locationCodes resuelve el código de cada ubicación presente en levels. Una ubicación que
// ya no está en el directorio se ordena por su ID.
func locationCodes(ctx context.Context, dir repository.LocationDirectory, tenantID string, levels []entity.StockLevel) (dominv.LocationCodes, error) {
	codes := make(dominv.LocationCodes)
	if dir == nil {
		return codes, nil
	}
	for _, l := range levels {
		id := l.Key.LocationID
		if _, ok := codes[id]; ok {
			continue
		}
		code, err := dir.LocationCode(ctx, tenantID, id)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("código de ubicación %s: %w", id, err)
		}
		codes[id] = code
	}
	return codes, nil
}

func validSort(sortBy string) bool {
	switch sortBy {
	case "", SortByProduct, SortByLocation, SortByExpiry, SortByAvailable, SortByOnHand:
		return true
	}
	return false
}

// levelOrder comparador del criterio; la clave textual desempata para un orden total.
func levelOrder(sortBy string, codes dominv.LocationCodes) (func(a, b entity.StockLevel) bool, error) {
	byKey := func(a, b entity.StockLevel) bool { return a.Key.String() < b.Key.String() }
	byLocation := func(a, b entity.StockLevel) (bool, bool) {
		ca, cb := codes.Of(a.Key.LocationID), codes.Of(b.Key.LocationID)
		if ca != cb {
			return ca < cb, true
		}
		return false, false
	}
	byProduct := func(a, b entity.StockLevel) bool {
		if a.Key.ProductID != b.Key.ProductID {
			return a.Key.ProductID < b.Key.ProductID
		}
		if less, ok := byLocation(a, b); ok {
			return less
		}
		return byKey(a, b)
	}
	switch sortBy {
	case "", SortByProduct:
		return byProduct, nil
	case SortByLocation:
		return func(a, b entity.StockLevel) bool {
			if less, ok := byLocation(a, b); ok {
				return less
			}
			return byProduct(a, b)
		}, nil
	case SortByExpiry:
		return func(a, b entity.StockLevel) bool {
			ea, eb := a.Key.ExpiryDate, b.Key.ExpiryDate
			switch {
			case ea != nil && eb != nil && !ea.Equal(*eb):
				return ea.Before(*eb)
			case ea != nil && eb == nil:
				return true
			case ea == nil && eb != nil:
				return false
			}
			return byProduct(a, b)
		}, nil
	case SortByAvailable:
		return func(a, b entity.StockLevel) bool {
			if c := a.QuantityAvailable().Cmp(b.QuantityAvailable()); c != 0 {
				return c < 0
			}
			return byProduct(a, b)
		}, nil
	case SortByOnHand:
		return func(a, b entity.StockLevel) bool {
			if c := a.QuantityOnHand.Cmp(b.QuantityOnHand); c != 0 {
				return c < 0
			}
			return byProduct(a, b)
		}, nil
	}
	return nil, fmt.Errorf("%w: orden desconocido %q", domain.ErrInvalidInput, sortBy)
}
