package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.StockRepository = (*StockStore)(nil)

// StockStore proyección de niveles en memoria con control de versión.
type StockStore struct {
	mu     sync.RWMutex
	levels map[string]entity.StockLevel
}

// NewStockStore construye la proyección vacía.
func NewStockStore() *StockStore {
	return &StockStore{levels: make(map[string]entity.StockLevel)}
}

// Get devuelve nil si la clave nunca se guardó.
func (s *StockStore) Get(_ context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.levels[key.String()]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

// Save escribe si la versión almacenada es expectedVersion (0 = no existía).
func (s *StockStore) Save(_ context.Context, level entity.StockLevel, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	name := level.Key.String()
	current, ok := s.levels[name]
	switch {
	case !ok && expectedVersion != 0:
		return domain.ErrVersionConflict
	case ok && current.Version != expectedVersion:
		return domain.ErrVersionConflict
	}
	s.levels[name] = level
	return nil
}

// ListByProduct niveles del producto ordenados por clave.
func (s *StockStore) ListByProduct(_ context.Context, tenantID, productID string) ([]entity.StockLevel, error) {
	return s.list(tenantID, productID), nil
}

// ListByTenant niveles del tenant; productID vacío = todos.
func (s *StockStore) ListByTenant(_ context.Context, tenantID, productID string) ([]entity.StockLevel, error) {
	return s.list(tenantID, productID), nil
}

func (s *StockStore) list(tenantID, productID string) []entity.StockLevel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.StockLevel, 0)
	for _, l := range s.levels {
		if l.Key.TenantID != tenantID {
			continue
		}
		if productID != "" && l.Key.ProductID != productID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out
}

// Put escribe un nivel sin control de versión. Solo para sembrar pruebas de reconciliación.
func (s *StockStore) Put(level entity.StockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[level.Key.String()] = level
}
