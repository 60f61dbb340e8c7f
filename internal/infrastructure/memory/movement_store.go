// Package memory implementa los puertos de persistencia en memoria (un solo proceso).
// Se usa con STORAGE_DRIVER=memory y en las pruebas.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.InventoryMovementRepository = (*MovementStore)(nil)

// MovementStore ledger solo-agregar en memoria.
type MovementStore struct {
	mu      sync.RWMutex
	entries []entity.MovementEntry
	byID    map[string]int
	seq     int64
}

// NewMovementStore construye el ledger vacío.
func NewMovementStore() *MovementStore {
	return &MovementStore{byID: make(map[string]int)}
}

// Append agrega el asiento; un ID repetido devuelve el original con created=false.
func (s *MovementStore) Append(_ context.Context, entry entity.MovementEntry) (entity.MovementEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := movementKey(entry.Key.TenantID, entry.ID)
	if i, ok := s.byID[id]; ok {
		return s.entries[i], false, nil
	}
	s.seq++
	entry.Sequence = s.seq
	s.byID[id] = len(s.entries)
	s.entries = append(s.entries, entry)
	return entry, true, nil
}

// GetByID devuelve nil si el asiento no existe.
func (s *MovementStore) GetByID(_ context.Context, tenantID, id string) (*entity.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[movementKey(tenantID, id)]
	if !ok {
		return nil, nil
	}
	e := s.entries[i]
	return &e, nil
}

func movementKey(tenantID, id string) string { return tenantID + "\x00" + id }

// ListByKey asientos de la clave en orden de inserción.
func (s *MovementStore) ListByKey(_ context.Context, key entity.StockKey) ([]entity.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name := key.String()
	out := make([]entity.MovementEntry, 0)
	for _, e := range s.entries {
		if e.Key.String() == name {
			out = append(out, e)
		}
	}
	return out, nil
}

// List historial filtrado y paginado, en orden de inserción.
func (s *MovementStore) List(_ context.Context, f repository.MovementFilter) ([]entity.MovementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.MovementEntry, 0)
	skipped := 0
	for _, e := range s.entries {
		if e.Key.TenantID != f.TenantID {
			continue
		}
		if f.ProductID != "" && e.Key.ProductID != f.ProductID {
			continue
		}
		if f.LocationID != "" && e.Key.LocationID != f.LocationID {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}

// Keys claves distintas con historial para el tenant, en orden de primera aparición.
func (s *MovementStore) Keys(_ context.Context, tenantID string) ([]entity.StockKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	out := make([]entity.StockKey, 0)
	for _, e := range s.entries {
		if e.Key.TenantID != tenantID {
			continue
		}
		name := e.Key.String()
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, e.Key)
	}
	return out, nil
}
