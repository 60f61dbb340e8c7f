package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationStore)(nil)

// ReservationStore reservas en memoria. Guarda y devuelve copias profundas.
type ReservationStore struct {
	mu    sync.RWMutex
	items map[string]*entity.Reservation // tenant|id
	order []string
}

// NewReservationStore construye el store vacío.
func NewReservationStore() *ReservationStore {
	return &ReservationStore{items: make(map[string]*entity.Reservation)}
}

func reservationKey(tenantID, id string) string { return tenantID + "|" + id }

// Create falla si el id ya existe para el tenant.
func (s *ReservationStore) Create(_ context.Context, r *entity.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reservationKey(r.TenantID, r.ID)
	if _, ok := s.items[k]; ok {
		return fmt.Errorf("reserva %s ya existe: %w", r.ID, domain.ErrDuplicateOperation)
	}
	s.items[k] = cloneReservation(r)
	s.order = append(s.order, k)
	return nil
}

// Update reemplaza la reserva existente.
func (s *ReservationStore) Update(_ context.Context, r *entity.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := reservationKey(r.TenantID, r.ID)
	if _, ok := s.items[k]; !ok {
		return fmt.Errorf("reserva %s: %w", r.ID, domain.ErrNotFound)
	}
	s.items[k] = cloneReservation(r)
	return nil
}

// GetByID devuelve nil si no existe.
func (s *ReservationStore) GetByID(_ context.Context, tenantID, id string) (*entity.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.items[reservationKey(tenantID, id)]
	if !ok {
		return nil, nil
	}
	return cloneReservation(r), nil
}

// ListByReference reservas del documento en orden de creación.
func (s *ReservationStore) ListByReference(_ context.Context, tenantID string, ref entity.Reference) ([]*entity.Reservation, error) {
	return s.filter(func(r *entity.Reservation) bool {
		return r.TenantID == tenantID && r.Reference == ref
	}), nil
}

// ListActiveByKey reservas no terminales con pendiente en la clave.
func (s *ReservationStore) ListActiveByKey(_ context.Context, key entity.StockKey) ([]*entity.Reservation, error) {
	return s.filter(func(r *entity.Reservation) bool {
		if r.TenantID != key.TenantID || r.Status.IsTerminal() {
			return false
		}
		for _, a := range r.Allocations {
			if a.Key.Equal(key) && a.Outstanding().IsPositive() {
				return true
			}
		}
		return false
	}), nil
}

// ListExpired reservas no terminales vencidas en now, las más antiguas primero.
func (s *ReservationStore) ListExpired(_ context.Context, now time.Time, limit int) ([]*entity.Reservation, error) {
	out := s.filter(func(r *entity.Reservation) bool { return r.IsExpiredAt(now) })
	sort.SliceStable(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ReservationStore) filter(match func(*entity.Reservation) bool) []*entity.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.Reservation, 0)
	for _, k := range s.order {
		if r := s.items[k]; match(r) {
			out = append(out, cloneReservation(r))
		}
	}
	return out
}

func cloneReservation(r *entity.Reservation) *entity.Reservation {
	c := *r
	c.Allocations = append([]entity.Allocation(nil), r.Allocations...)
	if r.ExpiresAt != nil {
		t := *r.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}
