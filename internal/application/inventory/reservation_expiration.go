package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// expirationBatch máximo de reservas vencidas procesadas por barrido.
const expirationBatch = 500

// ExpirationStats resultado de un barrido de reservas vencidas.
type ExpirationStats struct {
	TotalExpired int       `json:"total_expired"`
	Released     int       `json:"released"`
	Failed       int       `json:"failed"`
	Skipped      int       `json:"skipped"` // ya terminales al momento de liberar
	ProcessedAt  time.Time `json:"processed_at"`
}

// ReservationExpirationService libera periódicamente las reservas activas cuyo ExpiresAt pasó.
type ReservationExpirationService struct {
	repo     repository.ReservationRepository
	manager  *ReservationManager
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

// NewReservationExpirationService construye el servicio de vencimientos.
func NewReservationExpirationService(
	repo repository.ReservationRepository,
	manager *ReservationManager,
	interval time.Duration,
	log zerolog.Logger,
) *ReservationExpirationService {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReservationExpirationService{
		repo:     repo,
		manager:  manager,
		interval: interval,
		log:      log.With().Str("component", "reservation_expiration").Logger(),
		now:      time.Now,
	}
}

// ReleaseExpired libera las reservas vencidas a la fecha now. Las reservas que se volvieron
// terminales entre la lectura y la liberación se ignoran.
func (s *ReservationExpirationService) ReleaseExpired(ctx context.Context, now time.Time) (*ExpirationStats, error) {
	stats := &ExpirationStats{ProcessedAt: now}
	expired, err := s.repo.ListExpired(ctx, now, expirationBatch)
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudieron listar las reservas vencidas")
		return nil, fmt.Errorf("listar reservas vencidas: %w", err)
	}
	stats.TotalExpired = len(expired)
	if stats.TotalExpired == 0 {
		return stats, nil
	}
	for _, r := range expired {
		_, err := s.manager.Release(ctx, ReleaseInput{TenantID: r.TenantID, ReservationID: r.ID})
		switch {
		case err == nil:
			stats.Released++
			s.log.Info().Str("reservation_id", r.ID).Str("tenant_id", r.TenantID).
				Str("reference_id", r.Reference.ID).Msg("reserva vencida liberada")
		case isTerminalErr(err):
			stats.Skipped++
		default:
			stats.Failed++
			s.log.Error().Err(err).Str("reservation_id", r.ID).Msg("no se pudo liberar la reserva vencida")
		}
	}
	s.log.Info().Int("total", stats.TotalExpired).Int("released", stats.Released).Int("failed", stats.Failed).
		Msg("barrido de reservas vencidas completado")
	return stats, nil
}

// Run ejecuta ReleaseExpired cada intervalo hasta que ctx se cancele.
func (s *ReservationExpirationService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info().Dur("interval", s.interval).Msg("barrido de reservas vencidas iniciado")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.ReleaseExpired(ctx, s.now()); err != nil && ctx.Err() == nil {
				s.log.Warn().Err(err).Msg("barrido fallido, se reintenta en el próximo ciclo")
			}
		}
	}
}
