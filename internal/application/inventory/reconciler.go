package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Drift discrepancia entre la proyección y su fuente (ledger para OnHand, reservas activas para Reserved).
type Drift struct {
	Key            entity.StockKey
	LevelOnHand    decimal.Decimal
	LedgerOnHand   decimal.Decimal
	LevelReserved  decimal.Decimal
	ActiveReserved decimal.Decimal
}

// OnHandDrift indica si el OnHand proyectado difiere del ledger.
func (d Drift) OnHandDrift() bool { return !d.LevelOnHand.Equal(d.LedgerOnHand) }

// Reconciler audita y repara la proyección repitiendo el ledger.
type Reconciler struct {
	ledger *Ledger
	agg    *Aggregator
	coord  *KeyCoordinator
	levels repository.StockRepository
	log    zerolog.Logger
}

// NewReconciler construye el reconciliador.
func NewReconciler(c *Components) *Reconciler {
	return &Reconciler{
		ledger: c.Ledger,
		agg:    c.Aggregator,
		coord:  c.Coordinator,
		levels: c.Levels,
		log:    c.Log.With().Str("component", "reconciler").Logger(),
	}
}

// Verify recorre todas las claves del tenant (con historial o con nivel) y devuelve las que
// discrepan, ordenadas por clave. Solo lee.
func (r *Reconciler) Verify(ctx context.Context, tenantID string) ([]Drift, error) {
	keys, err := r.tenantKeys(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	drifts := make([]Drift, 0)
	for _, k := range keys {
		d, ok, err := r.check(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			drifts = append(drifts, d)
		}
	}
	return drifts, nil
}

func (r *Reconciler) check(ctx context.Context, key entity.StockKey) (Drift, bool, error) {
	level, err := r.agg.CurrentLevel(ctx, key)
	if err != nil {
		return Drift{}, false, err
	}
	onHand, err := r.ledger.OnHand(ctx, key)
	if err != nil {
		return Drift{}, false, fmt.Errorf("replay ledger %s: %w", key, err)
	}
	reserved, err := r.agg.activeReserved(ctx, key)
	if err != nil {
		return Drift{}, false, err
	}
	d := Drift{
		Key:            key,
		LevelOnHand:    level.QuantityOnHand,
		LedgerOnHand:   onHand,
		LevelReserved:  level.QuantityReserved,
		ActiveReserved: reserved,
	}
	return d, d.OnHandDrift() || !d.LevelReserved.Equal(d.ActiveReserved), nil
}

// Repair reconstruye la clave desde el ledger bajo su bloqueo.
func (r *Reconciler) Repair(ctx context.Context, key entity.StockKey) (entity.StockLevel, error) {
	var level entity.StockLevel
	err := r.coord.WithKeys(ctx, []string{key.String()}, func() error {
		var err error
		level, err = r.agg.Rebuild(ctx, key)
		return err
	})
	return level, err
}

// RepairAll verifica el tenant y repara cada clave con discrepancia. Devuelve las reparadas.
func (r *Reconciler) RepairAll(ctx context.Context, tenantID string) ([]Drift, error) {
	drifts, err := r.Verify(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		if _, err := r.Repair(ctx, d.Key); err != nil {
			return nil, fmt.Errorf("reparar %s: %w", d.Key, err)
		}
		r.log.Warn().Str("key", d.Key.String()).Str("level_on_hand", d.LevelOnHand.String()).
			Str("ledger_on_hand", d.LedgerOnHand.String()).Time("at", time.Now()).Msg("clave reparada")
	}
	return drifts, nil
}

func (r *Reconciler) tenantKeys(ctx context.Context, tenantID string) ([]entity.StockKey, error) {
	byName := make(map[string]entity.StockKey)
	ledgerKeys, err := r.ledger.Keys(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("claves del ledger: %w", err)
	}
	for _, k := range ledgerKeys {
		byName[k.String()] = k
	}
	levels, err := r.levels.ListByTenant(ctx, tenantID, "")
	if err != nil {
		return nil, fmt.Errorf("niveles del tenant: %w", err)
	}
	for _, l := range levels {
		byName[l.Key.String()] = l.Key
	}
	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	keys := make([]entity.StockKey, 0, len(names))
	for _, n := range names {
		keys = append(keys, byName[n])
	}
	return keys, nil
}
