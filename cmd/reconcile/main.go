// reconcile compara la proyección de niveles con el ledger de un tenant y, con -repair,
// reconstruye las claves con discrepancia.
//
// Uso: go run ./cmd/reconcile -tenant <id> [-repair]
// Usa el mismo almacenamiento que el servidor (STORAGE_DRIVER, DATABASE_URL, ...).
// Sale con código 2 si quedan discrepancias sin reparar.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/bootstrap"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	tenant := flag.String("tenant", "", "tenant a reconciliar (requerido)")
	repair := flag.Bool("repair", false, "reconstruir las claves con discrepancia")
	flag.Parse()

	if *tenant == "" {
		fmt.Fprintln(os.Stderr, "Uso: reconcile -tenant <id> [-repair]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cargar configuración: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})

	ctx := context.Background()
	res, err := bootstrap.Open(ctx, cfg, log.Component("bootstrap"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Abrir almacenamiento: %v\n", err)
		os.Exit(1)
	}
	defer res.Close()

	engine := inventory.NewEngine(res.Stores, inventory.EngineConfig{
		Coordinator: inventory.CoordinatorConfig{
			KeyTimeout:   cfg.Ledger.KeyTimeout,
			MaxRetries:   cfg.Ledger.MaxRetries,
			RetryBackoff: cfg.Ledger.RetryBackoff,
		},
	}, nil, log.Zerolog())

	var drifts []inventory.Drift
	if *repair {
		drifts, err = engine.Reconciler.RepairAll(ctx, *tenant)
	} else {
		drifts, err = engine.Reconciler.Verify(ctx, *tenant)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Reconciliar: %v\n", err)
		res.Close()
		os.Exit(1)
	}

	for _, d := range drifts {
		fmt.Printf("%s\ton_hand=%s ledger=%s reserved=%s activas=%s\n",
			d.Key, d.LevelOnHand, d.LedgerOnHand, d.LevelReserved, d.ActiveReserved)
	}
	switch {
	case len(drifts) == 0:
		fmt.Println("Sin discrepancias.")
	case *repair:
		fmt.Printf("%d claves reparadas.\n", len(drifts))
	default:
		fmt.Printf("%d claves con discrepancia (use -repair para reconstruirlas).\n", len(drifts))
		res.Close()
		os.Exit(2)
	}
}
