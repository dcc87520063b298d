package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medledger/medledger/internal/catalog"
	"github.com/medledger/medledger/internal/ledger"
	"github.com/medledger/medledger/internal/observability"
	"github.com/medledger/medledger/internal/platform/db"
	"github.com/medledger/medledger/internal/procurement"
	"github.com/medledger/medledger/internal/shared"
	"github.com/medledger/medledger/internal/stats"
	"github.com/medledger/medledger/internal/stockaudit"
	"github.com/medledger/medledger/internal/transfer"
)

// App is the composition root. The hosting process (API layer, CLI) builds one
// App and calls into the services; the core itself exposes no transport.
type App struct {
	Config  *Config
	Logger  *slog.Logger
	Pool    *pgxpool.Pool
	Metrics *observability.Metrics

	Catalog     *catalog.Service
	Ledger      *ledger.Service
	Transfers   *transfer.Service
	Procurement *procurement.Service
	Audits      *stockaudit.Service
	Stats       *stats.Service
}

// New loads configuration, connects to PostgreSQL and wires all services.
func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("app: load config: %w", err)
	}
	logger := NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	auditLog := shared.NewAuditLogger(pool)

	ledgerSvc := ledger.NewService(ledger.NewRepository(pool), auditLog, metrics)
	catalogSvc := catalog.NewService(catalog.NewRepository(pool), ledgerSvc)
	transferSvc := transfer.NewService(transfer.NewRepository(pool), ledgerSvc, catalogSvc, auditLog, metrics)
	procurementSvc := procurement.NewService(procurement.NewRepository(pool), ledgerSvc, auditLog)
	auditSvc := stockaudit.NewService(stockaudit.NewRepository(pool), stockReader{catalog: catalogSvc})
	statsSvc := stats.NewService(stats.NewRepository(pool), cfg.ExpirySoonDays)

	logger.Info("application wired", "env", cfg.AppEnv)
	return &App{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		Metrics:     metrics,
		Catalog:     catalogSvc,
		Ledger:      ledgerSvc,
		Transfers:   transferSvc,
		Procurement: procurementSvc,
		Audits:      auditSvc,
		Stats:       statsSvc,
	}, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a != nil && a.Pool != nil {
		a.Pool.Close()
	}
}

// stockReader adapts the catalog to the audit reconciler's balance port.
type stockReader struct {
	catalog *catalog.Service
}

func (r stockReader) ItemQuantity(ctx context.Context, itemID int64) (int64, error) {
	item, err := r.catalog.Get(ctx, itemID)
	if err != nil {
		return 0, err
	}
	return item.QuantityOnHand, nil
}
