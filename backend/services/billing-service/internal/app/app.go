package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"meterpay/backend/libs/billing"
	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/metrics"
	"meterpay/backend/libs/middleware"
	"meterpay/backend/libs/mq"
	"meterpay/backend/libs/plan"
	"meterpay/backend/services/billing-service/internal/config"
	"meterpay/backend/services/billing-service/internal/db"
	httpserver "meterpay/backend/services/billing-service/internal/http"
	"meterpay/backend/services/billing-service/internal/http/handlers"
	"meterpay/backend/services/billing-service/internal/repository"
	"meterpay/backend/services/billing-service/internal/service"
)

const schemaTimeout = 10 * time.Second

// App wires billing service dependencies.
type App struct {
	server    *httpx.Server
	db        *sql.DB
	publisher mq.Publisher
	logger    *zap.Logger
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	catalog, err := plan.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	logger.Info("plan catalog loaded", zap.String("path", cfg.Catalog.Path), zap.Int("plans", len(catalog.Plans())))

	a := &App{logger: logger}

	store, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}

	a.publisher = newPublisher(cfg, logger)

	reg := metrics.NewRegistry()
	ledger := service.NewLedgerService(
		billing.NewEngine(catalog),
		store,
		a.publisher,
		service.NewMetrics(reg),
		logger,
		cfg.Storage.WriteTimeout,
	)

	routes := httpserver.Routes{
		PayBill: handlers.NewPayBillHandler(ledger, catalog, logger),
		Plans:   handlers.NewPlansHandler(catalog),
		Health:  httpx.HealthHandler(),
		Metrics: metrics.Handler(reg),
	}

	a.server = httpx.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger,
		middleware.RecoveryMiddleware(logger),
		metrics.NewHTTPMetrics(reg, "billing").Middleware,
		middleware.LoggingMiddleware(logger),
	)
	return a, nil
}

func (a *App) openStore(cfg *config.Config) (service.BillStore, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		a.logger.Warn("using in-memory ledger, bills are lost on restart")
		return repository.NewMemoryBillRepository(), nil
	}

	sqlDB, err := db.NewPostgres(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect ledger db: %w", err)
	}
	a.db = sqlDB

	repo := repository.NewBillRepository(sqlDB)
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()
	if err := repo.EnsureSchema(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return repo, nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) mq.Publisher {
	if strings.TrimSpace(cfg.Events.AMQPURL) == "" {
		return mq.NewNoopPublisher(logger)
	}
	producer, err := mq.NewEventProducer(cfg.Events.AMQPURL, cfg.Events.Exchange)
	if err != nil {
		logger.Warn("event broker unavailable, settlement events disabled", zap.Error(err))
		return mq.NewNoopPublisher(logger)
	}
	return producer
}

// Handler exposes the routed handler for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run starts HTTP server.
func (a *App) Run(ctx context.Context) error {
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
