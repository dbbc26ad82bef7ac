package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"meterpay/backend/libs/httpx"
	"meterpay/backend/libs/metrics"
	libmiddleware "meterpay/backend/libs/middleware"
	"meterpay/backend/libs/plan"
	libredis "meterpay/backend/libs/redis"
	"meterpay/backend/services/checkout-service/internal/clients"
	"meterpay/backend/services/checkout-service/internal/config"
	"meterpay/backend/services/checkout-service/internal/feed"
	httpserver "meterpay/backend/services/checkout-service/internal/http"
	"meterpay/backend/services/checkout-service/internal/http/handlers"
	"meterpay/backend/services/checkout-service/internal/http/middleware"
	"meterpay/backend/services/checkout-service/internal/service"
	"meterpay/backend/services/checkout-service/internal/store"
	"meterpay/backend/services/checkout-service/internal/token"
)

// App wires checkout service dependencies.
type App struct {
	server *httpx.Server
	redis  *goredis.Client
	feed   *feed.Server
	logger *zap.Logger
}

// New constructs application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	catalog, err := plan.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}

	a := &App{logger: logger}

	sessions, err := a.openStore(cfg)
	if err != nil {
		return nil, err
	}

	reg := metrics.NewRegistry()
	ledger := clients.NewLedgerClient(cfg.Ledger.URL, clients.NewDefaultHTTPClient(cfg.Ledger.Timeout))

	opts := service.Options{
		Metrics:       service.NewMetrics(reg),
		SettleTimeout: cfg.Ledger.SettleTimeout,
	}
	if cfg.Feed.Enabled {
		gauge := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkout",
			Subsystem: "feed",
			Name:      "subscribers",
			Help:      "Open session feed connections",
		})
		reg.MustRegister(gauge)
		hub := feed.NewHub(gauge, logger)
		a.feed = feed.NewServer(hub, cfg.Feed.WriteTimeout, cfg.Feed.PingInterval, logger)
		opts.Notifier = hub
	}

	svc := service.NewCheckoutService(catalog, sessions, ledger, logger, opts)
	tokens := token.NewService(cfg.JWT.Secret, cfg.Sessions.TTL)
	h := handlers.NewSessionHandlers(svc, tokens, a.feed, logger)

	routes := httpserver.Routes{
		CreateSession:       h.Create(),
		Plans:               handlers.NewPlansHandler(catalog),
		Session:             h.Get(),
		SelectPlan:          h.SelectPlan(),
		SubmitDetails:       h.SubmitDetails(),
		Back:                h.Back(),
		ChoosePaymentMethod: h.ChoosePaymentMethod(),
		Pay:                 h.Pay(),
		Reset:               h.Reset(),
		Transactions:        h.Transactions(),
		Feed:                h.Feed(),
		Health:              httpx.HealthHandler(),
		Metrics:             metrics.Handler(reg),
		SessionAuth:         middleware.SessionAuth(tokens),
	}

	a.server = httpx.NewServer(cfg.HTTPAddress(), httpserver.NewRouter(routes), logger,
		libmiddleware.RecoveryMiddleware(logger),
		metrics.NewHTTPMetrics(reg, "checkout").Middleware,
		libmiddleware.LoggingMiddleware(logger),
	)
	return a, nil
}

func (a *App) openStore(cfg *config.Config) (store.SessionStore, error) {
	if cfg.Sessions.Driver == config.StoreMemory {
		a.logger.Warn("using in-memory session store")
		return store.NewMemoryStore(cfg.Sessions.TTL), nil
	}
	client, err := libredis.NewRedisClient(libredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect session redis: %w", err)
	}
	a.redis = client
	return store.NewRedisStore(client, cfg.Sessions.TTL), nil
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
	if a.feed != nil {
		a.feed.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}

