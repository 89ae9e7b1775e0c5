package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vendapos/internal/config"
	"vendapos/internal/dto"
	"vendapos/internal/handler"
	"vendapos/internal/infra"
	"vendapos/internal/model"
	"vendapos/internal/realtime"
	"vendapos/internal/repository"
	"vendapos/internal/repository/localstore"
	"vendapos/internal/router"
	"vendapos/internal/service"
	"vendapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in prod
	if !cfg.IsProduction() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	log.Logger = log.With().Int("station", cfg.Station).Logger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage ──────────────────────────────────────────────────────────────
	var (
		db   *gorm.DB
		repo repository.Set
	)
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		db, err = infra.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to postgres")
		}
		repo = repository.NewPostgresSet(db)
	case config.BackendLocal:
		store, err := localstore.Open(cfg.LocalStorePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LocalStorePath).Msg("failed to open local store")
		}
		repo = localstore.NewSet(store)
	}

	// ── Redis (job queue) ────────────────────────────────────────────────────
	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		if cfg.ChangeTransport == config.TransportRedis || cfg.StorageBackend == config.BackendPostgres {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		log.Warn().Err(err).Msg("redis unavailable, receipts and DLQ disabled")
	}

	// ── Realtime ─────────────────────────────────────────────────────────────
	alerts := realtime.NewAlertRegistry()
	bus := realtime.NewBus(alerts, 512)
	go bus.Run(ctx)

	var amqpClient *infra.AMQPClient
	var pub realtime.Publisher
	var sources []realtime.Source
	switch cfg.ChangeTransport {
	case config.TransportRedis:
		pub = realtime.NewRedisPublisher(rdb)
		sources = append(sources, realtime.NewRedisSource(rdb))
	case config.TransportAMQP:
		amqpClient, err = infra.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to amqp")
		}
		defer amqpClient.Close()
		if err := amqpClient.DeclareFanout(infra.ChangesExchange); err != nil {
			log.Fatal().Err(err).Msg("failed to declare changes exchange")
		}
		pub = realtime.NewAMQPPublisher(amqpClient)
		sources = append(sources, realtime.NewAMQPSource(amqpClient, fmt.Sprintf("vendapos-station-%d", cfg.Station)))
	case config.TransportNone:
		pub = realtime.NewBusPublisher(bus)
	}
	// writes stamp updated_at up to one persistence timeout before they commit
	overlap := 2 * cfg.PersistenceTimeoutDuration()
	sources = append(sources, realtime.NewPoller(repo.Orders, repo.Tables, cfg.PollIntervalDuration(), overlap, time.Now().Add(-cfg.PollIntervalDuration())))

	for _, src := range sources {
		go func(src realtime.Source) {
			if err := src.Run(ctx, bus.Submit); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msgf("change source %T stopped", src)
			}
		}(src)
	}

	// ── Workers ──────────────────────────────────────────────────────────────
	var dispatcher *worker.Dispatcher
	if rdb != nil {
		dispatcher = worker.NewDispatcher(rdb)
		handlers := worker.WorkerHandlers{Receipts: worker.NewReceiptWorker(rdb, cfg.ReceiptStoragePath)}
		if cfg.MailEnabled() {
			handlers.Receipts.WithEmail(dispatcher, cfg.ReceiptEmailTo)
			handlers.Email = worker.NewEmailWorker(rdb, infra.NewMailer(cfg))
			log.Info().Str("to", cfg.ReceiptEmailTo).Msg("receipt copies will be mailed")
		}
		worker.StartWorkerPool(ctx, rdb, cfg.WorkerPoolSize, handlers)
	}

	var notifier infra.Notifier = infra.NopNotifier{}
	if cfg.NotifierURL != "" {
		notifier = infra.NewWebhookNotifier(cfg.NotifierURL, 5*time.Second)
	}
	alertLoop := worker.NewAlertLoop(worker.AlertConfig{
		Alerts:     alerts,
		Notifier:   notifier,
		Interval:   cfg.AlertIntervalDuration(),
		MaxRepeats: cfg.AlertMaxRepeats,
	})
	bus.OnNewOrder(alertLoop.OnNewOrder(ctx))

	// ── Services ─────────────────────────────────────────────────────────────
	guard := service.NewGuard(cfg.PersistenceTimeoutDuration())
	productSvc := service.NewProductService(repo.Products, guard)
	cashbackSvc := service.NewCashbackService(repo.Cashback, guard)
	cajaSvc := service.NewCajaService(repo.Caja, repo.Orders, repo.Tables, guard, pub, cfg.Station)
	orderSvc := service.NewOrderService(repo.Orders, productSvc, cashbackSvc, cajaSvc, guard, pub, dispatcher, cfg.AccrualPct())
	tableSvc := service.NewTableService(repo.Tables, productSvc, cashbackSvc, cajaSvc, guard, pub, dispatcher)

	cajaSvc.OnOpen(func(ctx context.Context, reg *model.CashRegisterSession) {
		n, err := orderSvc.ReconcileOrphans(ctx, reg.ID)
		if err != nil {
			log.Error().Err(err).Str("register_id", reg.ID.String()).Msg("orphan reconciliation failed")
			return
		}
		log.Info().Int("linked", n).Str("register_id", reg.ID.String()).Msg("orphan orders linked to register")
	})

	initial, err := orderSvc.Load(ctx, dto.OrderFilter{Limit: 500})
	if err != nil {
		log.Warn().Err(err).Msg("initial order load failed, live view starts empty")
	}
	bus.Seed(initial)

	r := router.New(ctx, cfg, router.Deps{
		Products: productSvc,
		Orders:   orderSvc,
		Tables:   tableSvc,
		Caja:     cajaSvc,
		Cashback: cashbackSvc,
		Bus:      bus,
		Health: handler.HealthDeps{
			Backend: cfg.StorageBackend,
			DB:      db,
			Redis:   rdb,
			AMQP:    amqpClient,
			Guard:   guard,
		},
	})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     r,
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /v1/events is a long-lived SSE stream.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("backend", cfg.StorageBackend).Str("transport", cfg.ChangeTransport).
			Msgf("VendaPOS listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
