package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/accessory-checkout/internal/checkout"
	"github.com/vasiliy-maslov/accessory-checkout/internal/config"
	"github.com/vasiliy-maslov/accessory-checkout/internal/customer"
	"github.com/vasiliy-maslov/accessory-checkout/internal/db"
	"github.com/vasiliy-maslov/accessory-checkout/internal/draft"
	"github.com/vasiliy-maslov/accessory-checkout/internal/events"
	checkoutHttp "github.com/vasiliy-maslov/accessory-checkout/internal/handler/http"
	"github.com/vasiliy-maslov/accessory-checkout/internal/metrics"
	"github.com/vasiliy-maslov/accessory-checkout/internal/order"
	"github.com/vasiliy-maslov/accessory-checkout/internal/product"
	"github.com/vasiliy-maslov/accessory-checkout/internal/shipping"
	"github.com/vasiliy-maslov/accessory-checkout/internal/store"
)

func newDraftBackend(cfg *config.Config) (draft.Backend, error) {
	switch cfg.Draft.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return draft.NewRedisBackend(client, "", cfg.Redis.DraftTTL), nil
	case "memory":
		log.Warn().Msg("Drafts are kept in memory and will not survive a restart")
		return draft.NewMemoryBackend(), nil
	default:
		return draft.NewPebbleBackend(cfg.Draft.Dir)
	}
}

func newAggregator(cfg config.ShippingConfig, observer shipping.Observer) *shipping.Aggregator {
	client := &http.Client{Timeout: cfg.Timeout()}

	providers := make([]shipping.Provider, 0, len(cfg.Carriers))
	for _, c := range cfg.Carriers {
		providers = append(providers, shipping.NewHTTPProvider(shipping.HTTPProviderConfig{
			Code:    c.Code,
			Name:    c.Name,
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
		}, client))
	}

	return shipping.NewAggregator(providers,
		shipping.WithTimeout(cfg.Timeout()),
		shipping.WithObserver(observer),
	)
}

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Str("service", "checkout-service").Logger()
	log.Info().Msg("Starting checkout-service...")

	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	ctx := context.Background()

	pg, err := db.New(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	sqlDB, err := db.Connect(cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open catalog connection")
	}
	defer sqlDB.Close()

	if err := db.ApplyMigrations(sqlDB, cfg.Postgres); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply migrations")
	}

	backend, err := newDraftBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Draft.Backend).Msg("Failed to open draft storage")
	}
	drafts := draft.NewStore(backend)
	defer drafts.Close()

	m := metrics.New("accessory")

	orderSvc := order.NewService(order.NewRepository(pg.Pool))
	var sink checkout.OrderSink = orderSvc
	if cfg.Kafka.Enabled() {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sink = events.NewNotifyingSink(sink, publisher, 5*time.Second)
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("Publishing order events to Kafka")
	}
	sink = m.InstrumentSink(sink)

	fallback := cfg.Checkout.FallbackOrigin
	settings := checkout.Settings{
		MinQuantity:    cfg.Checkout.MinQuantity,
		MaxFileSize:    cfg.Checkout.MaxFileSize,
		DebounceDelay:  cfg.Checkout.Debounce(),
		RefreshTimeout: cfg.Shipping.Timeout() + 2*time.Second,
		IdleTimeout:    cfg.Checkout.IdleTimeout(),
		PaymentMethods: cfg.Checkout.PaymentMethods,
		FallbackOrigin: checkout.Origin{LocationID: fallback.LocationID, City: fallback.City, Province: fallback.Province},
	}
	deps := checkout.Deps{
		Products:  product.NewRepository(sqlDB),
		Store:     store.NewProfile(pg.Pool),
		Customers: customer.NewService(customer.NewRepository(pg.Pool)),
		Rates:     newAggregator(cfg.Shipping, m),
		Orders:    sink,
		Drafts: func(userID uuid.UUID) checkout.DraftStore {
			return drafts.Scope(userID.String())
		},
	}

	manager := checkout.NewManager(settings, deps)
	m.WatchSessions(manager.Len)

	router := checkoutHttp.NewRouter(
		checkoutHttp.NewCheckoutHandler(manager),
		checkoutHttp.NewOrderHandler(orderSvc),
		m.Handler(),
	)

	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Str("port", cfg.App.Port).Msg("Could not listen")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	// drafts stay in storage; sessions only drop their timers and previews
	manager.CloseAll()

	log.Info().Msg("Checkout-service stopped gracefully.")
}
