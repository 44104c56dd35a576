package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/chordline-io/cadenza/database"
	"github.com/chordline-io/cadenza/internal/aggregator"
	"github.com/chordline-io/cadenza/internal/config"
	"github.com/chordline-io/cadenza/internal/consumer"
	"github.com/chordline-io/cadenza/internal/eventbus"
	"github.com/chordline-io/cadenza/internal/middleware"
	"github.com/chordline-io/cadenza/internal/region"
	"github.com/chordline-io/cadenza/internal/repository"
)

type App struct {
	config      *config.Config
	logger      *slog.Logger
	pool        *pgxpool.Pool
	bus         *eventbus.RabbitMQEventBus
	metricBus   *eventbus.MetricEventBus
	cache       aggregator.Cache
	dispatchers []*consumer.Dispatcher
}

// Returns a new instance of the application with a connection to the
// database pool and the message broker. The broker client is constructed
// here once and injected into every publisher and dispatcher; its lifecycle
// belongs to the App.
func New(logger *slog.Logger, cfg *config.Config) (*App, error) {

	dbConfig, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DatabaseConfig.DatabaseUser,
		cfg.DatabaseConfig.DatabasePassword,
		cfg.DatabaseConfig.DatabaseHost,
		cfg.DatabaseConfig.DatabasePort,
		cfg.DatabaseConfig.DatabaseName,
	))
	if err != nil {
		return nil, err
	}

	dbConfig.MaxConns = cfg.DatabaseConfig.DatabasePoolMaxConnections
	dbConfig.MinConns = cfg.DatabaseConfig.DatabasePoolMinConnections
	dbConfig.MaxConnLifetime = time.Hour * time.Duration(cfg.DatabaseConfig.DatabasePoolMaxConnectionLifetime)

	connPool, err := pgxpool.NewWithConfig(context.Background(), dbConfig)
	if err != nil {
		return nil, err
	}

	amqpURI := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQConfig.RabbitMQUser,
		cfg.RabbitMQConfig.RabbitMQPass,
		cfg.RabbitMQConfig.RabbitMQAddress,
		cfg.RabbitMQConfig.RabbitMQPort,
	)
	bus, err := eventbus.NewRabbitMQEventBus(
		amqpURI,
		cfg.RabbitMQConfig.Exchange,
		eventbus.TopicExchangeType,
		cfg.ConsumerConfig.PrefetchCount,
	)
	if err != nil {
		logger.Error("Failed to initialize RabbitMQ event bus", slog.Any("error", err))
		return nil, fmt.Errorf("failed to initialize RabbitMQ event bus: %w", err)
	}

	metricBus := eventbus.NewMetricEventBus(bus, logger)

	var cache aggregator.Cache
	if cfg.RedisConfig.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisConfig.RedisAddress,
			Password: cfg.RedisConfig.RedisPassword,
			DB:       cfg.RedisConfig.RedisDB,
		})
		cache = aggregator.NewRedisCache(client, logger)
	}

	app := &App{
		config:    cfg,
		logger:    logger,
		pool:      connPool,
		bus:       bus,
		metricBus: metricBus,
		cache:     cache,
	}
	app.dispatchers = app.buildDispatchers()
	return app, nil
}

func (a *App) buildDispatchers() []*consumer.Dispatcher {
	repo := repository.New(a.pool)
	regions := region.NewResolver(
		a.config.RegionServiceConfig.BaseURL,
		time.Duration(a.config.RegionServiceConfig.TimeoutSeconds)*time.Second,
		a.logger,
	)
	opts := consumer.Options{
		RequeueTransient: a.config.ConsumerConfig.RequeueTransient,
		HandlerTimeout:   time.Duration(a.config.ConsumerConfig.HandlerTimeoutSeconds) * time.Second,
	}

	handlers := []consumer.Handler{
		&consumer.SongHandler{Logger: a.logger, Store: repo, Regions: regions, Bus: a.metricBus},
		&consumer.AlbumHandler{Logger: a.logger, Store: repo, Regions: regions},
		&consumer.ArtistHandler{Logger: a.logger, Store: repo, Regions: regions},
		&consumer.UserHandler{Logger: a.logger, Store: repo},
	}

	if a.config.ConsumerConfig.Mode == "firehose" {
		return []*consumer.Dispatcher{
			consumer.NewFirehoseDispatcher(a.bus, a.logger, handlers, opts),
		}
	}

	dispatchers := make([]*consumer.Dispatcher, 0, len(handlers))
	for _, h := range handlers {
		dispatchers = append(dispatchers, consumer.NewDispatcher(a.bus, a.logger, h, opts))
	}
	return dispatchers
}

// Starts the consumers and the read-side API server, and blocks until the
// context is cancelled or a component fails.
func (a *App) Start(ctx context.Context) error {

	database.RunGooseMigrations(a.logger, a.pool)

	consumerCtx, stopConsumers := context.WithCancel(ctx)
	defer stopConsumers()

	errCh := make(chan error, len(a.dispatchers)+1)

	for _, d := range a.dispatchers {
		go func(d *consumer.Dispatcher) {
			if err := d.Run(consumerCtx); err != nil {
				errCh <- fmt.Errorf("dispatcher stopped: %w", err)
			}
		}(d)
	}

	allowedOrigins := []string{
		"http://localhost:1337",
		"https://studio.chordline.io",
	}

	middlewares := middleware.CreateStack(
		middleware.Logging(a.logger),
		middleware.WithDBConnection(a.logger, a.pool),
		middleware.CORSMiddleware(allowedOrigins),
	)
	router := a.loadRoutes()

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.config.AppConfig.Address, a.config.AppConfig.Port),
		Handler: middlewares(router),
	}

	go func() {
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to listen and serve: %w", err)
		}
	}()

	a.logger.Info("server running",
		slog.String("Address", a.config.AppConfig.Address),
		slog.Int("port", a.config.AppConfig.Port),
	)

	var runErr error
	select {
	// Wait until we receive SIGINT (ctrl+c on cli)
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	// Stop pulling new messages first; in-flight deliveries that were not
	// acknowledged go back to the broker.
	stopConsumers()
	a.bus.Close()

	sCtx, cancel := context.WithTimeout(context.Background(), time.Second*15)
	defer cancel()
	srv.Shutdown(sCtx)

	a.pool.Close()

	return runErr
}
