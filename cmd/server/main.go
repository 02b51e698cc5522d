package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"trackgate/internal/api/router"
	"trackgate/internal/cache"
	"trackgate/internal/config"
	"trackgate/internal/core/repository"
	"trackgate/internal/core/service"
	"trackgate/internal/gateway"
	"trackgate/internal/host"
	"trackgate/internal/relay"
)

func main() {
	cfg := config.LoadConfig()
	logger := config.NewLogger(cfg.LogLevel)

	services, err := config.LoadServices(cfg.ServicesFile)
	if err != nil {
		log.Fatalf("Failed to load services: %v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_ACCESS_SECRET environment variable is required")
	}
	if cfg.APIPassword == "" {
		logger.Println("API_PASSWORD not set, any credentials get an API token")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend := newBackend(ctx, cfg, logger)
	defer closeBackend()

	gw := gateway.New(gateway.Config{
		Inactivity:   cfg.Inactivity,
		RetryDelay:   cfg.RetryDelay,
		CommandDelay: cfg.CommandDelay,
		JobTimeout:   cfg.JobTimeout,
	}, backend, nil, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(ctx) })

	for _, svc := range services {
		h, err := host.New(svc, gw)
		if err != nil {
			log.Fatalf("Service %s: %v", svc.Name, err)
		}
		g.Go(func() error { return h.Run(ctx) })
	}

	console := relay.NewConsole(logger)
	for _, r := range append(newRelays(cfg, logger), console) {
		unsubscribe := gw.Bus().Subscribe(r)
		defer unsubscribe()
		g.Go(func() error { return r.Run(ctx) })
		logger.Printf("Relay %s started", r.Name())
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: router.NewRouter(router.Options{
			JWTSecret:   cfg.JWTSecret,
			APIUser:     cfg.APIUser,
			APIPassword: cfg.APIPassword,
			Commands:    gw,
			Sessions:    gw,
			Positions:   backend,
			Devices:     backend,
			Console:     console,
			Logger:      logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.Printf("API server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Gateway stopped: %v", err)
	}
	logger.Println("Gateway stopped")
}

// newBackend stores on MongoDB, or in memory when TEST_MODE is set.
func newBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*service.Backend, func()) {
	var (
		deviceRepo   repository.DeviceRepository
		positionRepo repository.PositionRepository
		eventRepo    repository.EventRepository
	)
	if config.TestMode() {
		logger.Println("Test mode: using in-memory storage")
		deviceRepo = repository.NewInMemoryDeviceRepository()
		positionRepo = repository.NewInMemoryPositionRepository()
		eventRepo = repository.NewInMemoryEventRepository()
	} else {
		db, err := config.ConnectMongoDB(ctx, config.NewMongoConfig())
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		deviceRepo = repository.NewMongoDeviceRepository(db)
		positionRepo = repository.NewMongoPositionRepository(db)
		eventRepo = repository.NewMongoEventRepository(db)
	}

	c := cache.New(cfg.RedisURL, logger)
	backend := service.NewBackend(
		service.NewDeviceService(deviceRepo),
		service.NewPositionService(positionRepo, c),
		eventRepo,
	)
	return backend, func() { c.Close() }
}

// newRelays builds the relays whose broker is configured.
func newRelays(cfg *config.Config, logger *log.Logger) []relay.Relay {
	var relays []relay.Relay
	if cfg.MQTTBroker != "" {
		relays = append(relays, relay.NewMQTT(cfg.MQTTBroker, cfg.MQTTTopic, logger))
	}
	if len(cfg.KafkaBrokers) > 0 {
		relays = append(relays, relay.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger))
	}
	if cfg.InfluxURL != "" {
		relays = append(relays, relay.NewInflux(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger))
	}
	return relays
}
