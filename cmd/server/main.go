package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldbooking/internal/api"
	"fieldbooking/internal/autocomplete"
	"fieldbooking/internal/booking"
	"fieldbooking/internal/config"
	"fieldbooking/internal/database"
	"fieldbooking/internal/events"
	"fieldbooking/internal/history"
	"fieldbooking/internal/lock"
	"fieldbooking/internal/metrics"
	"fieldbooking/internal/payment"
	"fieldbooking/shared/access"
	"fieldbooking/shared/audit"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("FIELDBOOKING_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.SyncFieldsFromConfig(ctx, cfg.Fields); err != nil {
		logger.Fatal().Err(err).Msg("sync fields")
	}
	if err := db.SyncUsersFromConfig(ctx, cfg.Users); err != nil {
		logger.Fatal().Err(err).Msg("sync users")
	}

	var rdb *redis.Client
	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb)
	}

	bus := events.NewEventBus(&logger)
	if cfg.Kafka.Enabled {
		producer, err := events.NewSyncProducer(cfg.Kafka.Brokers)
		if err != nil {
			logger.Fatal().Err(err).Strs("brokers", cfg.Kafka.Brokers).Msg("create kafka producer")
		}
		forwarder := events.NewKafkaForwarder(producer, cfg.Kafka.Topic, &logger)
		defer forwarder.Close()
		forwarder.Attach(bus, events.TypeBookingTransition)
	}

	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
	}

	now := time.Now
	bookings := booking.NewService(db, history.NewEmitter(bus, &logger), access.Policy{}, booking.Config{
		GracePeriod: cfg.GracePeriod(),
		Location:    cfg.Location(),
		Now:         now,
	}, &logger)
	payments := payment.NewService(db, now, &logger)

	engine := autocomplete.NewEngine(autocomplete.Config{
		Interval:      cfg.AutoCompleteInterval(),
		BatchSize:     cfg.AutoCompleteBatchSize(),
		RatePerSecond: cfg.AutoCompleteRate(),
		Now:           now,
	}, db, bookings, locker, &logger)
	engine.Start()
	defer engine.Stop()

	go database.NewBackupService(db, cfg.Backup, &logger).Start(ctx)

	if cfg.Audit.Enabled {
		auditService := audit.NewService(audit.Config{
			ExportDir:     cfg.Audit.ExportDir,
			ExportOnStart: cfg.Audit.ExportOnStart,
			Location:      cfg.Location(),
		}, db, audit.NewExcelizeWriter, &logger)
		auditService.Start()
		defer auditService.Stop()
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, db, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	handler := api.NewHandler(api.Deps{
		Bookings:     bookings,
		Payments:     payments,
		Calendar:     db,
		Identity:     access.NewService(db, logger),
		AutoComplete: engine,
		Location:     cfg.Location(),
		Now:          now,
	}, &logger)

	logger.Info().
		Int("port", cfg.HTTPPort()).
		Str("timezone", cfg.Location().String()).
		Dur("grace_period", cfg.GracePeriod()).
		Msg("field booking service started")
	serve(ctx, cfg.HTTPPort(), handler.Routes(), "api", &logger)
}

// serve runs srv until ctx is done, then shuts it down.
func serve(ctx context.Context, port int, h http.Handler, name string, logger *zerolog.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Str("server", name).Msg("server error")
	}
}

func startHealthServer(ctx context.Context, port int, db *database.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := db.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	serve(ctx, port, mux, "health", logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	serve(ctx, port, mux, "metrics", logger)
}
