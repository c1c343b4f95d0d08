package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"amparo/internal/audit"
	"amparo/internal/beneficiary"
	"amparo/internal/benefit/cache"
	"amparo/internal/benefit/handler"
	"amparo/internal/benefit/metrics"
	"amparo/internal/benefit/policy"
	"amparo/internal/benefit/service"
	"amparo/internal/benefit/store"
	"amparo/internal/platform/config"
	"amparo/internal/platform/httpserver"
	"amparo/internal/platform/logger"
	"amparo/internal/platform/postgres"
	"amparo/internal/platform/redis"
)

// main wires configuration into services and owns the process lifecycle.
// Business rules live under internal/benefit; nothing here decides
// eligibility.
func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err.Error())
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	eligibilityPolicy, err := policy.New(cfg.Cooldowns)
	if err != nil {
		return err
	}

	var (
		ledger    store.Store
		tx        store.TxRunner
		directory beneficiary.Directory = beneficiary.PermissiveDirectory{}
		health                          = func(context.Context) error { return nil }
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		ledger = store.NewPostgres(db)
		tx = store.NewPostgresTxRunner(db)
		directory = beneficiary.NewPostgresDirectory(db)
		health = db.PingContext
		log.Info("ledger store", "backend", "postgres")
	} else {
		mem := store.NewMemoryStore()
		ledger = mem
		tx = service.NewShardedTx(mem)
		log.Warn("no database configured, ledger is in-memory and volatile")
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
		cached := cache.NewCachedStore(ledger, rdb, cfg.Redis.TTL, log)
		ledger = cached
		tx = cache.NewInvalidatingTxRunner(tx, cached)
		log.Info("history cache enabled", "ttl", cfg.Redis.TTL.String())
	}

	var auditSink audit.Store
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer sink.Close()
		auditSink = sink
		log.Info("audit trail", "sink", "kafka", "topic", cfg.Kafka.Topic)
	} else {
		auditSink = audit.NewInMemoryStore()
	}

	inbox := make(chan audit.Event, 256)
	auditor := audit.NewPublisher(audit.NewAsyncStore(inbox, auditSink))
	worker := audit.NewWorker(auditSink, inbox)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err.Error())
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	engine := service.NewEngine(ledger, eligibilityPolicy, cfg.CountDeletedInEligibility, m)
	registrar := service.NewRegistrar(engine, tx, directory, log, m,
		service.WithAuditor(auditor))
	updater := service.NewUpdater(ledger, log,
		service.WithUpdaterAuditor(auditor))

	router := chi.NewRouter()
	handler.New(engine, registrar, updater, log, health).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", "timeout", cfg.ShutdownTimeout.String())
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
