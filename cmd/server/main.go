// Command server runs the identity verification service: HTTP API, audit
// worker and provider clients, wired from environment configuration.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"remedia/internal/audit"
	"remedia/internal/crypto"
	"remedia/internal/identity"
	"remedia/internal/platform/config"
	"remedia/internal/platform/httpserver"
	"remedia/internal/platform/logger"
	"remedia/internal/platform/metrics"
	platformredis "remedia/internal/platform/redis"
	"remedia/internal/provider"
	httptransport "remedia/internal/transport/http"
	"remedia/internal/usage"
	"remedia/internal/verify"
	"remedia/internal/verify/linktoken"
)

const shutdownGrace = 10 * time.Second

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// audit pipeline: publisher -> worker -> store (+ optional kafka sink)
	auditor := audit.NewPublisher(audit.DefaultQueueSize,
		audit.WithPublisherLogger(log), audit.WithPublisherMetrics(m))

	var auditStore audit.Store = audit.NewInMemoryStore()
	var identityStore identity.Store = identity.NewInMemoryStore()
	if cfg.PostgresURL != "" {
		db, err := sql.Open("postgres", cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		auditStore = audit.NewPostgresStore(db)
		identityStore = identity.NewPostgresStore(db)
		log.Info("postgres stores enabled")
	}

	workerOpts := []audit.WorkerOption{
		audit.WithWorkerLogger(log), audit.WithWorkerMetrics(m),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		sink, err := audit.NewKafkaSink(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		if err != nil {
			return err
		}
		defer sink.Close()
		workerOpts = append(workerOpts, audit.WithSink(sink))
		log.Info("kafka audit sink enabled", "topic", cfg.Kafka.Topic)
	}
	auditWorker := audit.NewWorker(auditStore, auditor.Queue(), workerOpts...)

	box, err := crypto.New(cfg.EncryptionKey,
		crypto.WithLogger(log), crypto.WithRecorder(auditor))
	if err != nil {
		return err
	}

	var usageStore usage.Store = usage.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		usageStore = usage.NewRedisStore(redisClient)
		log.Info("redis usage store enabled")
	}
	ledger := usage.NewLedger(usageStore,
		usage.WithLogger(log), usage.WithMetrics(m),
		usage.WithBrokerDirectory(brokerDirectory(identityStore)))

	limiter := provider.NewRateLimiter(cfg.Verify.RateLimit, cfg.Verify.RateWindow,
		provider.WithRateLimiterMetrics(m))
	httpClient := &http.Client{Timeout: cfg.Verify.RequestTimeout}

	registry := provider.NewRegistry()
	datapro := provider.NewDatapro(cfg.Datapro.BaseURL, cfg.Datapro.Credential,
		provider.WithDataproHTTPClient(httpClient),
		provider.WithDataproLimiter(limiter),
		provider.WithDataproRetries(cfg.Verify.MaxRetries, time.Second),
		provider.WithDataproLogger(log),
		provider.WithDataproMetrics(m))
	if err := registry.Register(identity.KindNIN, datapro); err != nil {
		return err
	}
	if err := registry.Register(identity.KindBVN, datapro); err != nil {
		return err
	}
	verifydata := provider.NewVerifydata(cfg.Verifydata.BaseURL, cfg.Verifydata.Credential,
		provider.WithVerifydataHTTPClient(httpClient),
		provider.WithVerifydataLimiter(limiter),
		provider.WithVerifydataRetries(cfg.Verify.MaxRetries, time.Second),
		provider.WithVerifydataLogger(log),
		provider.WithVerifydataMetrics(m))
	if err := registry.Register(identity.KindCAC, verifydata); err != nil {
		return err
	}

	links := linktoken.NewIssuer(cfg.Verify.LinkSigningKey, cfg.Verify.LinkTTL,
		linktoken.NewInMemoryStore())

	duplicates := verify.NewDuplicateChecker(identityStore, box,
		verify.WithDuplicateCheckerLogger(log))

	verifySvc := verify.NewService(identityStore, box, registry,
		verify.Config{BatchSize: cfg.Verify.BatchSize, BatchDelay: cfg.Verify.BatchDelay},
		verify.WithDuplicateChecker(duplicates),
		verify.WithAuditor(auditor),
		verify.WithLedger(ledger),
		verify.WithLinkIssuer(links),
		verify.WithLogger(log),
		verify.WithMetrics(m))

	router := httptransport.NewRouter(httptransport.Deps{
		Entries:    identity.NewService(identityStore, box, identity.WithLogger(log)),
		Verify:     verifySvc,
		Runner:     verify.NewRunner(verifySvc),
		Audit:      audit.NewService(auditStore),
		Usage:      ledger,
		Limiter:    limiter,
		Auditor:    auditor,
		Logger:     log,
		AdminToken: cfg.AdminToken,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return auditWorker.Run(ctx)
	})
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// brokerDirectory narrows the identity store to the lookup the usage ledger
// needs.
func brokerDirectory(store identity.Store) identity.BrokerDirectory {
	if dir, ok := store.(identity.BrokerDirectory); ok {
		return dir
	}
	return nil
}
