// Package main wires together the scrape service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcpubsub "cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/brstats/statshub/internal/api"
	"github.com/brstats/statshub/internal/archive"
	archivegcs "github.com/brstats/statshub/internal/archive/gcs"
	archivemem "github.com/brstats/statshub/internal/archive/memory"
	"github.com/brstats/statshub/internal/broker"
	brokermem "github.com/brstats/statshub/internal/broker/memory"
	brokerredis "github.com/brstats/statshub/internal/broker/redis"
	"github.com/brstats/statshub/internal/browser"
	"github.com/brstats/statshub/internal/clock/system"
	"github.com/brstats/statshub/internal/config"
	"github.com/brstats/statshub/internal/discovery"
	"github.com/brstats/statshub/internal/extract"
	"github.com/brstats/statshub/internal/id/uuid"
	"github.com/brstats/statshub/internal/logging"
	"github.com/brstats/statshub/internal/metrics"
	"github.com/brstats/statshub/internal/notify"
	notifypubsub "github.com/brstats/statshub/internal/notify/pubsub"
	"github.com/brstats/statshub/internal/scrape"
	"github.com/brstats/statshub/internal/store/postgres"
	"github.com/brstats/statshub/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)
	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.New()

	var (
		queue broker.Queue
		jobs  broker.JobStore
		lock  broker.Lock
		ready api.ReadyFunc
	)
	if cfg.Redis.Addr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				logger.Warn("redis close failed", zap.Error(closeErr))
			}
		}()
		token, err := idGen.NewID()
		if err != nil {
			logger.Fatal("lock token generation failed", zap.Error(err))
		}
		queue = brokerredis.NewQueue(rdb)
		jobs = brokerredis.NewJobStore(rdb)
		lock = brokerredis.NewLock(rdb, token, cfg.Worker.LockTTL())
		ready = func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}
	} else {
		logger.Warn("redis not configured, using in-process broker")
		queue = brokermem.NewQueue()
		jobs = brokermem.NewJobStore()
		lock = brokermem.NewLockState().NewHandle()
	}

	store, err := postgres.New(ctx, postgres.Config{
		DSN:      cfg.DB.DSN,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("postgres init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		logger.Fatal("schema migration failed", zap.Error(err))
	}
	if err := store.Seed(ctx, scrape.Leagues()); err != nil {
		logger.Fatal("league seeding failed", zap.Error(err))
	}

	engine, err := browser.NewEngine(browser.Config{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Site.UserAgent,
		Locale:            cfg.Browser.Locale,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		NavigationTimeout: cfg.Browser.NavTimeout(),
		MaxParallel:       cfg.Browser.MaxParallel,
		Proxies:           cfg.Browser.Proxies,
		ThrottleMin:       cfg.Browser.ThrottleMin(),
		ThrottleMax:       cfg.Browser.ThrottleMax(),
	}, logger.Named("browser"))
	if err != nil {
		logger.Fatal("browser engine init failed", zap.Error(err))
	}

	lister := discovery.New(discovery.Config{
		BaseURL:   cfg.Site.BaseURL,
		UserAgent: cfg.Site.UserAgent,
	}, discovery.BrowserFallback(engine), logger.Named("discovery"))

	var archiver archive.Archiver
	if cfg.Archive.GCSBucket != "" {
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := gcsClient.Close(); closeErr != nil {
				logger.Warn("gcs close failed", zap.Error(closeErr))
			}
		}()
		archiver, err = archivegcs.New(gcsClient, archivegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			logger.Fatal("gcs archiver init failed", zap.Error(err))
		}
	} else {
		logger.Warn("snapshot bucket not configured, archiving in memory")
		archiver = archivemem.New()
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		psClient, err := gcpubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := psClient.Close(); closeErr != nil {
				logger.Warn("pubsub close failed", zap.Error(closeErr))
			}
		}()
		topic := psClient.Topic(cfg.PubSub.TopicName)
		defer topic.Stop()
		notifier, err = notifypubsub.New(topic)
		if err != nil {
			logger.Fatal("pubsub notifier init failed", zap.Error(err))
		}
	}

	sessions := func(ctx context.Context) (worker.PageSession, error) {
		return engine.OpenSession(ctx)
	}
	pipeline := worker.NewScrapePipeline(
		lister,
		sessions,
		extract.New(logger.Named("extract")),
		store,
		archiver,
		cfg.Worker.Concurrency,
		logger.Named("pipeline"),
	)
	supervisor := worker.NewSupervisor(
		queue, jobs, lock, pipeline, notifier, clock,
		worker.SupervisorConfig{
			PopTimeout:    cfg.Worker.PopTimeout(),
			LockRefresh:   cfg.Worker.LockRefresh(),
			JobMaxRetries: cfg.Worker.JobMaxRetries,
			JobBackoff:    cfg.Worker.JobBackoff(),
			MaxRecoveries: cfg.Worker.MaxRecoveries,
		},
		logger.Named("worker"),
	)

	apiServer := api.NewServer(queue, jobs, idGen, clock, ready, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("worker supervisor started")
		if err := supervisor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker supervisor stopped", zap.Error(err))
			stop()
		}
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
