package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	artifacthandler "dealkernel/internal/artifact/handler"
	artifactservice "dealkernel/internal/artifact/service"
	artifactstore "dealkernel/internal/artifact/store"
	"dealkernel/internal/audit"
	audithandler "dealkernel/internal/audit/handler"
	authoritystore "dealkernel/internal/authority/store"
	dealhandler "dealkernel/internal/deal/handler"
	dealservice "dealkernel/internal/deal/service"
	dealstore "dealkernel/internal/deal/store"
	eventservice "dealkernel/internal/event/service"
	eventstore "dealkernel/internal/event/store"
	"dealkernel/internal/gate"
	gatehandler "dealkernel/internal/gate/handler"
	gatemetrics "dealkernel/internal/gate/metrics"
	materialhandler "dealkernel/internal/material/handler"
	materialservice "dealkernel/internal/material/service"
	materialstore "dealkernel/internal/material/store"
	"dealkernel/internal/platform/config"
	"dealkernel/internal/platform/httpserver"
	"dealkernel/internal/platform/logger"
	"dealkernel/internal/platform/metrics"
	platformpostgres "dealkernel/internal/platform/postgres"
	platformredis "dealkernel/internal/platform/redis"
	"dealkernel/internal/projection"
	projectionhandler "dealkernel/internal/projection/handler"
	"dealkernel/internal/token"
	httptransport "dealkernel/internal/transport/http"
	"dealkernel/pkg/platform/tx"
)

// main wires storage, services, and the HTTP surface. Without POSTGRES_DSN
// everything runs on the in-memory stores, which is the local-development
// and test wiring; the semantics are identical either way.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	stores, cleanup, err := buildStores(ctx, cfg, log)
	if err != nil {
		log.Error("storage init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	dealSvc := dealservice.New(stores.deals, stores.rules, stores.txr)
	eventSvc := eventservice.New(stores.events, stores.deals)

	var cache *projection.SnapshotCache
	if stores.redis != nil {
		cache = projection.NewSnapshotCache(stores.redis, config.SnapshotCacheTTL)
	}
	engine := projection.NewEngine(eventSvc, cache)

	publisher, auditWorker := audit.NewBufferedPublisher(stores.audit, config.AuditBuffer)
	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		if err := auditWorker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()
	gateSvc := gate.New(eventSvc, stores.rules, engine, dealSvc, publisher, cache, gatemetrics.New())
	materialSvc := materialservice.New(stores.materials, gateSvc)
	artifactSvc := artifactservice.New(stores.artifacts, dealSvc, stores.deals, stores.rules, eventSvc, engine)

	routerCfg := httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		RequireAuth:    cfg.RequireAuth,
		RequestTimeout: 30 * time.Second,
	}
	if cfg.RequireAuth {
		routerCfg.TokenValidator = token.NewService(cfg.JWTSigningKey, "dealkernel")
	}

	router := httptransport.NewRouter(routerCfg,
		dealhandler.New(dealSvc, log),
		gatehandler.New(gateSvc, log),
		materialhandler.New(materialSvc, log),
		projectionhandler.New(engine, dealSvc, log),
		artifacthandler.New(artifactSvc, log),
		audithandler.New(publisher, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting deal kernel", "addr", cfg.Addr, "postgres", cfg.PostgresDSN != "", "redis", cfg.RedisURL != "", "kafka", len(cfg.KafkaBrokers) > 0)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	// Stop the audit worker only after the server drains, so every served
	// request's entry reaches the store.
	stopWorker()
	<-workerDone
	log.Info("deal kernel stopped")
}

// storeSet holds one implementation per persistence concern.
type storeSet struct {
	deals     *storesDeal
	rules     rulesStore
	events    eventservice.Ledger
	materials materialservice.Store
	artifacts artifactservice.Store
	audit     audit.Store
	redis     *platformredis.Client

	// txr is nil for the memory stores; postgres wiring supplies one so deal
	// creation and rule seeding commit as a unit.
	txr dealservice.TxRunner
}

// rulesStore is the union of what deal seeding and the gate need from the
// rule store.
type rulesStore interface {
	dealservice.RuleSeeder
	gate.Rules
}

// storesDeal adapts either deal store behind the interfaces its consumers
// declare.
type storesDeal struct {
	dealservice.Store
	eventservice.ActorResolver
}

func buildStores(ctx context.Context, cfg config.Server, log *slog.Logger) (*storeSet, func(), error) {
	cleanup := func() {}

	if cfg.PostgresDSN == "" {
		deals := dealstore.NewMemory()
		set := &storeSet{
			deals:     &storesDeal{Store: deals, ActorResolver: deals},
			rules:     authoritystore.NewMemory(),
			events:    eventstore.NewMemory(),
			materials: materialstore.NewMemory(),
			artifacts: artifactstore.NewMemory(),
			audit:     audit.NewMemoryStore(),
		}
		set.redis, cleanup = openRedis(cfg, log, cleanup)
		var err error
		set.audit, cleanup, err = wrapKafka(ctx, cfg, log, set.audit, cleanup)
		return set, cleanup, err
	}

	db, err := platformpostgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, cleanup, err
	}
	cleanup = func() { _ = db.Close() }
	if err := platformpostgres.Migrate(ctx, db); err != nil {
		return nil, cleanup, err
	}

	deals := dealstore.NewPostgres(db)
	set := &storeSet{
		deals:     &storesDeal{Store: deals, ActorResolver: deals},
		rules:     authoritystore.NewPostgres(db),
		events:    eventstore.NewPostgres(db),
		materials: materialstore.NewPostgres(db),
		artifacts: artifactstore.NewPostgres(db),
		audit:     audit.NewPostgresStore(db),
		txr:       tx.NewRunner(db),
	}
	set.redis, cleanup = openRedis(cfg, log, cleanup)
	set.audit, cleanup, err = wrapKafka(ctx, cfg, log, set.audit, cleanup)
	return set, cleanup, err
}

// openRedis connects the snapshot cache client when configured. Cache
// failures never block startup; the engine just replays.
func openRedis(cfg config.Server, log *slog.Logger, cleanup func()) (*platformredis.Client, func()) {
	if cfg.RedisURL == "" {
		return nil, cleanup
	}
	client, err := platformredis.New(config.DefaultRedisConfig(cfg.RedisURL))
	if err != nil {
		log.Warn("redis unavailable, snapshot cache disabled", "error", err)
		return nil, cleanup
	}
	prev := cleanup
	return client, func() { _ = client.Close(); prev() }
}

// wrapKafka fans audit writes out to Kafka alongside the local store when
// brokers are configured. Unlike the cache, a configured-but-broken audit
// stream is a startup failure: the trail is a correctness guarantee.
func wrapKafka(ctx context.Context, cfg config.Server, log *slog.Logger, local audit.Store, cleanup func()) (audit.Store, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return local, cleanup, nil
	}
	sink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.AuditTopic)
	if err != nil {
		return nil, cleanup, err
	}
	log.Info("audit stream connected", "topic", cfg.AuditTopic)
	prev := cleanup
	return audit.NewFanoutStore(local, sink), func() { sink.Close(); prev() }, nil
}
