package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/Bandi86/2025-sub008/internal/core/config"
	"github.com/Bandi86/2025-sub008/internal/core/domain"
	"github.com/Bandi86/2025-sub008/internal/dispatch/health"
	"github.com/Bandi86/2025-sub008/internal/dispatch/queue"
	"github.com/Bandi86/2025-sub008/internal/dispatch/scheduler"
	"github.com/Bandi86/2025-sub008/internal/dispatch/worker"
	"github.com/Bandi86/2025-sub008/internal/faults/breaker"
	"github.com/Bandi86/2025-sub008/internal/faults/handler"
	"github.com/Bandi86/2025-sub008/internal/faults/retry"
	redisclient "github.com/Bandi86/2025-sub008/internal/infra/redis"
	"github.com/Bandi86/2025-sub008/internal/infra/scrape"
	"github.com/Bandi86/2025-sub008/internal/infra/storage"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/memory"
	"github.com/Bandi86/2025-sub008/internal/infra/storage/postgres"
)

// Pipeline is the main application struct that manages the scraper lifecycle.
type Pipeline struct {
	cfg          Config
	queue        *queue.Service
	sched        *scheduler.Scheduler
	pools        map[domain.Category]*worker.Pool
	sweeper      *worker.Sweeper
	breakers     *breaker.Registry
	errs         *handler.Handler
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcServer   *health.GRPCServer
	db           *postgres.DB
	redisClient  *redisclient.Client
	log          *slog.Logger
	cancel       context.CancelFunc
}

// Config holds the application configuration.
type Config struct {
	Port          int
	GRPCPort      int
	Database      postgres.Config
	MigrationsDir string // defaults to "migrations" relative to CWD
	Redis         redisclient.Config
	Scrape        scrape.Config
	Breaker       breaker.Config
	Retry         map[domain.ErrorKind]retry.Policy // nil = built-in defaults
	Scheduler     scheduler.Config
	Health        health.Thresholds
	Retention     config.RetentionConfig
	Lanes         []config.LaneConfig
}

// NewPipeline creates a new Pipeline instance with all dependencies initialized.
func NewPipeline(cfg Config) (*Pipeline, error) {

	// 1. Initialize Storage
	var store storage.TaskStore
	var db *postgres.DB

	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}

		migrationsDir := cfg.MigrationsDir
		if migrationsDir == "" {
			migrationsDir = "migrations"
		}
		if err := db.Migrate(migrationsDir); err != nil {
			return nil, err
		}

		store = postgres.NewTaskStore(db)
		slog.Info("Using PostgreSQL storage")
	} else {
		store = memory.NewTaskStore()
		slog.Info("Using Memory storage")
	}

	// 2. Initialize Redis (optional coordination layer)
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("Failed to connect to Redis, coordination disabled", "error", err)
			redisClient = nil
		}
	}

	// 3. Initialize Fault Handling
	errs := handler.New(nil)
	breakers := breaker.NewRegistry(cfg.Breaker)
	retryMgr := retry.NewManager(cfg.Retry, errs.Metrics())

	// 4. Initialize Queue
	lanes := make(map[domain.Category]queue.LaneConfig, len(cfg.Lanes))
	for _, lane := range cfg.Lanes {
		lanes[lane.Category] = lane.Queue
	}
	queueSvc := queue.New(store, lanes, redisClient, slog.Default())

	// 5. Initialize Scheduler
	sched := scheduler.New(cfg.Scheduler, queueSvc, redisClient, nil, slog.Default())

	// 6. Initialize Worker Pools
	fetcher := scrape.NewFetcher(cfg.Scrape)
	sink := &LogSink{}
	pools := make(map[domain.Category]*worker.Pool, len(cfg.Lanes))

	for _, lane := range cfg.Lanes {
		op := scrapeOperation(fetcher, sink, lane.Target)
		pool := worker.NewPool(
			lane.Workers,
			lane.Category,
			queueSvc,
			op,
			breakers.Get(breakerName(lane.Target)),
			retryMgr,
			errs,
		)
		pools[lane.Category] = pool
	}

	// 7. Initialize Health Monitor
	healthMon := health.NewMonitor(queueSvc, breakers, errs.Metrics(), cfg.Health)
	healthServer := health.NewServer(healthMon, cfg.Port)
	grpcServer := health.NewGRPCServer(healthMon, cfg.GRPCPort)

	return &Pipeline{
		cfg:          cfg,
		queue:        queueSvc,
		sched:        sched,
		pools:        pools,
		sweeper:      worker.NewSweeper(queueSvc, cfg.Retention.GracePeriod, cfg.Retention.SweepInterval),
		breakers:     breakers,
		errs:         errs,
		healthMon:    healthMon,
		healthServer: healthServer,
		grpcServer:   grpcServer,
		db:           db,
		redisClient:  redisClient,
		log:          slog.Default(),
	}, nil
}

// Queue exposes the task queue for embedding callers.
func (p *Pipeline) Queue() *queue.Service {
	return p.queue
}

// Scheduler exposes the recurring scheduler for embedding callers.
func (p *Pipeline) Scheduler() *scheduler.Scheduler {
	return p.sched
}

// Start starts the pipeline and all its components.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	// Start Health Servers
	go func() {
		if err := p.healthServer.Start(); err != nil {
			p.log.Error("Health server failed", "error", err)
		}
	}()
	go func() {
		if err := p.grpcServer.Start(ctx); err != nil {
			p.log.Error("gRPC health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if p.db != nil {
		p.db.StartMetricsCollector(ctx)
	}

	// Start Worker Pools
	for category, pool := range p.pools {
		p.log.Info("Starting worker pool", "category", category)
		pool.Start(ctx)
	}

	// Register Recurring Schedules
	for _, lane := range p.cfg.Lanes {
		if lane.Interval <= 0 {
			continue
		}
		id, err := p.sched.ScheduleRecurring(ctx, lane.Category, lane.Interval, recurringPayload(lane))
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", lane.Category, err)
		}
		p.log.Info("Recurring scrape scheduled",
			"category", lane.Category,
			"interval", lane.Interval,
			"schedule_id", id,
		)
	}

	// Start Retention Sweeper
	go p.sweeper.Start(ctx)

	return nil
}

// Stop stops the pipeline.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.log.Info("Stopping Pipeline...")

	if p.cancel != nil {
		p.cancel()
	}

	// Stop Scheduler and Workers
	p.sched.Stop()
	p.queue.Close()
	for _, pool := range p.pools {
		pool.Stop()
	}

	// Close Redis
	if p.redisClient != nil {
		if err := p.redisClient.Close(); err != nil {
			p.log.Warn("Failed to close Redis", "error", err)
		}
	}

	// Close Database
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.log.Warn("Failed to close database", "error", err)
		}
	}

	// Stop Health Server
	return p.healthServer.Stop(ctx)
}

// scrapeOperation builds the unit of work a pool runs per claimed task:
// fetch the task target and hand the body to the sink.
func scrapeOperation(fetcher *scrape.Fetcher, sink ResultSink, fallback string) worker.Operation {
	return func(ctx context.Context, task *domain.Task) error {
		target := task.Target
		if target == "" {
			target = fallback
		}
		body, err := fetcher.Fetch(ctx, target)
		if err != nil {
			return err
		}
		return sink.Store(ctx, task, body)
	}
}

// recurringPayload builds the payload enqueued on each scheduler tick.
func recurringPayload(lane config.LaneConfig) scheduler.PayloadBuilder {
	return func() (json.RawMessage, queue.AddOptions, error) {
		payload, err := json.Marshal(map[string]string{"target": lane.Target})
		if err != nil {
			return nil, queue.AddOptions{}, err
		}
		return payload, queue.AddOptions{Target: lane.Target}, nil
	}
}

// breakerName derives the breaker identity from a scrape target. Lanes
// pointed at the same host share one breaker.
func breakerName(target string) string {
	if u, err := url.Parse(target); err == nil && u.Host != "" {
		return u.Host
	}
	return "default"
}
