package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rgm/internal/brain"
	"github.com/wonny/rgm/internal/contracts"
	"github.com/wonny/rgm/internal/featurestore"
	"github.com/wonny/rgm/internal/modelstore"
	"github.com/wonny/rgm/internal/publish"
	"github.com/wonny/rgm/internal/recommend"
	"github.com/wonny/rgm/internal/rgmconfig"
	"github.com/wonny/rgm/internal/sample"
	"github.com/wonny/rgm/pkg/config"
	"github.com/wonny/rgm/pkg/database"
	"github.com/wonny/rgm/pkg/httputil"
	"github.com/wonny/rgm/pkg/logger"
	"github.com/wonny/rgm/pkg/metrics"
	"github.com/wonny/rgm/pkg/redis"
)

// app holds the wired process dependencies shared by the commands
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	scenario *rgmconfig.Config
	hash     string

	db      *database.DB
	redis   *redis.Client
	reader  contracts.FeatureReader
	models  *modelstore.Store
	results recommend.Store
	metrics *metrics.Recorder
	multi   *publish.Multi
	orch    *brain.Orchestrator

	// synthetic history window (memory feature store only)
	sampleFrom, sampleTo time.Time

	closers []func() error
}

// newApp loads config and connects every configured backend.
// FEATURE_STORE=memory serves the synthetic ladder dataset.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	if err := a.loadScenario(); err != nil {
		return nil, err
	}

	// 1. PostgreSQL (feature store and/or recommendation repository)
	if cfg.Database.URL != "" {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
		a.closers = append(a.closers, func() error { db.Close(); return nil })
	}

	// 2. Feature store reader
	if cfg.FeatureStore == config.FeatureStoreMemory {
		data := sample.Generate(sample.LadderSKUs(), sample.DefaultOptions())
		a.reader = featurestore.NewMemoryReader(data.Products, data.Observations)
		a.sampleFrom, a.sampleTo = data.Period()
		log.Warn("Using in-memory synthetic feature store")
	} else {
		reader, closeReader, err := featurestore.Open(cfg, a.pool(), log.Zerolog())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open feature store: %w", err)
		}
		a.reader = reader
		a.closers = append(a.closers, closeReader)
	}

	// 3. Redis mirror
	rc, err := redis.New(cfg)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.redis = rc
	a.closers = append(a.closers, rc.Close)

	var mirror modelstore.Mirror
	if rc.Enabled() {
		mirror = modelstore.NewRedisMirror(rc)
	}
	a.models = modelstore.NewStore(mirror, log.Zerolog())

	// 4. Result store
	if a.db != nil {
		a.results = recommend.NewRepository(a.db.Pool)
	} else {
		a.results = recommend.NewMemoryStore()
	}

	// 5. Metrics and publishers
	if cfg.MetricsEnabled {
		a.metrics = metrics.New()
	}
	a.multi = publish.NewMulti(a.metrics, log.Zerolog())
	if cfg.Kafka.Enabled {
		kp, err := publish.NewKafkaPublisher(cfg.Kafka, log.Zerolog())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		a.multi.Add(kp)
		a.closers = append(a.closers, kp.Close)
	}
	if cfg.WebhookURL != "" {
		a.multi.Add(publish.NewWebhookPublisher(httputil.New(log), cfg.WebhookURL))
	}

	a.orch = brain.NewOrchestrator(a.reader, a.models, a.results, log).
		WithMetrics(a.metrics).
		WithPublisher(a.multi)

	return a, nil
}

func (a *app) pool() *pgxpool.Pool {
	if a.db == nil {
		return nil
	}
	return a.db.Pool
}

func (a *app) loadScenario() error {
	path := scenarioFile
	if path == "" {
		path = a.cfg.ScenarioFile
	}
	if path == "" {
		a.scenario = rgmconfig.Default()
		a.scenario.Scope.HistoryWeeks = a.cfg.HistoryWeeks
		a.scenario.Runtime.Workers = a.cfg.Workers
	} else {
		sc, _, err := rgmconfig.Load(path)
		if err != nil {
			return fmt.Errorf("load scenario: %w", err)
		}
		a.scenario = sc
	}

	for _, w := range rgmconfig.Warn(a.scenario) {
		a.log.WithField("code", w.Code).Warn(w.Message)
	}

	hash, err := rgmconfig.Hash(a.scenario)
	if err != nil {
		return fmt.Errorf("hash scenario: %w", err)
	}
	a.hash = hash
	return nil
}

// runConfig builds the run for the loaded scenario ending at asOf
func (a *app) runConfig(asOf time.Time) (brain.RunConfig, error) {
	sc, err := a.scenario.ToScenarioConfig()
	if err != nil {
		return brain.RunConfig{}, err
	}
	from, to := a.scenario.HistoryWindow(asOf)
	if !a.sampleTo.IsZero() {
		from, to = a.sampleFrom, a.sampleTo
	}
	return brain.RunConfig{
		SKUs:       a.scenario.Scope.SKUs,
		From:       from,
		To:         to,
		Config:     sc,
		ConfigHash: a.hash,
	}, nil
}

// warm loads mirrored fits for the SKUs (whole catalog when empty)
func (a *app) warm(ctx context.Context, skus []string) (int, error) {
	if len(skus) == 0 {
		products, err := a.reader.Products(ctx, nil)
		if err != nil {
			return 0, err
		}
		for _, p := range products {
			skus = append(skus, p.SKU)
		}
	}
	return a.models.Warm(ctx, skus)
}

// Close releases every backend in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.WithError(err).Warn("Close failed")
		}
	}
	a.closers = nil
}
