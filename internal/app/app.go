// Package app wires configuration into the infrastructure adapters and the
// reconciliation service shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/docrecon/docrecon/config"
	"github.com/docrecon/docrecon/internal/domain"
	"github.com/docrecon/docrecon/internal/infrastructure/cache"
	"github.com/docrecon/docrecon/internal/infrastructure/notify"
	"github.com/docrecon/docrecon/internal/infrastructure/similarity"
	"github.com/docrecon/docrecon/internal/infrastructure/store"
	"github.com/docrecon/docrecon/internal/usecase"
)

// App holds the constructed components. Close releases them in reverse order.
type App struct {
	Store      *store.Store
	Cache      domain.CacheRepository
	Similarity *similarity.Client
	Notifier   domain.RefreshNotifier
	Service    *usecase.ReconciliationService

	closers []func() error
	pingers map[string]func(context.Context) error
	logger  *zap.Logger
}

// New builds every component described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{logger: logger, pingers: make(map[string]func(context.Context) error)}

	st, err := store.Open(ctx, store.Config{
		Driver:       cfg.Store.Driver,
		DSN:          cfg.Store.DSN,
		MaxOpenConns: cfg.Store.MaxOpenConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.Store = st
	a.closers = append(a.closers, st.Close)
	a.pingers["store"] = st.Ping

	if err := a.buildCache(cfg); err != nil {
		_ = a.Close()
		return nil, err
	}

	if cfg.Similarity.BaseURL != "" {
		a.Similarity = similarity.NewClient(similarity.ClientConfig{
			BaseURL:           cfg.Similarity.BaseURL,
			APIKey:            cfg.Similarity.APIKey,
			Timeout:           cfg.Similarity.Timeout,
			RequestsPerSecond: cfg.Similarity.RatePerSecond,
			Burst:             cfg.Similarity.Burst,
			MaxRetries:        cfg.Similarity.MaxRetries,
		}, logger)
		if cfg.Server.Environment == "development" {
			a.Similarity.SetDebug(true)
		}
	}

	if err := a.buildNotifier(cfg); err != nil {
		_ = a.Close()
		return nil, err
	}

	statuses, err := parseInsertStatuses(cfg.Matching.InsertStatuses)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	// A nil *similarity.Client must not become a non-nil interface
	var similarityClient domain.SimilarityClient
	if a.Similarity != nil {
		similarityClient = a.Similarity
	}

	a.Service = usecase.NewReconciliationService(
		st.Catalog(),
		st.PurchaseOrders(),
		a.Cache,
		similarityClient,
		a.Notifier,
		usecase.ReconciliationServiceConfig{
			SnapshotTTL:       cfg.Cache.TTL,
			StoreTimeout:      cfg.Store.Timeout,
			SimilarityTimeout: cfg.Similarity.Timeout,
			RefreshTimeout:    cfg.Refresh.Timeout,
			TopN:              cfg.Matching.TopN,
			InsertStatuses:    statuses,
			EnableFuzzy:       cfg.Matching.EnableFuzzy,
		},
		logger,
	)

	logger.Info("components ready",
		zap.String("store", st.Driver()),
		zap.String("cache", cfg.Cache.Type),
		zap.Bool("vector_tier", a.Similarity != nil),
		zap.Bool("fuzzy_tier", cfg.Matching.EnableFuzzy),
		zap.String("refresh_mode", cfg.Refresh.Mode))

	return a, nil
}

func (a *App) buildCache(cfg *config.Config) error {
	switch cfg.Cache.Type {
	case "redis":
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:      cfg.Cache.RedisAddr,
			Password:  cfg.Cache.RedisPassword,
			DB:        cfg.Cache.RedisDB,
			KeyPrefix: cfg.Cache.KeyPrefix,
		}, a.logger)
		if err != nil {
			return err
		}
		a.Cache = rc
		a.closers = append(a.closers, rc.Close)
		a.pingers["cache"] = rc.Ping
	default:
		mc := cache.NewMemoryCache()
		a.Cache = mc
		a.closers = append(a.closers, mc.Close)
	}
	return nil
}

func (a *App) buildNotifier(cfg *config.Config) error {
	var httpNotifier, kafkaNotifier domain.RefreshNotifier

	if cfg.Refresh.Mode == "http" || cfg.Refresh.Mode == "both" {
		if a.Similarity == nil {
			return fmt.Errorf("refresh mode %q needs a similarity base URL", cfg.Refresh.Mode)
		}
		httpNotifier = a.Similarity
	}

	if cfg.Refresh.Mode == "kafka" || cfg.Refresh.Mode == "both" {
		kn, err := notify.NewKafkaNotifier(notify.KafkaConfig{
			Brokers:      cfg.Refresh.KafkaBrokers,
			Topic:        cfg.Refresh.KafkaTopic,
			RequiredAcks: 1,
			Compression:  cfg.Refresh.KafkaCompression,
		}, a.logger)
		if err != nil {
			return err
		}
		kafkaNotifier = kn
		a.closers = append(a.closers, kn.Close)
	}

	a.Notifier = notify.NewFanout(httpNotifier, kafkaNotifier)
	return nil
}

// HealthChecks returns a ping per remote component, keyed by component name
func (a *App) HealthChecks() map[string]func(context.Context) error {
	checks := make(map[string]func(context.Context) error, len(a.pingers))
	for name, ping := range a.pingers {
		checks[name] = ping
	}
	return checks
}

// Close releases every component, newest first
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func parseInsertStatuses(values []string) ([]domain.MatchStatus, error) {
	statuses := make([]domain.MatchStatus, 0, len(values))
	for _, v := range values {
		status, ok := domain.ParseMatchStatus(v)
		if !ok || status == domain.StatusAlreadyExists {
			return nil, fmt.Errorf("%w: insert status %q", domain.ErrInvalidRequest, v)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}
