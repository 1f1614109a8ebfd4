// Package app wires configured backends into the assignment service.
// The server, the worker and skuctl share it.
package app

import (
	"context"
	"fmt"

	"skuforge/internal/config"
	"skuforge/internal/core/idempotency"
	coreseq "skuforge/internal/core/sequence"
	"skuforge/internal/core/sku"
	"skuforge/internal/domain/assignment"
	"skuforge/internal/domain/auth"
	v1 "skuforge/internal/infrastructure/http/v1"
	"skuforge/internal/infrastructure/http/v1/handlers"
	"skuforge/internal/infrastructure/sequence"
	"skuforge/internal/infrastructure/shopify"
	"skuforge/internal/infrastructure/storage/memory"
	"skuforge/internal/infrastructure/storage/postgres"
	"skuforge/internal/infrastructure/storage/postgres/catalog_repo"
	"skuforge/pkg/logger"
)

// Catalog is a catalog backend that can also list backfill candidates.
type Catalog interface {
	assignment.CatalogClient
	assignment.ItemLister
}

// App holds the wired components.
type App struct {
	Config *config.Config
	Log    *logger.Logger

	// Set when a postgres backend is configured
	Pool      *postgres.Pool
	TxManager *postgres.TxManager
	Products  *catalog_repo.ProductRepo
	Journal   *postgres.Journal

	// Set when a shopify backend is configured
	Shopify *shopify.Client

	Store       coreseq.Store
	Allocator   *sequence.Allocator
	Catalog     Catalog
	Formatter   sku.Formatter
	Service     *assignment.Service
	Idempotency idempotency.Store
	Sessions    *auth.SessionValidator
}

// New connects the configured backends. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:    cfg,
		Log:       log,
		Formatter: sku.NewFormatter(cfg.FormatVersion()),
	}

	if cfg.UsesPostgres() {
		if err := a.connectPostgres(ctx); err != nil {
			return nil, err
		}
	}
	if cfg.UsesShopify() {
		client, err := shopify.NewClient(shopify.Config{
			ShopDomain:  cfg.Shopify.ShopDomain,
			AccessToken: cfg.Shopify.AccessToken,
			APIVersion:  cfg.Shopify.APIVersion,
			Endpoint:    cfg.Shopify.Endpoint,
			Timeout:     cfg.Shopify.Timeout,
			MaxRetries:  cfg.Shopify.MaxRetries,
		}, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Shopify = client
	}

	if err := a.wireSequence(); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.wireCatalog(); err != nil {
		a.Close()
		return nil, err
	}

	svcCfg := assignment.ServiceConfig{
		Catalog:     a.Catalog,
		Allocator:   a.Allocator,
		Formatter:   a.Formatter,
		Concurrency: cfg.Assign.Concurrency,
		Logger:      log,
	}
	if a.Journal != nil {
		svcCfg.Journal = a.Journal
	}
	a.Service = assignment.NewService(svcCfg)

	if cfg.Idempotency.Enabled {
		if a.TxManager != nil {
			a.Idempotency = postgres.NewIdempotencyStore(a.TxManager, cfg.Idempotency.TTL)
		} else {
			a.Idempotency = memory.NewIdempotencyStore(cfg.Idempotency.TTL)
		}
	}

	if cfg.Auth.Enabled {
		a.Sessions = auth.NewSessionValidator(auth.SessionConfig{
			APIKey:    cfg.Auth.APIKey,
			APISecret: cfg.Auth.APISecret,
			Leeway:    cfg.Auth.Leeway,
		})
	}

	log.Infow("application wired",
		"sequence_backend", cfg.Sequence.Backend,
		"catalog_backend", cfg.Catalog.Backend,
		"format", a.Formatter.Version().String(),
		"journal", a.Journal != nil,
		"idempotency", a.Idempotency != nil,
		"auth", a.Sessions != nil,
	)
	return a, nil
}

func (a *App) connectPostgres(ctx context.Context) error {
	poolCfg := postgres.DefaultPoolConfig(a.Config.Database.URL)
	poolCfg.MaxConns = a.Config.Database.MaxConns
	poolCfg.MinConns = a.Config.Database.MinConns
	poolCfg.MaxConnLifetime = a.Config.Database.MaxConnLifetime
	poolCfg.MaxConnIdleTime = a.Config.Database.MaxConnIdleTime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	a.Pool = pool
	a.TxManager = postgres.NewTxManager(pool)

	if a.Config.Database.EnsureSchema {
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return fmt.Errorf("ensure schema: %w", err)
		}
	}

	journal, err := postgres.NewJournal(a.TxManager, a.Config.Journal.CompressThreshold)
	if err != nil {
		pool.Close()
		return err
	}
	a.Journal = journal
	a.Products = catalog_repo.NewProductRepo(a.TxManager)

	postgres.LogPoolStats(logger.WithLogger(ctx, a.Log), pool)
	return nil
}

func (a *App) wireSequence() error {
	cfg := a.Config.Sequence
	seqCfg := coreseq.Config{
		Namespace:       cfg.Namespace,
		KeyPrefix:       cfg.KeyPrefix,
		Initial:         cfg.Initial,
		AtomicIncrement: cfg.Atomic,
	}

	switch cfg.Backend {
	case config.BackendMemory:
		a.Store = memory.NewSequenceStore()
	case config.BackendPostgres:
		a.Store = postgres.NewSequenceStore(a.Pool, cfg.Namespace)
	case config.BackendShopify:
		a.Store = shopify.NewMetafieldStore(a.Shopify, cfg.Namespace)
	default:
		return fmt.Errorf("unknown sequence backend %q", cfg.Backend)
	}

	a.Allocator = sequence.NewAllocator(a.Store, seqCfg, a.Log)
	return nil
}

func (a *App) wireCatalog() error {
	switch a.Config.Catalog.Backend {
	case config.BackendMemory:
		a.Catalog = memory.NewCatalog()
	case config.BackendPostgres:
		a.Catalog = a.Products
	case config.BackendShopify:
		a.Catalog = shopify.NewCatalog(a.Shopify)
	default:
		return fmt.Errorf("unknown catalog backend %q", a.Config.Catalog.Backend)
	}
	return nil
}

// RouterConfig returns the HTTP router dependencies.
func (a *App) RouterConfig() v1.RouterConfig {
	cfg := v1.RouterConfig{
		Mode:            a.Config.Server.Mode,
		Logger:          a.Log,
		Assigner:        a.Service,
		Formatter:       a.Formatter,
		Idempotency:     a.Idempotency,
		ReadinessChecks: map[string]handlers.Pinger{},
	}
	if a.Journal != nil {
		cfg.History = a.Journal
	}
	if a.Sessions != nil {
		cfg.SessionValidator = a.Sessions
	}
	if a.TxManager != nil {
		cfg.ReadinessChecks["database"] = a.TxManager
	}
	return cfg
}

// Close releases connections.
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
