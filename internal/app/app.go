package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/httpclient"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/services/browser"
	"github.com/ternarybob/soldby/internal/services/cache"
	"github.com/ternarybob/soldby/internal/services/events"
	"github.com/ternarybob/soldby/internal/services/extractor"
	"github.com/ternarybob/soldby/internal/services/fetcher"
	"github.com/ternarybob/soldby/internal/services/product"
	"github.com/ternarybob/soldby/internal/services/schedule"
	"github.com/ternarybob/soldby/internal/services/seller"
	"github.com/ternarybob/soldby/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	ctx       context.Context
	cancelCtx context.CancelFunc

	// Storage
	CacheStore   interfaces.CacheStore
	CacheService *cache.Service

	// Pipeline
	Fetcher         *fetcher.Client
	Extractor       *extractor.Extractor
	ProductResolver *product.Resolver
	SellerResolver  *seller.Resolver

	// App-wide events (scan completion)
	EventService interfaces.EventService

	// Scheduled rescans, nil until StartSchedule
	Rescans *schedule.Scheduler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		Config:    cfg,
		Logger:    logger,
		ctx:       ctx,
		cancelCtx: cancel,
	}

	if err := app.initStorage(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		cancel()
		app.CacheStore.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

func (a *App) initStorage() error {
	store, err := storage.NewCacheStore(a.Logger, &a.Config.Storage)
	if err != nil {
		return fmt.Errorf("failed to create cache store: %w", err)
	}
	a.CacheStore = store

	a.CacheService = cache.NewService(store, a.Logger,
		cache.WithTTLs(
			common.ParseDuration(a.Config.Cache.ProductTTL, cache.DefaultProductTTL),
			common.ParseDuration(a.Config.Cache.SellerTTL, cache.DefaultSellerTTL),
		),
		cache.WithContext(a.ctx),
	)
	return nil
}

func (a *App) initServices() error {
	httpClient, err := httpclient.NewSessionHTTPClient(common.ParseDuration(a.Config.Fetch.Timeout, 0))
	if err != nil {
		return err
	}

	a.Fetcher = fetcher.NewClient(
		fetcher.WithHTTPClient(httpClient),
		fetcher.WithLogger(a.Logger),
		fetcher.WithRateLimit(a.Config.Fetch.RequestsPerSecond, a.Config.Fetch.Burst),
		fetcher.WithHeaders(a.Config.Fetch.UserAgent, a.Config.Fetch.AcceptLanguage),
	)

	a.Extractor = extractor.NewExtractor(a.Logger)
	a.ProductResolver = product.NewResolver(a.CacheService, a.Fetcher, a.Config.Site.BaseURL, a.Logger)
	a.SellerResolver = seller.NewResolver(a.CacheService, a.Fetcher, a.Config.Site.BaseURL, a.Logger)

	a.EventService = events.NewService(a.Logger)
	if err := a.EventService.Subscribe(interfaces.EventScanCompleted, events.NewLoggerSubscriber(a.Logger)); err != nil {
		return fmt.Errorf("failed to subscribe scan logger: %w", err)
	}
	return nil
}

// BrowserConfig converts the browser and fetch sections into session settings
func (a *App) BrowserConfig() browser.Config {
	userAgent := a.Config.Browser.UserAgent
	if userAgent == "" {
		userAgent = a.Config.Fetch.UserAgent
	}
	return browser.Config{
		Headless:       a.Config.Browser.Headless,
		NoSandbox:      a.Config.Browser.NoSandbox,
		UserAgent:      userAgent,
		AcceptLanguage: a.Config.Fetch.AcceptLanguage,
		WaitTime:       common.ParseDuration(a.Config.Browser.WaitTime, 2*time.Second),
		PollInterval:   common.ParseDuration(a.Config.Browser.PollInterval, 500*time.Millisecond),
	}
}

// Close stops background work and releases the cache store
func (a *App) Close() error {
	if a.Rescans != nil {
		a.Rescans.Stop()
	}

	// Let in-flight refreshes write their results before the store closes
	a.CacheService.Wait()

	if a.cancelCtx != nil {
		a.cancelCtx()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if err := a.CacheStore.Close(); err != nil {
		return fmt.Errorf("failed to close cache store: %w", err)
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
