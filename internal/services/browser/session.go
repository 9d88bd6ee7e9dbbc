// Package browser renders a live listing page with chromedp and bridges its
// DOM mutations to the scanner.
package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/models"
)

// Config holds browser session settings
type Config struct {
	Headless       bool
	NoSandbox      bool
	UserAgent      string
	AcceptLanguage string
	WaitTime       time.Duration
	PollInterval   time.Duration
	StartupTimeout time.Duration
}

// Session is one Chrome tab showing a listing page
type Session struct {
	ctx             context.Context
	cancelBrowser   context.CancelFunc
	cancelAllocator context.CancelFunc
	config          Config
	logger          arbor.ILogger
}

// NewSession launches Chrome and checks it responds
func NewSession(config Config, logger arbor.ILogger) (*Session, error) {
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.StartupTimeout <= 0 {
		config.StartupTimeout = 30 * time.Second
	}

	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.Headless),
		chromedp.Flag("no-sandbox", config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1920, 1080),
	)
	if config.UserAgent != "" {
		allocatorOpts = append(allocatorOpts, chromedp.UserAgent(config.UserAgent))
	}

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			logger.Debug().Msg(fmt.Sprintf(format, args...))
		}),
	)

	testCtx, testCancel := context.WithTimeout(browserCtx, config.StartupTimeout)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("browser failed startup test: %w", err)
	}

	logger.Info().
		Bool("headless", config.Headless).
		Dur("poll_interval", config.PollInterval).
		Msg("Browser session started")

	return &Session{
		ctx:             browserCtx,
		cancelBrowser:   browserCancel,
		cancelAllocator: allocatorCancel,
		config:          config,
		logger:          logger,
	}, nil
}

// Open navigates to url, starts the mutation bridge and returns the rendered
// document with every tracked element carrying a node key
func (s *Session) Open(url string) (*goquery.Document, error) {
	var html string

	actions := []chromedp.Action{
		network.Enable(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(BridgeScript()).Do(ctx)
			return err
		}),
	}
	if s.config.AcceptLanguage != "" {
		actions = append(actions, network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": s.config.AcceptLanguage,
		}))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.config.WaitTime),
		chromedp.Evaluate(startExpression, &html),
	)

	if err := chromedp.Run(s.ctx, actions...); err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", url, err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse rendered page: %w", err)
	}

	s.logger.Info().
		Str("url", url).
		Int("html_len", len(html)).
		Msg("Listing page rendered")

	return doc, nil
}

// Watch drains the page's mutation queue every poll interval and forwards
// non-empty batches until ctx is cancelled. The channel is closed on return.
func (s *Session) Watch(ctx context.Context, mutations chan<- models.Mutation) error {
	defer close(mutations)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		var raw string
		if err := chromedp.Run(s.ctx, chromedp.Evaluate(drainExpression, &raw)); err != nil {
			return fmt.Errorf("failed to drain page mutations: %w", err)
		}

		batch, err := decodeBatch(raw)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed mutation batch")
			continue
		}
		if batch.Empty() {
			continue
		}

		select {
		case mutations <- batch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close shuts the browser down
func (s *Session) Close() error {
	s.cancelBrowser()
	s.cancelAllocator()
	s.logger.Debug().Msg("Browser session closed")
	return nil
}
