package app

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/browser"
	"github.com/ternarybob/soldby/internal/services/events"
	"github.com/ternarybob/soldby/internal/services/report"
	"github.com/ternarybob/soldby/internal/services/scanner"
	"github.com/ternarybob/soldby/internal/services/schedule"
)

// session is the per-scan event bus with its collector
type session struct {
	id        string
	logger    arbor.ILogger
	bus       interfaces.EventService
	collector *report.Collector
}

func (a *App) newSession(sinks ...interfaces.PresentationSink) (*session, error) {
	id := common.NewSessionID()
	logger := a.Logger.WithCorrelationId(id)

	s := &session{
		id:        id,
		logger:    logger,
		bus:       events.NewService(logger),
		collector: report.NewCollector(logger),
	}

	if err := s.bus.Subscribe(interfaces.EventProductStateChanged, events.NewLoggerSubscriber(logger)); err != nil {
		return nil, err
	}
	for _, sink := range append([]interfaces.PresentationSink{s.collector}, sinks...) {
		if err := events.SubscribeSink(s.bus, sink); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (a *App) newScheduler(doc *goquery.Document, s *session) *scanner.Scheduler {
	return scanner.NewScheduler(doc, a.Extractor, a.ProductResolver, a.SellerResolver, s.bus, s.logger,
		scanner.WithLocale(a.Config.Site.Locale),
		scanner.WithBaseURL(a.Config.Site.BaseURL),
		scanner.WithRefreshWaiter(a.CacheService.Wait),
	)
}

// ScanDocument runs the pipeline over a static document until every product
// is terminal and returns the report
func (a *App) ScanDocument(ctx context.Context, doc *goquery.Document, source string) (report.Report, error) {
	s, err := a.newSession()
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to create scan session: %w", err)
	}
	defer s.bus.Close()

	scheduler := a.newScheduler(doc, s)
	s.logger.Info().Str("source", source).Str("locale", scheduler.Locale()).Msg("Scan started")

	runCtx, stop := context.WithCancel(ctx)
	errCh := make(chan error, 1)
	go func() { errCh <- scheduler.Run(runCtx, nil) }()

	waitErr := scheduler.Wait(ctx)
	stop()
	<-errCh
	if waitErr != nil {
		return report.Report{}, fmt.Errorf("scan of %s interrupted: %w", source, waitErr)
	}

	rep := s.collector.Build(s.id, source, a.CacheService.Now())
	s.logger.Info().
		Str("source", source).
		Int("products", rep.Summary.Total).
		Int("highlighted", rep.Summary.Highlighted).
		Int("blocked", rep.Summary.Blocked).
		Msg("Scan completed")

	if err := a.EventService.Publish(ctx, interfaces.Event{Type: interfaces.EventScanCompleted, Payload: rep.Summary}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to publish scan completion")
	}

	return rep, nil
}

// ScanURL fetches a listing page and scans it
func (a *App) ScanURL(ctx context.Context, url string) (report.Report, error) {
	resp, err := a.Fetcher.Fetch(ctx, url)
	if err != nil {
		return report.Report{}, err
	}
	if !resp.OK() {
		return report.Report{}, fmt.Errorf("listing page %s returned status %d", url, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to parse listing page %s: %w", url, err)
	}
	return a.ScanDocument(ctx, doc, url)
}

// ScanFile scans a saved listing page
func (a *App) ScanFile(ctx context.Context, path string) (report.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return a.ScanDocument(ctx, doc, path)
}

// Watch renders url in Chrome and keeps scanning it as the page mutates,
// writing results back onto the live page. Returns the report when ctx ends.
func (a *App) Watch(ctx context.Context, url string) (report.Report, error) {
	browserSession, err := browser.NewSession(a.BrowserConfig(), a.Logger)
	if err != nil {
		return report.Report{}, err
	}
	defer browserSession.Close()

	doc, err := browserSession.Open(url)
	if err != nil {
		return report.Report{}, err
	}

	s, err := a.newSession(browser.NewAnnotator(browserSession, a.Logger))
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to create watch session: %w", err)
	}
	defer s.bus.Close()

	mutations := make(chan models.Mutation)
	watchErr := make(chan error, 1)
	common.SafeGo(nil, s.logger, "browser-watch", func() {
		watchErr <- browserSession.Watch(ctx, mutations)
	}, nil)

	s.logger.Info().Str("url", url).Msg("Watching listing page")
	if err := a.newScheduler(doc, s).Run(ctx, mutations); err != nil && ctx.Err() == nil {
		return report.Report{}, err
	}

	if err := <-watchErr; err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Msg("Mutation bridge stopped")
	}

	return s.collector.Build(s.id, url, a.CacheService.Now()), nil
}

// StartSchedule rescans the configured URLs on the configured schedule and
// hands every report to write
func (a *App) StartSchedule(write func(report.Report) error) error {
	a.Rescans = schedule.NewScheduler(func(ctx context.Context, url string) error {
		rep, err := a.ScanURL(ctx, url)
		if err != nil {
			return err
		}
		return write(rep)
	}, a.Config.Scan.URLs, common.ParseDuration(a.Config.Scan.Timeout, 0), a.Logger)

	if err := a.Rescans.Start(a.Config.Scan.Schedule); err != nil {
		a.Rescans = nil
		return err
	}
	a.Rescans.RunNow()
	return nil
}

// WriteReport renders rep to the configured output
func (a *App) WriteReport(rep report.Report) error {
	output := a.Config.Report.Output
	if output == "" || output == "-" {
		return report.Write(os.Stdout, a.Config.Report.Format, rep)
	}

	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := report.Write(f, a.Config.Report.Format, rep); err != nil {
		return err
	}

	a.Logger.Info().Str("path", output).Str("format", a.Config.Report.Format).Msg("Report written")
	return nil
}
