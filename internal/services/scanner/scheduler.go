// Package scanner finds unprocessed product elements in a listing document
// and dispatches each one into the resolver pipeline exactly once.
package scanner

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
	"github.com/ternarybob/soldby/internal/services/extractor"
)

const resultsBuffer = 256

// Scheduler owns a listing document. Scan, Run and every document access
// happen on one goroutine; pipeline goroutines only send updates back.
type Scheduler struct {
	doc       *goquery.Document
	extractor *extractor.Extractor
	products  interfaces.ProductResolver
	sellers   interfaces.SellerResolver
	events    interfaces.EventService
	logger    arbor.ILogger

	locale         string
	baseURL        string
	waitRefreshes  func()
	ctx            context.Context
	results        chan models.PipelineUpdate
	idleRequests   chan chan struct{}
	pending        int
	idleWaiters    []chan struct{}
	dispatchedEver int
}

// Option configures the Scheduler
type Option func(*Scheduler)

// WithLocale overrides the locale read from <html lang>
func WithLocale(locale string) Option {
	return func(s *Scheduler) {
		if locale != "" {
			s.locale = strings.ToLower(locale)
		}
	}
}

// WithBaseURL sets the storefront used to build seller profile links
func WithBaseURL(baseURL string) Option {
	return func(s *Scheduler) {
		s.baseURL = baseURL
	}
}

// WithRefreshWaiter makes Wait also block on background cache refreshes
func WithRefreshWaiter(wait func()) Option {
	return func(s *Scheduler) {
		s.waitRefreshes = wait
	}
}

// NewScheduler creates a scheduler over doc. Terminal product states are
// published on events as EventProductStateChanged.
func NewScheduler(
	doc *goquery.Document,
	ext *extractor.Extractor,
	products interfaces.ProductResolver,
	sellers interfaces.SellerResolver,
	events interfaces.EventService,
	logger arbor.ILogger,
	opts ...Option,
) *Scheduler {
	s := &Scheduler{
		doc:          doc,
		extractor:    ext,
		products:     products,
		sellers:      sellers,
		events:       events,
		logger:       logger,
		locale:       PageLocale(doc),
		ctx:          context.Background(),
		results:      make(chan models.PipelineUpdate, resultsBuffer),
		idleRequests: make(chan chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PageLocale returns the lowercased lang attribute of the document root
func PageLocale(doc *goquery.Document) string {
	lang, _ := doc.Find("html").First().Attr("lang")
	return strings.ToLower(strings.TrimSpace(lang))
}

// Locale returns the locale used for rating parsing
func (s *Scheduler) Locale() string {
	return s.locale
}

// Scan tags containers, marks every unmarked product pending and dispatches
// it. Marking completes before any pipeline goroutine starts, so a second
// scan of the same document dispatches nothing. Returns the number dispatched.
func (s *Scheduler) Scan() int {
	s.extractor.TagContainers(s.doc.Selection)

	var marked []*goquery.Selection
	s.doc.Find(ProductSelector()).Each(func(_ int, el *goquery.Selection) {
		if _, ok := el.Attr(AttrNode); !ok {
			el.SetAttr(AttrNode, common.NewNodeKey())
		}
		el.SetAttr(AttrSellerName, models.LoadingName)
		el.SetAttr(AttrState, string(models.StatePending))
		marked = append(marked, el)
	})

	for _, el := range marked {
		key, _ := el.Attr(AttrNode)
		asin, _ := el.Attr(extractor.AttrIdentifier)
		s.dispatch(key, asin)
	}

	if len(marked) > 0 {
		s.logger.Debug().
			Int("dispatched", len(marked)).
			Int("in_flight", s.pending).
			Msg("Scan dispatched products")
	}
	return len(marked)
}

func (s *Scheduler) dispatch(key, asin string) {
	s.pending++
	s.dispatchedEver++
	ctx := s.ctx

	common.SafeGo(nil, s.logger, "pipeline:"+asin, func() {
		s.send(ctx, s.resolve(ctx, key, asin))
	}, func(recovered interface{}) {
		s.send(ctx, terminal(models.Product{
			NodeKey:    key,
			Identifier: asin,
			State:      models.StateUnresolved,
			Seller:     models.UnknownSeller(),
			Message:    fmt.Sprintf("pipeline panic: %v", recovered),
		}))
	})
}

func (s *Scheduler) send(ctx context.Context, update models.PipelineUpdate) {
	select {
	case s.results <- update:
	case <-ctx.Done():
	}
}

// Run scans once, then applies mutation batches and pipeline updates until
// ctx is cancelled. A nil or closed mutations channel leaves Run serving
// pipeline updates only.
func (s *Scheduler) Run(ctx context.Context, mutations <-chan models.Mutation) error {
	s.ctx = ctx
	s.Scan()

	for {
		select {
		case <-ctx.Done():
			for _, waiter := range s.idleWaiters {
				close(waiter)
			}
			s.idleWaiters = nil
			return ctx.Err()

		case mutation, ok := <-mutations:
			if !ok {
				mutations = nil
				continue
			}
			if mutation.Empty() {
				continue
			}
			s.ApplyMutation(mutation)
			s.Scan()

		case update := <-s.results:
			s.apply(update)

		case reply := <-s.idleRequests:
			if s.pending == 0 {
				close(reply)
				continue
			}
			s.idleWaiters = append(s.idleWaiters, reply)
		}
	}
}

// ApplyMutation removes departed elements and appends inserted fragments to
// body. A node key lives on at most one element: an inserted element whose key
// is already in the document is dropped, and an element removed and re-inserted
// in the same batch keeps the marks it carried, so neither is dispatched again.
func (s *Scheduler) ApplyMutation(mutation models.Mutation) {
	// marks are read before anything is removed so nested keys keep theirs
	moved := make(map[string]*ownedMarks, len(mutation.Removed))
	for _, key := range mutation.Removed {
		if el := s.doc.Find(nodeSelector(key)); el.Length() > 0 {
			moved[key] = marksOf(el.First())
		}
	}
	for _, key := range mutation.Removed {
		s.doc.Find(nodeSelector(key)).Remove()
	}

	present := make(map[string]bool)
	s.doc.Find("[" + AttrNode + "]").Each(func(_ int, el *goquery.Selection) {
		key, _ := el.Attr(AttrNode)
		present[key] = true
	})

	body := s.doc.Find("body").First()
	if body.Length() == 0 {
		body = s.doc.Selection
	}

	duplicates := 0
	for _, fragment := range mutation.Added {
		before := body.Children().Length()
		body.AppendHtml(fragment)
		inserted := body.Children().Slice(before, goquery.ToEnd)

		keyed := inserted.Filter("[" + AttrNode + "]").AddSelection(inserted.Find("[" + AttrNode + "]"))
		keyed.Each(func(_ int, el *goquery.Selection) {
			if el.ParentsFiltered("html").Length() == 0 {
				// inside an element dropped earlier in this fragment
				return
			}
			key, _ := el.Attr(AttrNode)
			if present[key] {
				el.Remove()
				duplicates++
				return
			}
			present[key] = true
			if marks, ok := moved[key]; ok {
				marks.restore(el)
			}
		})
	}

	s.logger.Debug().
		Int("added", len(mutation.Added)).
		Int("removed", len(mutation.Removed)).
		Int("duplicates", duplicates).
		Msg("Applied page mutation")
}

// ownedMarks are the scanner-owned attributes of one element
type ownedMarks struct {
	attrs     map[string]string
	highlight bool
}

var ownedAttrs = []string{AttrSellerName, AttrSellerID, AttrCountry, AttrRatingScore, AttrRatingCount, AttrState}

func marksOf(el *goquery.Selection) *ownedMarks {
	marks := &ownedMarks{attrs: make(map[string]string), highlight: el.HasClass(HighlightClass)}
	for _, name := range ownedAttrs {
		if value, ok := el.Attr(name); ok {
			marks.attrs[name] = value
		}
	}
	return marks
}

func (m *ownedMarks) restore(el *goquery.Selection) {
	for name, value := range m.attrs {
		el.SetAttr(name, value)
	}
	if m.highlight {
		el.AddClass(HighlightClass)
	}
}

// apply writes an update onto its element. Updates for elements that have
// left the document are dropped.
func (s *Scheduler) apply(update models.PipelineUpdate) {
	if update.Terminal {
		defer s.settle()
	}

	el := s.doc.Find(nodeSelector(update.NodeKey))
	if el.Length() == 0 {
		s.logger.Debug().
			Str("asin", update.Product.Identifier).
			Msg("Discarding result for detached element")
		return
	}

	product := update.Product
	for name, value := range Attributes(product) {
		el.SetAttr(name, value)
	}
	if product.Highlight {
		el.AddClass(HighlightClass)
	}

	if !update.Terminal {
		return
	}

	if err := s.events.PublishSync(s.ctx, interfaces.Event{
		Type:    interfaces.EventProductStateChanged,
		Payload: product,
	}); err != nil {
		s.logger.Warn().Err(err).Str("asin", product.Identifier).Msg("Presentation sink failed")
	}
}

func (s *Scheduler) settle() {
	s.pending--
	if s.pending > 0 {
		return
	}
	for _, waiter := range s.idleWaiters {
		close(waiter)
	}
	s.idleWaiters = nil
}

// Wait blocks until every dispatched product reached a terminal state and
// background cache refreshes finished. It requires Run to be active.
func (s *Scheduler) Wait(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case s.idleRequests <- reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
	case <-ctx.Done():
		return ctx.Err()
	}
	// Run closes outstanding replies when it stops
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.waitRefreshes == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		s.waitRefreshes()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dispatched returns how many products this scheduler has dispatched.
// Only safe on the owning goroutine or after Run has returned.
func (s *Scheduler) Dispatched() int {
	return s.dispatchedEver
}

// Document returns the owned document. Only safe on the owning goroutine
// or after Run has returned.
func (s *Scheduler) Document() *goquery.Document {
	return s.doc
}
