// Package report collects terminal product states and renders them.
package report

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
)

// Summary counts products by outcome
type Summary struct {
	Total       int `json:"total" yaml:"total"`
	Resolved    int `json:"resolved" yaml:"resolved"`
	Unresolved  int `json:"unresolved" yaml:"unresolved"`
	Blocked     int `json:"blocked" yaml:"blocked"`
	FirstParty  int `json:"first_party" yaml:"first_party"`
	ThirdParty  int `json:"third_party" yaml:"third_party"`
	Unknown     int `json:"unknown" yaml:"unknown"`
	Highlighted int `json:"highlighted" yaml:"highlighted"`
}

// Report is one rendered scan
type Report struct {
	SessionID   string           `json:"session_id" yaml:"session_id"`
	Source      string           `json:"source" yaml:"source"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Summary     Summary          `json:"summary" yaml:"summary"`
	Products    []models.Product `json:"products" yaml:"products"`
}

// Collector is a presentation sink that keeps the latest state of every product
type Collector struct {
	mu       sync.Mutex
	order    []string
	products map[string]models.Product
	logger   arbor.ILogger
}

var _ interfaces.PresentationSink = (*Collector)(nil)

// NewCollector creates an empty collector
func NewCollector(logger arbor.ILogger) *Collector {
	return &Collector{
		products: make(map[string]models.Product),
		logger:   logger,
	}
}

// OnProductStateChanged records product, replacing any earlier state for the same element
func (c *Collector) OnProductStateChanged(ctx context.Context, product models.Product) error {
	key := product.NodeKey
	if key == "" {
		key = product.Identifier
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.products[key]; !seen {
		c.order = append(c.order, key)
	}
	c.products[key] = product
	return nil
}

// Products returns the collected products in arrival order
func (c *Collector) Products() []models.Product {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Product, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.products[key])
	}
	return out
}

// Build assembles a report. Products are ordered by identifier.
func (c *Collector) Build(sessionID, source string, now time.Time) Report {
	products := c.Products()
	sort.SliceStable(products, func(i, j int) bool {
		return products[i].Identifier < products[j].Identifier
	})

	report := Report{
		SessionID:   sessionID,
		Source:      source,
		GeneratedAt: now,
		Summary:     Summarize(products),
		Products:    products,
	}

	c.logger.Debug().
		Str("session_id", sessionID).
		Int("products", report.Summary.Total).
		Int("highlighted", report.Summary.Highlighted).
		Msg("Built scan report")

	return report
}

// Summarize counts outcomes
func Summarize(products []models.Product) Summary {
	var s Summary
	for _, p := range products {
		s.Total++
		switch p.State {
		case models.StateResolved:
			s.Resolved++
		case models.StateUnresolved:
			s.Unresolved++
		case models.StateBlocked:
			s.Blocked++
		}
		switch p.Seller.Kind {
		case models.SellerFirstParty:
			s.FirstParty++
		case models.SellerThirdParty:
			s.ThirdParty++
		default:
			s.Unknown++
		}
		if p.Highlight {
			s.Highlighted++
		}
	}
	return s
}
