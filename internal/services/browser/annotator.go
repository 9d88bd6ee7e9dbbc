package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
)

// Annotator is a presentation sink writing product results onto the live page
type Annotator struct {
	session *Session
	logger  arbor.ILogger
}

var _ interfaces.PresentationSink = (*Annotator)(nil)

// NewAnnotator creates an annotator for session
func NewAnnotator(session *Session, logger arbor.ILogger) *Annotator {
	return &Annotator{session: session, logger: logger}
}

// OnProductStateChanged sets the seller attributes on the product's element.
// An element that left the page is skipped.
func (a *Annotator) OnProductStateChanged(ctx context.Context, product models.Product) error {
	if product.NodeKey == "" {
		return nil
	}

	expression, err := AnnotateExpression(product)
	if err != nil {
		return err
	}

	var found bool
	if err := chromedp.Run(a.session.ctx, chromedp.Evaluate(expression, &found)); err != nil {
		return fmt.Errorf("failed to annotate %s: %w", product.Identifier, err)
	}
	if !found {
		a.logger.Debug().Str("asin", product.Identifier).Msg("Live element gone, annotation skipped")
	}
	return nil
}
