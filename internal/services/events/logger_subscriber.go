package events

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/interfaces"
	"github.com/ternarybob/soldby/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs every terminal product state
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.EventHandler {
	return func(ctx context.Context, event interfaces.Event) error {
		product, ok := event.Payload.(models.Product)
		if !ok {
			logger.Debug().Str("event_type", string(event.Type)).Msg("Event published")
			return nil
		}

		message, warn := describeState(product.State)
		logEvent := logger.Info()
		if warn {
			logEvent = logger.Warn()
		}

		logEvent = logEvent.
			Str("asin", product.Identifier).
			Str("state", string(product.State)).
			Str("seller", product.Seller.DisplayName())

		if product.Seller.ID != "" {
			logEvent = logEvent.Str("seller_id", product.Seller.ID)
		}
		if product.Profile != nil {
			logEvent = logEvent.
				Str("country", product.Profile.Country).
				Str("rating_score", product.Profile.Rating.Score).
				Str("rating_count", product.Profile.Rating.Count)
		}
		if product.Highlight {
			logEvent = logEvent.Bool("highlight", true)
		}
		if product.Message != "" {
			logEvent = logEvent.Str("reason", product.Message)
		}

		logEvent.Msg(message)
		return nil
	}
}

// describeState picks the log message for a terminal state and whether it
// deserves a warning
func describeState(state models.ProcessingState) (string, bool) {
	switch state {
	case models.StateBlocked:
		return "Product blocked", true
	case models.StateUnresolved:
		return "Product unresolved", true
	default:
		return "Product resolved", false
	}
}

// SubscribeSink adapts a presentation sink to product state events
func SubscribeSink(eventService interfaces.EventService, sink interfaces.PresentationSink) error {
	handler := func(ctx context.Context, event interfaces.Event) error {
		product, ok := event.Payload.(models.Product)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
		}
		return sink.OnProductStateChanged(ctx, product)
	}

	if err := eventService.Subscribe(interfaces.EventProductStateChanged, handler); err != nil {
		return fmt.Errorf("failed to subscribe sink: %w", err)
	}
	return nil
}
