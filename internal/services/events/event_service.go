package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/soldby/internal/common"
	"github.com/ternarybob/soldby/internal/interfaces"
)

// ErrClosed is returned by a service that has been closed
var ErrClosed = errors.New("event service closed")

// Service fans product and scan events out to subscribed handlers. Handler
// panics are recovered and reported as handler errors.
type Service struct {
	mu       sync.RWMutex
	handlers map[interfaces.EventType][]interfaces.EventHandler
	closed   bool
	logger   arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		handlers: make(map[interfaces.EventType][]interfaces.EventHandler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event type. Handlers run in
// subscription order for Publish and concurrently for PublishSync.
func (s *Service) Subscribe(eventType interfaces.EventType, handler interfaces.EventHandler) error {
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.handlers[eventType] = append(s.handlers[eventType], handler)

	s.logger.Debug().
		Str("event_type", string(eventType)).
		Int("handlers", len(s.handlers[eventType])).
		Msg("Event handler subscribed")
	return nil
}

func (s *Service) snapshot(eventType interfaces.EventType) ([]interfaces.EventHandler, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return append([]interfaces.EventHandler(nil), s.handlers[eventType]...), nil
}

// Publish delivers event in the background and returns immediately.
// Handler failures are only logged.
func (s *Service) Publish(ctx context.Context, event interfaces.Event) error {
	handlers, err := s.snapshot(event.Type)
	if err != nil {
		return err
	}

	name := "event:" + string(event.Type)
	common.SafeGo(nil, s.logger, name, func() {
		for i, handler := range handlers {
			if err := s.invoke(ctx, event, i, handler); err != nil {
				s.logger.Error().Err(err).Str("event_type", string(event.Type)).Msg("Event handler failed")
			}
		}
	}, nil)
	return nil
}

// PublishSync delivers event to every handler and waits for all of them.
// The returned error joins every handler failure.
func (s *Service) PublishSync(ctx context.Context, event interfaces.Event) error {
	handlers, err := s.snapshot(event.Type)
	if err != nil {
		return err
	}
	if len(handlers) == 0 {
		return nil
	}

	errs := make([]error, len(handlers))
	var wg sync.WaitGroup
	for i, handler := range handlers {
		wg.Add(1)
		go func(i int, handler interfaces.EventHandler) {
			defer wg.Done()
			errs[i] = s.invoke(ctx, event, i, handler)
		}(i, handler)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("Event handlers failed")
		return fmt.Errorf("%s: %w", event.Type, err)
	}
	return nil
}

// invoke runs one handler, turning a panic into an error
func (s *Service) invoke(ctx context.Context, event interfaces.Event, index int, handler interfaces.EventHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler %d panicked: %v", index, r)
		}
	}()
	if err := handler(ctx, event); err != nil {
		return fmt.Errorf("handler %d: %w", index, err)
	}
	return nil
}

// Close drops every handler. Later calls return ErrClosed.
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = make(map[interfaces.EventType][]interfaces.EventHandler)
	s.logger.Debug().Msg("Event service closed")
	return nil
}
