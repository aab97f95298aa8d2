// Package icon implements the icon read and update path shared by the HTTP
// API and the MQTT command relay.
package icon

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/streamdeck-api/internal/button"
	"github.com/nerrad567/streamdeck-api/internal/deck"
)

// Buttons is the registry view the service needs.
type Buttons interface {
	GetByUUID(ctx context.Context, uuid string) (*button.Button, error)
	Put(ctx context.Context, slot int, b button.Button) error
}

// Writer pushes an icon to the deck owning slot.
type Writer interface {
	WriteIcon(ctx context.Context, slot int, svg string) error
}

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service reads and replaces button icons.
type Service struct {
	buttons Buttons
	writer  Writer
	logger  Logger

	// mu serializes updates so device and registry see them in one order.
	mu sync.Mutex

	changeMu sync.RWMutex
	onChange func(ctx context.Context)
}

// NewService creates an icon service. writer may be nil when no decks
// are managed, in which case updates only reach the registry.
func NewService(buttons Buttons, writer Writer) *Service {
	return &Service{buttons: buttons, writer: writer, logger: noopLogger{}}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetOnChange registers fn to run after every successful update.
func (s *Service) SetOnChange(fn func(ctx context.Context)) {
	s.changeMu.Lock()
	s.onChange = fn
	s.changeMu.Unlock()
}

// Get returns the current SVG of the button with uuid.
func (s *Service) Get(ctx context.Context, uuid string) (string, error) {
	b, err := s.lookup(ctx, uuid)
	if err != nil {
		return "", err
	}
	return b.SVG, nil
}

// Set validates svg, writes it to the owning deck and stores it.
//
// Errors wrap ErrUnknownButton, ErrNotSVG or ErrRender for caller mistakes;
// in those cases nothing is changed. An offline deck does not fail the
// update: the icon is stored and painted when the deck returns.
func (s *Service) Set(ctx context.Context, uuid, svg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.lookup(ctx, uuid)
	if err != nil {
		return err
	}
	if !IsSVG(svg) {
		return fmt.Errorf("%w: button %s", ErrNotSVG, uuid)
	}

	if s.writer != nil {
		err := s.writer.WriteIcon(ctx, b.Slot, svg)
		switch {
		case err == nil:
		case errors.Is(err, deck.ErrRender):
			return fmt.Errorf("%w: %v", ErrRender, err)
		default:
			s.logger.Warn("icon not written to device",
				"uuid", uuid,
				"slot", b.Slot,
				"error", err,
			)
		}
	}

	b.SVG = svg
	if err := s.buttons.Put(ctx, b.Slot, *b); err != nil {
		return fmt.Errorf("storing icon of %s: %w", uuid, err)
	}

	s.logger.Info("icon updated", "uuid", uuid, "slot", b.Slot, "bytes", len(svg))

	s.changeMu.RLock()
	fn := s.onChange
	s.changeMu.RUnlock()
	if fn != nil {
		fn(ctx)
	}
	return nil
}

func (s *Service) lookup(ctx context.Context, uuid string) (*button.Button, error) {
	b, err := s.buttons.GetByUUID(ctx, uuid)
	if errors.Is(err, button.ErrButtonNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownButton, uuid)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", uuid, err)
	}
	return b, nil
}
