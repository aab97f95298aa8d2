// Package relay mirrors classified button events onto MQTT, accepts icon
// commands from MQTT and announces the server for discovery.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/streamdeck-api/internal/icon"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/mqtt"
	"github.com/nerrad567/streamdeck-api/internal/press"
)

const (
	// DefaultQueueSize bounds events waiting for the broker.
	DefaultQueueSize = 256

	// InfoPath is advertised in the discovery announcement.
	InfoPath = "/sd/info"

	iconCommandTimeout = 10 * time.Second
)

// Broker is the MQTT client surface the relay needs.
type Broker interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	SetAnnouncement(fields map[string]any)
	Topics() mqtt.Topics
	QoS() byte
}

// IconSetter applies icon updates.
type IconSetter interface {
	Set(ctx context.Context, uuid, svg string) error
}

// Announcer advertises where the HTTP API can be reached.
type Announcer interface {
	Announce(host string, port int)
}

// Logger defines the logging interface used by the Relay.
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

// EventMessage is the JSON published for every button event.
type EventMessage struct {
	Event     string `json:"event"`
	UUID      string `json:"uuid"`
	Slot      int    `json:"slot"`
	Device    string `json:"device"`
	Timestamp string `json:"timestamp"`
	HeldMS    int64  `json:"held_ms,omitempty"`
}

// Relay is a press.Sink that forwards events to MQTT from its own
// goroutine, so a slow broker never stalls key handling.
type Relay struct {
	broker Broker
	icons  IconSetter
	logger Logger
	queue  chan press.Event

	mu  sync.RWMutex
	ctx context.Context
}

// New creates a relay. icons may be nil to disable MQTT icon commands.
func New(broker Broker, icons IconSetter, queueSize int) *Relay {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Relay{
		broker: broker,
		icons:  icons,
		logger: noopLogger{},
		queue:  make(chan press.Event, queueSize),
		ctx:    context.Background(),
	}
}

// SetLogger sets the logger for the relay.
func (r *Relay) SetLogger(logger Logger) {
	r.logger = logger
}

// Emit implements press.Sink. The event is dropped when the queue is full.
func (r *Relay) Emit(e press.Event) {
	select {
	case r.queue <- e:
	default:
		r.logger.Warn("mqtt relay queue full, event dropped", "event", e.Kind, "uuid", e.UUID)
	}
}

// Announce implements Announcer.
func (r *Relay) Announce(host string, port int) {
	r.broker.SetAnnouncement(map[string]any{
		"host":      host,
		"port":      port,
		"info_path": InfoPath,
	})
}

// Run subscribes to icon commands and publishes queued events until ctx
// is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	r.ctx = ctx
	r.mu.Unlock()

	if r.icons != nil {
		topic := r.broker.Topics().AllIconSets()
		if err := r.broker.Subscribe(topic, r.broker.QoS(), r.handleIconSet); err != nil {
			return fmt.Errorf("subscribing to %s: %w", topic, err)
		}
		r.logger.Info("listening for icon commands", "topic", topic)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-r.queue:
			r.publish(e)
		}
	}
}

func (r *Relay) publish(e press.Event) {
	msg := EventMessage{
		Event:     string(e.Kind),
		UUID:      e.UUID,
		Slot:      e.Slot,
		Device:    e.DeviceID,
		Timestamp: e.At.UTC().Format(time.RFC3339Nano),
		HeldMS:    e.Held.Milliseconds(),
	}
	topic := r.broker.Topics().Event(e.UUID)
	if err := r.broker.PublishJSON(topic, msg, false); err != nil {
		r.logger.Warn("publishing button event failed", "topic", topic, "error", err)
		return
	}
	r.logger.Debug("button event published", "topic", topic, "event", e.Kind)
}

// handleIconSet applies an SVG received on {prefix}/icon/set/{uuid}.
// Bad commands are logged and dropped.
func (r *Relay) handleIconSet(topic string, payload []byte) error {
	uuid, ok := r.broker.Topics().IconSetUUID(topic)
	if !ok {
		r.logger.Warn("icon command on unexpected topic", "topic", topic)
		return nil
	}

	r.mu.RLock()
	parent := r.ctx
	r.mu.RUnlock()
	ctx, cancel := context.WithTimeout(parent, iconCommandTimeout)
	defer cancel()

	err := r.icons.Set(ctx, uuid, string(payload))
	switch {
	case err == nil:
		r.logger.Info("icon updated over mqtt", "uuid", uuid)
		return nil
	case errors.Is(err, icon.ErrUnknownButton),
		errors.Is(err, icon.ErrNotSVG),
		errors.Is(err, icon.ErrRender):
		r.logger.Warn("icon command rejected", "uuid", uuid, "error", err)
		return nil
	default:
		return fmt.Errorf("applying icon for %s: %w", uuid, err)
	}
}
