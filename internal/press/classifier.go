package press

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/streamdeck-api/internal/button"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// DefaultLongPress is the hold time separating a tap from a long press.
const DefaultLongPress = 2 * time.Second

// stateTimeout bounds state store access from timer goroutines.
const stateTimeout = 5 * time.Second

// Buttons is the subset of the button registry the classifier needs.
type Buttons interface {
	Get(ctx context.Context, slot int) (*button.Button, error)
	GetState(ctx context.Context, slot int) (*button.State, error)
	PutState(ctx context.Context, slot int, pressed bool, at time.Time) error
	ClearStates(ctx context.Context) error
}

// LiveState reads the current hardware state of a key. An error means the
// state could not be read (device gone, slot unknown).
type LiveState interface {
	IsPressed(slot int) (bool, error)
}

// Logger defines the logging interface used by the Classifier.
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

// pending is an armed long-press check for one slot.
type pending struct {
	timer     *time.Timer
	uuid      string
	deviceID  string
	pressedAt time.Time
}

// Classifier turns raw key transitions into keyDown, keyUp, singleTap and
// longPress events.
//
// Each slot is Idle or Pressed. A press emits keyDown and arms a single
// long-press check; a release emits keyUp, plus singleTap when the
// matching press is known and shorter than the threshold. Every
// transition is persisted through Buttons before HandleKey returns.
//
// Safe for concurrent use.
type Classifier struct {
	buttons   Buttons
	sink      Sink
	live      LiveState
	threshold time.Duration
	logger    Logger

	mu      sync.Mutex
	pending map[int]*pending
	closed  bool
}

// NewClassifier creates a classifier that emits to sink. A non-positive
// threshold selects DefaultLongPress.
func NewClassifier(buttons Buttons, sink Sink, threshold time.Duration) *Classifier {
	if threshold <= 0 {
		threshold = DefaultLongPress
	}
	return &Classifier{
		buttons:   buttons,
		sink:      sink,
		threshold: threshold,
		logger:    noopLogger{},
		pending:   make(map[int]*pending),
	}
}

// SetLogger sets the logger for the classifier.
func (c *Classifier) SetLogger(logger Logger) {
	c.logger = logger
}

// SetLiveState sets the hardware state reader consulted when a long-press
// check fires. Without one, the check falls back to the persisted state.
func (c *Classifier) SetLiveState(live LiveState) {
	c.mu.Lock()
	c.live = live
	c.mu.Unlock()
}

// Threshold returns the long-press threshold.
func (c *Classifier) Threshold() time.Duration {
	return c.threshold
}

// Reset cancels pending checks and discards persisted press states. Called
// once at startup.
func (c *Classifier) Reset(ctx context.Context) error {
	c.stopAll()
	return c.buttons.ClearStates(ctx)
}

// Close cancels pending long-press checks. Later transitions are ignored.
func (c *Classifier) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.stopAll()
}

func (c *Classifier) stopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for slot, p := range c.pending {
		p.timer.Stop()
		delete(c.pending, slot)
	}
}

// HandleKey classifies one transition of slot observed at time at.
// Transitions for slots without a button record are logged and dropped.
func (c *Classifier) HandleKey(ctx context.Context, slot int, pressed bool, at time.Time) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}

	b, err := c.buttons.Get(ctx, slot)
	if err != nil {
		c.logger.Warn("key event for unknown slot dropped", "slot", slot, "pressed", pressed, "error", err)
		return
	}

	if pressed {
		c.press(ctx, b, at)
	} else {
		c.release(ctx, b, at)
	}
}

func (c *Classifier) press(ctx context.Context, b *button.Button, at time.Time) {
	c.persist(ctx, b.Slot, true, at)
	c.emit(protocol.EventKeyDown, b, at, 0)

	delay := c.threshold - time.Since(at)
	if delay < 0 {
		delay = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	if old, ok := c.pending[b.Slot]; ok {
		// Press without a release: replace, don't stack.
		old.timer.Stop()
		c.logger.Debug("replacing pending long-press check", "slot", b.Slot)
	}
	p := &pending{uuid: b.UUID, deviceID: b.DeviceID, pressedAt: at}
	p.timer = time.AfterFunc(delay, func() { c.fire(b.Slot, p) })
	c.pending[b.Slot] = p
}

func (c *Classifier) release(ctx context.Context, b *button.Button, at time.Time) {
	c.mu.Lock()
	if p, ok := c.pending[b.Slot]; ok {
		p.timer.Stop()
		delete(c.pending, b.Slot)
	}
	c.mu.Unlock()

	prev, err := c.buttons.GetState(ctx, b.Slot)
	if err != nil && !errors.Is(err, button.ErrStateNotFound) {
		c.logger.Warn("reading previous key state failed", "slot", b.Slot, "error", err)
	}
	c.persist(ctx, b.Slot, false, at)

	var held time.Duration
	tap := false
	if prev != nil && prev.Pressed {
		held = at.Sub(prev.UpdatedAt)
		tap = held >= 0 && held < c.threshold
	}

	c.emit(protocol.EventKeyUp, b, at, held)
	if tap {
		c.emit(protocol.EventSingleTap, b, at, held)
	}
}

// fire runs when a long-press check expires. The live key state decides
// whether the key is still down; a cancelled timer alone is not trusted
// since a release may not have reached the classifier yet.
func (c *Classifier) fire(slot int, p *pending) {
	c.mu.Lock()
	if c.pending[slot] != p {
		c.mu.Unlock()
		return
	}
	delete(c.pending, slot)
	live := c.live
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), stateTimeout)
	defer cancel()

	if !c.stillPressed(ctx, live, slot, p.pressedAt) {
		return
	}

	c.sink.Emit(Event{
		Kind:     protocol.EventLongPress,
		UUID:     p.uuid,
		Slot:     slot,
		DeviceID: p.deviceID,
		At:       p.pressedAt.Add(c.threshold),
		Held:     c.threshold,
	})
}

func (c *Classifier) stillPressed(ctx context.Context, live LiveState, slot int, pressedAt time.Time) bool {
	if live != nil {
		pressed, err := live.IsPressed(slot)
		if err == nil {
			return pressed
		}
		c.logger.Debug("live key state unavailable, using stored state", "slot", slot, "error", err)
	}

	st, err := c.buttons.GetState(ctx, slot)
	if err != nil {
		return false
	}
	return st.Pressed && st.UpdatedAt.Equal(pressedAt)
}

func (c *Classifier) persist(ctx context.Context, slot int, pressed bool, at time.Time) {
	if err := c.buttons.PutState(ctx, slot, pressed, at); err != nil {
		c.logger.Error("persisting key state failed", "slot", slot, "pressed", pressed, "error", err)
	}
}

func (c *Classifier) emit(kind protocol.Event, b *button.Button, at time.Time, held time.Duration) {
	c.sink.Emit(Event{
		Kind:     kind,
		UUID:     b.UUID,
		Slot:     b.Slot,
		DeviceID: b.DeviceID,
		At:       at,
		Held:     held,
	})
}
