package deck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/streamdeck-api/internal/button"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// DefaultPollInterval is how often Run re-enumerates devices.
const DefaultPollInterval = 10 * time.Second

// Buttons is the subset of the button registry the manager needs.
type Buttons interface {
	EnsureDeck(ctx context.Context, serial string, keyCount int) (int, error)
	Ensure(ctx context.Context, deviceID string, slot int, pos button.Position) (*button.Button, bool, error)
}

// KeyHandler receives key transitions translated to slots.
type KeyHandler interface {
	HandleKey(ctx context.Context, slot int, pressed bool, at time.Time)
}

// Logger defines the logging interface used by the Manager.
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

type attached struct {
	dev   Device
	info  Info
	slots button.Deck
}

// Manager attaches decks reported by a Driver, gives each key a button
// record, paints the stored icons and forwards key transitions to a
// KeyHandler.
//
// Devices that disappear or stop answering are detached and picked up
// again on a later scan. Hardware faults are logged, never returned from
// Run.
type Manager struct {
	driver  Driver
	raster  Rasterizer
	buttons Buttons
	logger  Logger
	poll    time.Duration

	scanMu sync.Mutex

	mu       sync.RWMutex
	decks    map[string]*attached
	handler  KeyHandler
	onChange func()
}

// NewManager creates a device manager.
func NewManager(driver Driver, raster Rasterizer, buttons Buttons, poll time.Duration) *Manager {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Manager{
		driver:  driver,
		raster:  raster,
		buttons: buttons,
		logger:  noopLogger{},
		poll:    poll,
		decks:   make(map[string]*attached),
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// SetKeyHandler sets the receiver of key transitions.
func (m *Manager) SetKeyHandler(h KeyHandler) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// SetOnChange registers fn to run after a scan attached or detached a deck.
func (m *Manager) SetOnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

// Run scans immediately and then every poll interval until ctx is
// cancelled, after which all decks are closed.
func (m *Manager) Run(ctx context.Context) error {
	m.Scan(ctx)

	ticker := time.NewTicker(m.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case <-ticker.C:
			m.Scan(ctx)
		}
	}
}

// Scan reconciles attached decks with the driver's enumeration once.
func (m *Manager) Scan(ctx context.Context) {
	m.scanMu.Lock()
	defer m.scanMu.Unlock()

	devices, err := m.driver.Enumerate(ctx)
	if err != nil {
		m.logger.Warn("device enumeration failed", "error", err)
		return
	}

	present := make(map[string]Device, len(devices))
	for _, dev := range devices {
		present[dev.Info().Serial] = dev
	}

	changed := false

	// Detach decks that vanished or stopped answering.
	for _, serial := range m.serials() {
		m.mu.RLock()
		a := m.decks[serial]
		m.mu.RUnlock()

		_, stillListed := present[serial]
		_, err := a.dev.KeyStates()
		if stillListed && err == nil {
			continue
		}
		m.logger.Warn("deck offline", "serial", serial, "listed", stillListed, "error", err)
		m.detach(serial)
		changed = true
	}

	for serial, dev := range present {
		m.mu.RLock()
		_, ok := m.decks[serial]
		m.mu.RUnlock()
		if ok {
			continue
		}
		if err := m.attach(ctx, dev); err != nil {
			m.logger.Warn("deck attach failed", "serial", serial, "error", err)
			continue
		}
		changed = true
	}

	if changed {
		m.mu.RLock()
		fn := m.onChange
		m.mu.RUnlock()
		if fn != nil {
			fn()
		}
	}
}

func (m *Manager) attach(ctx context.Context, dev Device) error {
	info := dev.Info()
	if info.KeyCount <= 0 {
		return fmt.Errorf("deck %s reports no keys", info.Serial)
	}

	if err := dev.Open(); err != nil {
		return fmt.Errorf("opening: %w", err)
	}
	if err := dev.Reset(); err != nil {
		dev.Close() //nolint:errcheck // best effort on error path
		return fmt.Errorf("resetting: %w", err)
	}

	base, err := m.buttons.EnsureDeck(ctx, info.Serial, info.KeyCount)
	if err != nil {
		dev.Close() //nolint:errcheck // best effort on error path
		return fmt.Errorf("allocating slots: %w", err)
	}
	slots := button.Deck{Serial: info.Serial, SlotBase: base, KeyCount: info.KeyCount}

	created := 0
	for key := 0; key < info.KeyCount; key++ {
		b, isNew, err := m.buttons.Ensure(ctx, info.Serial, slots.Slot(key), button.PositionOf(key, info.Columns))
		if err != nil {
			dev.Close() //nolint:errcheck // best effort on error path
			return fmt.Errorf("registering key %d: %w", key, err)
		}
		if isNew {
			created++
		}
		if err := m.paint(ctx, dev, key, b.SVG); err != nil {
			m.logger.Warn("painting key failed", "serial", info.Serial, "key", key, "error", err)
		}
	}

	a := &attached{dev: dev, info: info, slots: slots}
	dev.SetKeyCallback(func(key int, pressed bool) {
		m.mu.RLock()
		h := m.handler
		m.mu.RUnlock()
		if h != nil {
			h.HandleKey(ctx, slots.Slot(key), pressed, time.Now())
		}
	})

	m.mu.Lock()
	m.decks[info.Serial] = a
	m.mu.Unlock()

	m.logger.Info("deck attached",
		"serial", info.Serial,
		"type", info.TypeName,
		"keys", info.KeyCount,
		"slot_base", base,
		"new_buttons", created,
	)
	return nil
}

func (m *Manager) detach(serial string) {
	m.mu.Lock()
	a, ok := m.decks[serial]
	delete(m.decks, serial)
	m.mu.Unlock()
	if !ok {
		return
	}
	a.dev.SetKeyCallback(nil)
	if err := a.dev.Close(); err != nil {
		m.logger.Debug("closing deck failed", "serial", serial, "error", err)
	}
}

// Close detaches every deck.
func (m *Manager) Close() {
	for _, serial := range m.serials() {
		m.detach(serial)
	}
}

func (m *Manager) serials() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.decks))
	for serial := range m.decks {
		out = append(out, serial)
	}
	sort.Strings(out)
	return out
}

// Devices returns the attached decks ordered by serial.
func (m *Manager) Devices() []protocol.Device {
	serials := m.serials()

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]protocol.Device, 0, len(serials))
	for _, serial := range serials {
		if a, ok := m.decks[serial]; ok {
			out = append(out, a.info.Descriptor())
		}
	}
	return out
}

// locate returns the deck and key index owning slot.
func (m *Manager) locate(slot int) (*attached, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.decks {
		if key, ok := a.slots.Key(slot); ok {
			return a, key, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: no deck owns slot %d", ErrDeviceOffline, slot)
}

// IsPressed reads the live state of slot from its deck.
func (m *Manager) IsPressed(slot int) (bool, error) {
	a, key, err := m.locate(slot)
	if err != nil {
		return false, err
	}
	states, err := a.dev.KeyStates()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDeviceOffline, err)
	}
	if key >= len(states) {
		return false, fmt.Errorf("%w: %d", ErrKeyOutOfRange, key)
	}
	return states[key], nil
}

// WriteIcon rasterizes svg for the deck owning slot and writes it to the
// key. It returns an error wrapping ErrRender when the icon cannot be
// rasterized and ErrDeviceOffline when no deck can take it.
func (m *Manager) WriteIcon(ctx context.Context, slot int, svg string) error {
	a, key, err := m.locate(slot)
	if err != nil {
		return err
	}
	return m.paint(ctx, a.dev, key, svg)
}

func (m *Manager) paint(ctx context.Context, dev Device, key int, svg string) error {
	img, err := m.raster.Rasterize(ctx, svg, dev.ImageFormat())
	if err != nil {
		if errors.Is(err, ErrRender) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	if err := dev.SetKeyImage(key, img); err != nil {
		if errors.Is(err, ErrDeviceOffline) {
			return err
		}
		return fmt.Errorf("%w: writing key %d: %v", ErrDeviceOffline, key, err)
	}
	return nil
}
