package button

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// maxUUIDAttempts bounds the retry-on-collision loop of Ensure.
const maxUUIDAttempts = 64

// Logger defines the logging interface used by the Registry.
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

// Registry owns button records and press states. It keeps every button in
// an in-memory cache indexed by slot and UUID and writes through to the
// Repository on each change.
//
// All public methods are safe for concurrent use. Returned buttons are
// copies; mutating them does not affect the registry.
type Registry struct {
	repo Repository

	mu     sync.RWMutex
	bySlot map[int]*Button
	byUUID map[string]int

	// allocMu serialises Ensure so two discoveries of the same slot cannot
	// both allocate.
	allocMu sync.Mutex
	newName NameFunc
	logger  Logger
}

// NewRegistry creates a registry over repo. Call Load before use.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:    repo,
		bySlot:  make(map[int]*Button),
		byUUID:  make(map[string]int),
		newName: RandomName,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetNameFunc replaces the UUID generator.
func (r *Registry) SetNameFunc(fn NameFunc) {
	r.allocMu.Lock()
	r.newName = fn
	r.allocMu.Unlock()
}

// Load fills the cache from the repository.
func (r *Registry) Load(ctx context.Context) error {
	buttons, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading buttons: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.bySlot = make(map[int]*Button, len(buttons))
	r.byUUID = make(map[string]int, len(buttons))
	for i := range buttons {
		b := buttons[i]
		r.bySlot[b.Slot] = &b
		r.byUUID[b.UUID] = b.Slot
	}

	r.logger.Info("button cache loaded", "count", len(buttons))
	return nil
}

// Get returns the button in slot, or ErrButtonNotFound.
func (r *Registry) Get(_ context.Context, slot int) (*Button, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bySlot[slot]
	if !ok {
		return nil, ErrButtonNotFound
	}
	cp := *b
	return &cp, nil
}

// GetByUUID returns the button with the given public UUID, or ErrButtonNotFound.
func (r *Registry) GetByUUID(_ context.Context, uuid string) (*Button, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.byUUID[uuid]
	if !ok {
		return nil, ErrButtonNotFound
	}
	cp := *r.bySlot[slot]
	return &cp, nil
}

// SlotOf returns the slot of the button with the given UUID.
func (r *Registry) SlotOf(_ context.Context, uuid string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.byUUID[uuid]
	if !ok {
		return 0, ErrButtonNotFound
	}
	return slot, nil
}

// List returns every button ordered by slot ascending.
func (r *Registry) List(_ context.Context) []Button {
	r.mu.RLock()
	buttons := make([]Button, 0, len(r.bySlot))
	for _, b := range r.bySlot {
		buttons = append(buttons, *b)
	}
	r.mu.RUnlock()

	sort.Slice(buttons, func(i, j int) bool {
		return buttons[i].Slot < buttons[j].Slot
	})
	return buttons
}

// Count returns the number of buttons.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySlot)
}

// Put upserts the button in slot.
//
// If the slot already has a record only its SVG is replaced; the UUID,
// device and position in b are ignored. Otherwise b is inserted as a new
// record and must carry a UUID and device.
func (r *Registry) Put(ctx context.Context, slot int, b Button) error {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	r.mu.RLock()
	existing, ok := r.bySlot[slot]
	r.mu.RUnlock()

	if ok {
		if existing.SVG == b.SVG {
			return nil
		}
		if err := r.repo.UpdateSVG(ctx, slot, b.SVG); err != nil {
			return fmt.Errorf("updating icon of slot %d: %w", slot, err)
		}
		r.mu.Lock()
		r.bySlot[slot].SVG = b.SVG
		r.mu.Unlock()
		return nil
	}

	if b.UUID == "" || b.DeviceID == "" {
		return fmt.Errorf("%w: uuid and device are required", ErrInvalidButton)
	}
	b.Slot = slot
	if err := r.repo.Create(ctx, &b); err != nil {
		return fmt.Errorf("creating button in slot %d: %w", slot, err)
	}
	r.insert(b)
	return nil
}

// Ensure returns the button of slot, creating it on first discovery with a
// fresh human-readable UUID and DefaultSVG. The boolean reports whether a
// record was created. Creation is written through before Ensure returns.
func (r *Registry) Ensure(ctx context.Context, deviceID string, slot int, pos Position) (*Button, bool, error) {
	r.allocMu.Lock()
	defer r.allocMu.Unlock()

	if b, err := r.Get(ctx, slot); err == nil {
		return b, false, nil
	}

	b := Button{
		Slot:     slot,
		DeviceID: deviceID,
		Position: pos,
		SVG:      DefaultSVG,
	}

	for attempt := 0; attempt < maxUUIDAttempts; attempt++ {
		candidate := r.newName()
		if candidate == "" {
			continue
		}
		r.mu.RLock()
		_, taken := r.byUUID[candidate]
		r.mu.RUnlock()
		if taken {
			continue
		}

		b.UUID = candidate
		err := r.repo.Create(ctx, &b)
		if errors.Is(err, ErrUUIDTaken) {
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("creating button in slot %d: %w", slot, err)
		}

		r.insert(b)
		r.logger.Info("button created", "slot", slot, "uuid", b.UUID, "device", deviceID)
		return &b, true, nil
	}

	return nil, false, fmt.Errorf("%w: slot %d after %d attempts", ErrUUIDExhausted, slot, maxUUIDAttempts)
}

func (r *Registry) insert(b Button) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := b
	r.bySlot[b.Slot] = &cp
	r.byUUID[b.UUID] = b.Slot
}

// EnsureDeck returns the first slot of the deck with the given serial,
// allocating a slot range the first time the serial is seen.
func (r *Registry) EnsureDeck(ctx context.Context, serial string, keyCount int) (int, error) {
	d, err := r.repo.EnsureDeck(ctx, serial, keyCount)
	if err != nil {
		return 0, err
	}
	return d.SlotBase, nil
}

// GetState returns the stored press state of slot, or ErrStateNotFound.
func (r *Registry) GetState(ctx context.Context, slot int) (*State, error) {
	return r.repo.GetState(ctx, slot)
}

// PutState records a press transition of slot at time at.
func (r *Registry) PutState(ctx context.Context, slot int, pressed bool, at time.Time) error {
	return r.repo.PutState(ctx, State{Slot: slot, Pressed: pressed, UpdatedAt: at})
}

// ClearStates discards all press states. It runs at startup so history
// from a previous process is never used for classification.
func (r *Registry) ClearStates(ctx context.Context) error {
	return r.repo.ClearStates(ctx)
}
