package button

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"
)

// MockRepository is an in-memory Repository for registry tests.
type MockRepository struct {
	mu      sync.Mutex
	buttons map[int]Button
	states  map[int]State
	decks   map[string]Deck

	createCalls int
	createErr   error
	updateErr   error
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		buttons: make(map[int]Button),
		states:  make(map[int]State),
		decks:   make(map[string]Deck),
	}
}

func (m *MockRepository) Get(_ context.Context, slot int) (*Button, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.buttons[slot]; ok {
		return &b, nil
	}
	return nil, ErrButtonNotFound
}

func (m *MockRepository) GetByUUID(_ context.Context, uuid string) (*Button, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.buttons {
		if b.UUID == uuid {
			return &b, nil
		}
	}
	return nil, ErrButtonNotFound
}

func (m *MockRepository) List(_ context.Context) ([]Button, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Button, 0, len(m.buttons))
	for _, b := range m.buttons {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (m *MockRepository) Create(_ context.Context, b *Button) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.buttons[b.Slot]; ok {
		return ErrButtonExists
	}
	for _, existing := range m.buttons {
		if existing.UUID == b.UUID {
			return ErrUUIDTaken
		}
	}
	m.buttons[b.Slot] = *b
	return nil
}

func (m *MockRepository) UpdateSVG(_ context.Context, slot int, svg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	b, ok := m.buttons[slot]
	if !ok {
		return ErrButtonNotFound
	}
	b.SVG = svg
	m.buttons[slot] = b
	return nil
}

func (m *MockRepository) GetState(_ context.Context, slot int) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.states[slot]; ok {
		return &s, nil
	}
	return nil, ErrStateNotFound
}

func (m *MockRepository) PutState(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[s.Slot] = s
	return nil
}

func (m *MockRepository) ClearStates(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = make(map[int]State)
	return nil
}

func (m *MockRepository) EnsureDeck(_ context.Context, serial string, keyCount int) (*Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.decks[serial]; ok {
		return &d, nil
	}
	base := 0
	for _, d := range m.decks {
		if end := d.SlotBase + d.KeyCount; end > base {
			base = end
		}
	}
	d := Deck{Serial: serial, SlotBase: base, KeyCount: keyCount}
	m.decks[serial] = d
	return &d, nil
}

func newTestRegistry(t *testing.T) (*Registry, *MockRepository) {
	t.Helper()
	repo := NewMockRepository()
	reg := NewRegistry(repo)
	if err := reg.Load(context.Background()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return reg, repo
}

// sequenceNames returns a NameFunc yielding names in order, then repeating the last.
func sequenceNames(names ...string) NameFunc {
	var mu sync.Mutex
	i := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n := names[i]
		if i < len(names)-1 {
			i++
		}
		return n
	}
}

func TestRandomName_Format(t *testing.T) {
	re := regexp.MustCompile(`^[a-z]+-[a-z]+-\d{2}$`)
	for i := 0; i < 50; i++ {
		if n := RandomName(); !re.MatchString(n) {
			t.Fatalf("RandomName() = %q, not adjective-noun-NN", n)
		}
	}
}

func TestPositionOf(t *testing.T) {
	tests := []struct {
		key, columns int
		want         Position
	}{
		{0, 5, Position{0, 0}},
		{4, 5, Position{4, 0}},
		{5, 5, Position{0, 1}},
		{14, 5, Position{4, 2}},
		{7, 8, Position{7, 0}},
		{3, 0, Position{3, 0}},
	}
	for _, tt := range tests {
		if got := PositionOf(tt.key, tt.columns); got != tt.want {
			t.Errorf("PositionOf(%d, %d) = %+v, want %+v", tt.key, tt.columns, got, tt.want)
		}
	}
}

func TestDeck_SlotKey(t *testing.T) {
	d := Deck{Serial: "CL1", SlotBase: 15, KeyCount: 6}
	tests := []struct {
		slot   int
		key    int
		inDeck bool
	}{
		{14, 0, false},
		{15, 0, true},
		{20, 5, true},
		{21, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		key, ok := d.Key(tt.slot)
		if ok != tt.inDeck || key != tt.key {
			t.Errorf("Key(%d) = %d, %v; want %d, %v", tt.slot, key, ok, tt.key, tt.inDeck)
		}
		if ok && d.Slot(key) != tt.slot {
			t.Errorf("Slot(%d) = %d, want %d", key, d.Slot(key), tt.slot)
		}
	}
}

func TestRegistry_EnsureFifteenKeys(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	base, err := reg.EnsureDeck(ctx, "DECK-1", 15)
	if err != nil {
		t.Fatalf("EnsureDeck() error = %v", err)
	}

	seen := make(map[string]bool)
	for key := 0; key < 15; key++ {
		b, created, err := reg.Ensure(ctx, "DECK-1", base+key, PositionOf(key, 5))
		if err != nil {
			t.Fatalf("Ensure(%d) error = %v", key, err)
		}
		if !created {
			t.Errorf("Ensure(%d) created = false on first discovery", key)
		}
		if b.SVG != DefaultSVG {
			t.Errorf("Ensure(%d) SVG is not the default icon", key)
		}
		if seen[b.UUID] {
			t.Errorf("duplicate uuid %q", b.UUID)
		}
		seen[b.UUID] = true
	}

	if reg.Count() != 15 {
		t.Errorf("Count() = %d, want 15", reg.Count())
	}
	if got, _ := repo.List(ctx); len(got) != 15 {
		t.Errorf("repository holds %d buttons, want 15 (write-through)", len(got))
	}
}

func TestRegistry_EnsureIsStable(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	first, _, err := reg.Ensure(ctx, "DECK-1", 3, Position{3, 0})
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	second, created, err := reg.Ensure(ctx, "DECK-1", 3, Position{3, 0})
	if err != nil {
		t.Fatalf("second Ensure() error = %v", err)
	}
	if created || second.UUID != first.UUID {
		t.Errorf("second Ensure() = (%q, %v), want (%q, false)", second.UUID, created, first.UUID)
	}

	// A fresh registry over the same store sees the same identity.
	restarted := NewRegistry(repo)
	if err := restarted.Load(ctx); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	again, created, err := restarted.Ensure(ctx, "DECK-1", 3, Position{3, 0})
	if err != nil {
		t.Fatalf("Ensure() after restart error = %v", err)
	}
	if created || again.UUID != first.UUID {
		t.Errorf("after restart uuid = %q (created %v), want %q", again.UUID, created, first.UUID)
	}
}

func TestRegistry_EnsureRetriesOnCollision(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	reg.SetNameFunc(sequenceNames("brave-otter-01"))
	if _, _, err := reg.Ensure(ctx, "D", 0, Position{}); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	reg.SetNameFunc(sequenceNames("brave-otter-01", "brave-otter-01", "", "quiet-heron-02"))
	b, _, err := reg.Ensure(ctx, "D", 1, Position{X: 1})
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	if b.UUID != "quiet-heron-02" {
		t.Errorf("Ensure() uuid = %q, want quiet-heron-02", b.UUID)
	}
	if repo.createCalls != 2 {
		t.Errorf("Create called %d times, want 2 (cache catches collisions)", repo.createCalls)
	}
}

func TestRegistry_EnsureExhausted(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	reg.SetNameFunc(sequenceNames("same-name-00"))
	if _, _, err := reg.Ensure(ctx, "D", 0, Position{}); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	_, _, err := reg.Ensure(ctx, "D", 1, Position{X: 1})
	if !errors.Is(err, ErrUUIDExhausted) {
		t.Errorf("Ensure() error = %v, want ErrUUIDExhausted", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestRegistry_PutKeepsIdentity(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	orig, _, err := reg.Ensure(ctx, "DECK-1", 5, Position{0, 1})
	if err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}

	err = reg.Put(ctx, 5, Button{UUID: "hijack", DeviceID: "OTHER", Position: Position{9, 9}, SVG: "<svg>new</svg>"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := reg.Get(ctx, 5)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UUID != orig.UUID || got.DeviceID != orig.DeviceID || got.Position != orig.Position {
		t.Errorf("identity changed: got %+v, orig %+v", got, orig)
	}
	if got.SVG != "<svg>new</svg>" {
		t.Errorf("SVG = %q, want <svg>new</svg>", got.SVG)
	}
	stored, _ := repo.Get(ctx, 5)
	if stored.SVG != "<svg>new</svg>" {
		t.Errorf("repository SVG = %q, want write-through", stored.SVG)
	}
}

func TestRegistry_PutIdempotent(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	b := Button{UUID: "tidy-yak-04", DeviceID: "D", Position: Position{1, 0}, SVG: "<svg/>"}
	for i := 0; i < 3; i++ {
		if err := reg.Put(ctx, 1, b); err != nil {
			t.Fatalf("Put() #%d error = %v", i, err)
		}
	}
	if repo.createCalls != 1 {
		t.Errorf("Create called %d times, want 1", repo.createCalls)
	}
	if err := reg.Put(ctx, 2, Button{SVG: "<svg/>"}); !errors.Is(err, ErrInvalidButton) {
		t.Errorf("Put(new without identity) error = %v, want ErrInvalidButton", err)
	}
}

func TestRegistry_PutFailureLeavesCache(t *testing.T) {
	reg, repo := newTestRegistry(t)
	ctx := context.Background()

	if _, _, err := reg.Ensure(ctx, "D", 0, Position{}); err != nil {
		t.Fatalf("Ensure() error = %v", err)
	}
	repo.updateErr = errors.New("disk full")

	if err := reg.Put(ctx, 0, Button{SVG: "<svg>x</svg>"}); err == nil {
		t.Fatal("Put() should fail when the repository fails")
	}
	got, _ := reg.Get(ctx, 0)
	if got.SVG != DefaultSVG {
		t.Errorf("cache SVG changed despite failed write: %q", got.SVG)
	}
}

func TestRegistry_LookupsAgree(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for slot := 0; slot < 6; slot++ {
		if _, _, err := reg.Ensure(ctx, "D", slot, PositionOf(slot, 3)); err != nil {
			t.Fatalf("Ensure(%d) error = %v", slot, err)
		}
	}

	for _, b := range reg.List(ctx) {
		slot, err := reg.SlotOf(ctx, b.UUID)
		if err != nil {
			t.Fatalf("SlotOf(%q) error = %v", b.UUID, err)
		}
		got, err := reg.Get(ctx, slot)
		if err != nil {
			t.Fatalf("Get(%d) error = %v", slot, err)
		}
		if got.UUID != b.UUID {
			t.Errorf("Get(SlotOf(%q)).UUID = %q", b.UUID, got.UUID)
		}
		byUUID, err := reg.GetByUUID(ctx, b.UUID)
		if err != nil || byUUID.Slot != slot {
			t.Errorf("GetByUUID(%q) = %+v, %v", b.UUID, byUUID, err)
		}
	}

	if _, err := reg.GetByUUID(ctx, "missing"); !errors.Is(err, ErrButtonNotFound) {
		t.Errorf("GetByUUID(missing) error = %v, want ErrButtonNotFound", err)
	}
	if _, err := reg.SlotOf(ctx, "missing"); !errors.Is(err, ErrButtonNotFound) {
		t.Errorf("SlotOf(missing) error = %v, want ErrButtonNotFound", err)
	}
	if reg.Count() != 6 {
		t.Errorf("lookups allocated records: Count() = %d, want 6", reg.Count())
	}
}

func TestRegistry_ListOrderedAndCopied(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	for _, slot := range []int{9, 1, 4} {
		if _, _, err := reg.Ensure(ctx, "D", slot, Position{X: slot}); err != nil {
			t.Fatalf("Ensure(%d) error = %v", slot, err)
		}
	}

	list := reg.List(ctx)
	for i, want := range []int{1, 4, 9} {
		if list[i].Slot != want {
			t.Errorf("List()[%d].Slot = %d, want %d", i, list[i].Slot, want)
		}
	}

	list[0].SVG = "mutated"
	got, _ := reg.Get(ctx, 1)
	if got.SVG == "mutated" {
		t.Error("mutating List() result changed the cache")
	}
}

func TestRegistry_States(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()
	at := time.Now()

	if err := reg.PutState(ctx, 2, true, at); err != nil {
		t.Fatalf("PutState() error = %v", err)
	}
	s, err := reg.GetState(ctx, 2)
	if err != nil || !s.Pressed || !s.UpdatedAt.Equal(at) {
		t.Fatalf("GetState() = %+v, %v", s, err)
	}
	if err := reg.ClearStates(ctx); err != nil {
		t.Fatalf("ClearStates() error = %v", err)
	}
	if _, err := reg.GetState(ctx, 2); !errors.Is(err, ErrStateNotFound) {
		t.Errorf("GetState() after clear error = %v", err)
	}
}

func TestRegistry_ConcurrentEnsure(t *testing.T) {
	reg, _ := newTestRegistry(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	uuids := make([]string, 40)
	for i := range uuids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			slot := i % 10
			b, _, err := reg.Ensure(ctx, "D", slot, Position{X: slot})
			if err != nil {
				t.Errorf("Ensure(%d) error = %v", slot, err)
				return
			}
			uuids[i] = b.UUID
			_ = reg.Put(ctx, slot, Button{SVG: fmt.Sprintf("<svg>%d</svg>", i)})
		}(i)
	}
	wg.Wait()

	if reg.Count() != 10 {
		t.Errorf("Count() = %d, want 10", reg.Count())
	}
	for i := range uuids {
		if uuids[i] != uuids[i%10] {
			t.Errorf("slot %d got two uuids: %q and %q", i%10, uuids[i], uuids[i%10])
		}
	}
}
