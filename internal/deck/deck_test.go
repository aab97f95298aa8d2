package deck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/streamdeck-api/internal/button"
)

type fakeButtons struct {
	mu      sync.Mutex
	bases   map[string]int
	next    int
	buttons map[int]*button.Button
}

func newFakeButtons() *fakeButtons {
	return &fakeButtons{bases: make(map[string]int), buttons: make(map[int]*button.Button)}
}

func (f *fakeButtons) EnsureDeck(_ context.Context, serial string, keyCount int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if base, ok := f.bases[serial]; ok {
		return base, nil
	}
	base := f.next
	f.bases[serial] = base
	f.next += keyCount
	return base, nil
}

func (f *fakeButtons) Ensure(_ context.Context, deviceID string, slot int, pos button.Position) (*button.Button, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.buttons[slot]; ok {
		return b, false, nil
	}
	b := &button.Button{
		Slot:     slot,
		UUID:     fmt.Sprintf("test-key-%02d", slot),
		DeviceID: deviceID,
		Position: pos,
		SVG:      button.DefaultSVG,
	}
	f.buttons[slot] = b
	return b, true, nil
}

func (f *fakeButtons) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.buttons)
}

type keyEvent struct {
	slot    int
	pressed bool
}

type recordingHandler struct {
	mu     sync.Mutex
	events []keyEvent
}

func (r *recordingHandler) HandleKey(_ context.Context, slot int, pressed bool, _ time.Time) {
	r.mu.Lock()
	r.events = append(r.events, keyEvent{slot, pressed})
	r.mu.Unlock()
}

func (r *recordingHandler) all() []keyEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]keyEvent(nil), r.events...)
}

type failingRasterizer struct{}

func (failingRasterizer) Rasterize(context.Context, string, ImageFormat) ([]byte, error) {
	return nil, errors.New("no renderer")
}

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="72" height="72"><rect width="72" height="72"/></svg>`

func newTestManager(t *testing.T, decks ...*VirtualDeck) (*Manager, *fakeButtons) {
	t.Helper()
	buttons := newFakeButtons()
	m := NewManager(NewVirtualDriver(decks...), SVGRasterizer{}, buttons, time.Hour)
	t.Cleanup(m.Close)
	return m, buttons
}

func TestManager_AttachCreatesButtonPerKey(t *testing.T) {
	vd := NewVirtualDeck("CL1234", "Stream Deck MK.2", 5, 3)
	m, buttons := newTestManager(t, vd)

	m.Scan(context.Background())

	if got := buttons.count(); got != 15 {
		t.Fatalf("buttons = %d, want 15", got)
	}

	devices := m.Devices()
	if len(devices) != 1 {
		t.Fatalf("Devices() len = %d, want 1", len(devices))
	}
	d := devices[0]
	if d.ID != "CL1234" || d.Size.Columns != 5 || d.Size.Rows != 3 || d.Type != TypeStreamDeck {
		t.Errorf("device = %+v", d)
	}

	// Key 7 sits in column 2 of row 1.
	b := buttons.buttons[7]
	if b.Position.X != 2 || b.Position.Y != 1 {
		t.Errorf("key 7 position = %+v, want {2 1}", b.Position)
	}

	if img := vd.Image(0); string(img) != button.DefaultSVG {
		t.Errorf("key 0 image = %q, want default svg", img)
	}
}

func TestManager_SecondDeckGetsDisjointSlots(t *testing.T) {
	a := NewVirtualDeck("AAA", "Stream Deck Mini", 3, 2)
	b := NewVirtualDeck("BBB", "Stream Deck XL", 8, 4)
	m, buttons := newTestManager(t, a, b)
	handler := &recordingHandler{}
	m.SetKeyHandler(handler)

	m.Scan(context.Background())

	if got := buttons.count(); got != 6+32 {
		t.Fatalf("buttons = %d, want 38", got)
	}

	baseB := buttons.bases["BBB"]
	if err := b.Press(0, true); err != nil {
		t.Fatalf("Press: %v", err)
	}

	events := handler.all()
	if len(events) != 1 || events[0].slot != baseB || !events[0].pressed {
		t.Errorf("events = %+v, want press on slot %d", events, baseB)
	}
}

func TestManager_IsPressedResolvesOwningDeck(t *testing.T) {
	a := NewVirtualDeck("AAA", "Stream Deck Mini", 3, 2)
	b := NewVirtualDeck("BBB", "Stream Deck XL", 8, 4)
	m, buttons := newTestManager(t, a, b)
	m.Scan(context.Background())

	if err := b.Press(31, true); err != nil {
		t.Fatalf("Press: %v", err)
	}
	baseA, baseB := buttons.bases["AAA"], buttons.bases["BBB"]

	tests := []struct {
		name    string
		slot    int
		pressed bool
		wantErr error
	}{
		{"first key of A", baseA, false, nil},
		{"last key of B", baseB + 31, true, nil},
		{"first key of B", baseB, false, nil},
		{"past every deck", baseB + 32, false, ErrDeviceOffline},
		{"negative", -1, false, ErrDeviceOffline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pressed, err := m.IsPressed(tt.slot)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("IsPressed(%d) error = %v, want %v", tt.slot, err, tt.wantErr)
			}
			if pressed != tt.pressed {
				t.Errorf("IsPressed(%d) = %v, want %v", tt.slot, pressed, tt.pressed)
			}
		})
	}
}

func TestManager_ForwardsKeyTransitions(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 5, 3)
	m, _ := newTestManager(t, vd)
	handler := &recordingHandler{}
	m.SetKeyHandler(handler)
	m.Scan(context.Background())

	if err := vd.Press(4, true); err != nil {
		t.Fatal(err)
	}
	pressed, err := m.IsPressed(4)
	if err != nil || !pressed {
		t.Errorf("IsPressed(4) = %v, %v; want true, nil", pressed, err)
	}
	if err := vd.Press(4, false); err != nil {
		t.Fatal(err)
	}

	want := []keyEvent{{4, true}, {4, false}}
	got := handler.all()
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestManager_UnplugAndReattach(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 5, 3)
	m, buttons := newTestManager(t, vd)

	changes := 0
	m.SetOnChange(func() { changes++ })

	m.Scan(context.Background())
	if changes != 1 {
		t.Fatalf("changes after attach = %d, want 1", changes)
	}

	vd.SetUnplugged(true)
	m.Scan(context.Background())
	if len(m.Devices()) != 0 {
		t.Fatal("deck still listed after unplug")
	}
	if changes != 2 {
		t.Errorf("changes after unplug = %d, want 2", changes)
	}
	if _, err := m.IsPressed(0); !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("IsPressed offline error = %v, want ErrDeviceOffline", err)
	}
	if err := m.WriteIcon(context.Background(), 0, testSVG); !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("WriteIcon offline error = %v, want ErrDeviceOffline", err)
	}

	vd.SetUnplugged(false)
	m.Scan(context.Background())
	if len(m.Devices()) != 1 {
		t.Fatal("deck not reattached")
	}
	if got := buttons.count(); got != 15 {
		t.Errorf("buttons after reattach = %d, want 15", got)
	}
}

func TestManager_NoChangeNoCallback(t *testing.T) {
	m, _ := newTestManager(t, NewVirtualDeck("CL1", "", 2, 1))
	changes := 0
	m.SetOnChange(func() { changes++ })

	m.Scan(context.Background())
	m.Scan(context.Background())
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
}

func TestManager_WriteIcon(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 5, 3)
	m, _ := newTestManager(t, vd)
	m.Scan(context.Background())

	if err := m.WriteIcon(context.Background(), 3, testSVG); err != nil {
		t.Fatalf("WriteIcon: %v", err)
	}
	if got := string(vd.Image(3)); got != testSVG {
		t.Errorf("image = %q", got)
	}

	err := m.WriteIcon(context.Background(), 3, "<svg><unclosed></svg>")
	if !errors.Is(err, ErrRender) {
		t.Errorf("malformed svg error = %v, want ErrRender", err)
	}
	if got := string(vd.Image(3)); got != testSVG {
		t.Error("failed render replaced the key image")
	}

	if err := m.WriteIcon(context.Background(), 99, testSVG); !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("unowned slot error = %v, want ErrDeviceOffline", err)
	}
}

func TestManager_RasterizerFailureIsRenderError(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 1, 1)
	m := NewManager(NewVirtualDriver(vd), failingRasterizer{}, newFakeButtons(), time.Hour)
	defer m.Close()

	// Attach still succeeds when painting fails.
	m.Scan(context.Background())
	if len(m.Devices()) != 1 {
		t.Fatal("deck not attached")
	}
	if err := m.WriteIcon(context.Background(), 0, testSVG); !errors.Is(err, ErrRender) {
		t.Errorf("error = %v, want ErrRender", err)
	}
}

func TestManager_RunStopsOnCancel(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 1, 1)
	m := NewManager(NewVirtualDriver(vd), SVGRasterizer{}, newFakeButtons(), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for len(m.Devices()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if len(m.Devices()) != 0 {
		t.Error("decks still attached after Run returned")
	}
}

func TestSVGRasterizer(t *testing.T) {
	svgFormat := ImageFormat{Format: "SVG", Width: 72, Height: 72}
	tests := []struct {
		name    string
		svg     string
		format  ImageFormat
		wantErr bool
	}{
		{"plain svg", testSVG, svgFormat, false},
		{"with prolog", `<?xml version="1.0"?>` + testSVG, svgFormat, false},
		{"wrong root", `<html></html>`, svgFormat, true},
		{"malformed", `<svg><g></svg>`, svgFormat, true},
		{"empty", ``, svgFormat, true},
		{"bitmap device", testSVG, ImageFormat{Format: "JPEG"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SVGRasterizer{}.Rasterize(context.Background(), tt.svg, tt.format)
			if tt.wantErr {
				if !errors.Is(err, ErrRender) {
					t.Errorf("error = %v, want ErrRender", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestTypeCode(t *testing.T) {
	tests := map[string]int{
		"Stream Deck MK.2":     TypeStreamDeck,
		"Stream Deck Original": TypeStreamDeck,
		"Stream Deck Mini":     TypeStreamDeckMini,
		"Stream Deck XL":       TypeStreamDeckXL,
		"Stream Deck +":        TypeStreamDeckPlus,
		"Stream Deck Pedal":    TypeStreamDeckPedal,
		"Stream Deck Neo":      TypeStreamDeckNeo,
	}
	for name, want := range tests {
		if got := TypeCode(name); got != want {
			t.Errorf("TypeCode(%q) = %d, want %d", name, got, want)
		}
	}
}

func TestVirtualDeck_OfflineOperations(t *testing.T) {
	vd := NewVirtualDeck("CL1", "", 2, 2)
	if _, err := vd.KeyStates(); !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("KeyStates before Open = %v, want ErrDeviceOffline", err)
	}
	if err := vd.Open(); err != nil {
		t.Fatal(err)
	}
	if err := vd.SetKeyImage(4, nil); !errors.Is(err, ErrKeyOutOfRange) {
		t.Errorf("SetKeyImage(4) = %v, want ErrKeyOutOfRange", err)
	}
	vd.SetUnplugged(true)
	if err := vd.Open(); !errors.Is(err, ErrDeviceOffline) {
		t.Errorf("Open while unplugged = %v, want ErrDeviceOffline", err)
	}
}
