package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(configEnv, path)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	return ln.Addr().(*net.TCPAddr).Port
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidDevices verifies validation errors stop startup.
func TestRun_InvalidDevices(t *testing.T) {
	writeConfig(t, `
database:
  path: "`+filepath.Join(t.TempDir(), "test.db")+`"
devices:
  driver: hid
logging:
  level: error
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with an unsupported driver")
	}
}

// TestRun_StartupAndShutdown boots the server on a virtual deck, reads
// /sd/info and shuts down on cancel.
func TestRun_StartupAndShutdown(t *testing.T) {
	port := freePort(t)
	writeConfig(t, fmt.Sprintf(`
database:
  path: "%s"
api:
  host: "127.0.0.1"
  port: %d
devices:
  driver: virtual
  poll_interval: 1
  virtual:
    - serial: "CL0001"
      type: "Stream Deck MK.2"
      columns: 5
      rows: 3
mqtt:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
`, filepath.Join(t.TempDir(), "test.db"), port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/sd/info", port)
	var info struct {
		Devices []struct {
			ID string `json:"id"`
		} `json:"devices"`
		Buttons map[string]json.RawMessage `json:"buttons"`
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			decodeErr := json.NewDecoder(resp.Body).Decode(&info)
			resp.Body.Close()
			if decodeErr == nil && resp.StatusCode == http.StatusOK && len(info.Devices) == 1 {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not report the virtual deck (last error: %v)", err)
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(20 * time.Millisecond):
		}
	}

	if info.Devices[0].ID != "CL0001" {
		t.Errorf("device id = %q, want CL0001", info.Devices[0].ID)
	}
	if len(info.Buttons) != 15 {
		t.Errorf("buttons = %d, want 15", len(info.Buttons))
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() = %v, want nil on shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// TestGetConfigPath_Default verifies the default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnv, "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies the environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv(configEnv, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestAnnounceHost(t *testing.T) {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "localhost"
	}

	tests := []struct {
		bind string
		want string
	}{
		{"192.168.1.20", "192.168.1.20"},
		{"deck.local", "deck.local"},
		{"0.0.0.0", hostname},
		{"", hostname},
	}
	for _, tt := range tests {
		if got := announceHost(tt.bind); got != tt.want {
			t.Errorf("announceHost(%q) = %q, want %q", tt.bind, got, tt.want)
		}
	}
}
