// Package client is a Go client for the Stream Deck API.
//
// It offers the HTTP calls (Info, Icon, UpdateIcon) and a reconnecting
// event loop. The loop polls /sd/info until the server answers, opens the
// WebSocket, and dispatches events to the callbacks in Options. Any
// transport error closes the session and the loop starts over, forever,
// until Stop.
//
//	c := client.New(client.Options{
//	    Host: "deck.local",
//	    OnButtonChange: func(uuid string, pressed bool) { ... },
//	})
//	c.Start(ctx)
//	defer c.Stop()
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/streamdeck-api/internal/protocol"
)

// Defaults applied by New.
const (
	DefaultPort           = 6153
	DefaultRetryInterval  = 5 * time.Second
	DefaultRequestTimeout = 5 * time.Second
	DefaultReadTimeout    = 60 * time.Second

	// maxIconSize bounds an icon response. The server accepts icon bodies
	// up to 1 MiB. /sd/info carries every icon and is not bounded.
	maxIconSize = 4 << 20

	maxDrainSize = 64 << 10
)

// State is the event loop's connection state.
type State int32

// Loop states.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Logger defines the logging interface used by the Client.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Options configures a Client. Callbacks are optional and run on the
// loop goroutine, one at a time, in frame order.
type Options struct {
	Host string
	Port int

	// RetryInterval is the wait after a failed info poll or dial.
	RetryInterval time.Duration

	// RequestTimeout bounds each HTTP call made by the loop.
	RequestTimeout time.Duration

	// ReadTimeout closes a session that receives nothing for this long.
	ReadTimeout time.Duration

	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Logger     Logger

	// OnConnect runs after each successful WebSocket dial.
	OnConnect func()

	// OnMessage receives every decoded frame before the typed callbacks.
	OnMessage func(msg protocol.Message)

	// OnButtonChange receives keyDown (true) and keyUp (false).
	OnButtonChange func(uuid string, pressed bool)

	OnButtonPress   func(uuid string)
	OnButtonRelease func(uuid string)

	// OnButtonGesture receives singleTap and longPress.
	OnButtonGesture func(event protocol.Event, uuid string)

	OnStatusUpdate func(info protocol.Info)
}

// Client talks to one Stream Deck API server.
type Client struct {
	opts Options

	running atomic.Bool
	state   atomic.Int32

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a client. Zero option values take the package defaults.
func New(opts Options) *Client {
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.RequestTimeout,
		}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}
	return &Client{opts: opts}
}

// Host returns the configured server host.
func (c *Client) Host() string { return c.opts.Host }

// State returns the loop's current state.
func (c *Client) State() State { return State(c.state.Load()) }

// Running reports whether the loop has been started and not stopped.
func (c *Client) Running() bool { return c.running.Load() }

func (c *Client) baseURL() string {
	return "http://" + net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port))
}

func (c *Client) websocketURL() string {
	return "ws://" + net.JoinHostPort(c.opts.Host, strconv.Itoa(c.opts.Port)) + "/"
}

func (c *Client) iconURL(uuid string) string {
	return c.baseURL() + "/sd/icon/" + url.PathEscape(uuid)
}

// Info fetches the server snapshot.
func (c *Client) Info(ctx context.Context) (*protocol.Info, error) {
	resp, err := c.get(ctx, c.baseURL()+"/sd/info")
	if err != nil {
		return nil, err
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d from /sd/info", ErrUnexpectedStatus, resp.StatusCode)
	}
	var info protocol.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decoding info: %w", err)
	}
	return &info, nil
}

// Icon fetches a button's SVG.
func (c *Client) Icon(ctx context.Context, uuid string) (string, error) {
	resp, err := c.get(ctx, c.iconURL(uuid))
	if err != nil {
		return "", err
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrUnknownButton, uuid)
	default:
		return "", fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "image/svg+xml" {
		return "", fmt.Errorf("%w: content type %q", ErrNotSVG, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIconSize+1))
	if err != nil {
		return "", fmt.Errorf("reading icon %s: %w", uuid, err)
	}
	if len(body) > maxIconSize {
		return "", fmt.Errorf("%w: icon %s exceeds %d bytes", ErrResponseTooLarge, uuid, maxIconSize)
	}
	return string(body), nil
}

// UpdateIcon replaces a button's SVG.
func (c *Client) UpdateIcon(ctx context.Context, uuid, svg string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.iconURL(uuid), bytes.NewBufferString(svg))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "image/svg+xml")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("updating icon: %w", err)
	}
	defer closeBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrUnknownButton, uuid)
	case http.StatusUnprocessableEntity:
		return ErrRejected
	default:
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}
}

// get issues a GET. The caller closes the response with closeBody.
func (c *Client) get(ctx context.Context, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", target, err)
	}
	return resp, nil
}

// closeBody drains a little of what is left so the connection can be reused.
func closeBody(resp *http.Response) {
	//nolint:errcheck // best-effort drain
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainSize))
	resp.Body.Close()
}
