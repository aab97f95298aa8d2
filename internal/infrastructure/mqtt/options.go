package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12

	defaultClientID = "streamdeckapi"
)

// Presence states published on the discovery topic.
const (
	statusOnline  = "online"
	statusOffline = "offline"
)

// clientIDFor appends a short random suffix so several servers (or a
// restarted one whose old session the broker still holds) never collide.
func clientIDFor(base string) string {
	if base == "" {
		base = defaultClientID
	}
	return base + "-" + uuid.NewString()[:8]
}

func buildClientOptions(cfg config.MQTTConfig, clientID string) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(clientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// configureLWT makes the broker publish a retained offline presence on
// topic if the connection drops without a graceful Close.
func configureLWT(opts *pahomqtt.ClientOptions, topic, clientID string) {
	payload := buildPresencePayload(statusOffline, clientID, "unexpected_disconnect", nil)
	opts.SetBinaryWill(topic, payload, 1, true)
}

// buildPresencePayload renders the discovery message. extra fields are
// merged in but never override status, client_id or timestamp.
func buildPresencePayload(status, clientID, reason string, extra map[string]any) []byte {
	msg := make(map[string]any, len(extra)+4)
	for k, v := range extra {
		msg[k] = v
	}
	msg["status"] = status
	msg["client_id"] = clientID
	msg["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	if reason != "" {
		msg["reason"] = reason
	}

	data, err := json.Marshal(msg)
	if err != nil {
		// extra carries caller values; fall back to the fixed fields.
		data, _ = json.Marshal(map[string]string{ //nolint:errcheck // string map always marshals
			"status":    status,
			"client_id": clientID,
		})
	}
	return data
}
