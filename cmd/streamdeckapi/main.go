// Stream Deck API server.
//
// streamdeckapi attaches Stream Deck devices, assigns every key a stable
// button UUID and serves the devices over HTTP and WebSocket on port 6153.
// Button events can also be relayed to MQTT and recorded in InfluxDB.
//
// Configuration is read from configs/config.yaml, or from the path in
// STREAMDECKAPI_CONFIG.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/streamdeck-api/migrations"

	"github.com/nerrad567/streamdeck-api/internal/api"
	"github.com/nerrad567/streamdeck-api/internal/button"
	"github.com/nerrad567/streamdeck-api/internal/deck"
	"github.com/nerrad567/streamdeck-api/internal/icon"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/database"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/influxdb"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/logging"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/mqtt"
	"github.com/nerrad567/streamdeck-api/internal/press"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
	"github.com/nerrad567/streamdeck-api/internal/relay"
)

// Version information, set at build time via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "STREAMDECKAPI_CONFIG"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the server together and blocks until ctx is cancelled or a
// supervised component fails.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting streamdeckapi",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	registry := button.NewRegistry(button.NewSQLiteRepository(db.DB))
	registry.SetLogger(log.Component("buttons"))
	if err := registry.Load(ctx); err != nil {
		return fmt.Errorf("loading buttons: %w", err)
	}
	log.Info("button registry loaded", "buttons", registry.Count())

	manager := deck.NewManager(
		deck.NewVirtualDriverFromConfig(cfg.Devices.Virtual),
		deck.SVGRasterizer{},
		registry,
		cfg.PollInterval(),
	)
	manager.SetLogger(log.Component("decks"))

	icons := icon.NewService(registry, manager)
	icons.SetLogger(log.Component("icons"))

	srv, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Application: application(cfg.Application),
		Logger:      log.Component("api"),
		Buttons:     registry,
		Decks:       manager,
		Icons:       icons,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	sinks := press.Sinks{srv.Hub()}

	var (
		mqttClient *mqtt.Client
		mqttRelay  *relay.Relay
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log.Component("mqtt"))
		mqttClient.SetOnConnect(func() { log.Info("MQTT reconnected") })
		mqttClient.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
		log.Info("MQTT connected",
			"broker", net.JoinHostPort(cfg.MQTT.Broker.Host, fmt.Sprint(cfg.MQTT.Broker.Port)),
			"client_id", mqttClient.ClientID(),
		)

		mqttRelay = relay.New(mqttClient, icons, 0)
		mqttRelay.SetLogger(log.Component("relay"))
		sinks = append(sinks, mqttRelay)
	} else {
		log.Info("MQTT disabled")
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
		sinks = append(sinks, relay.NewTelemetry(influxClient))
	} else {
		log.Info("InfluxDB disabled")
	}

	classifier := press.NewClassifier(registry, sinks, cfg.LongPressThreshold())
	classifier.SetLogger(log.Component("press"))
	classifier.SetLiveState(manager)
	if err := classifier.Reset(ctx); err != nil {
		return fmt.Errorf("clearing press states: %w", err)
	}
	defer classifier.Close()

	manager.SetKeyHandler(classifier)
	manager.SetOnChange(func() { srv.BroadcastStatus(ctx) })
	icons.SetOnChange(srv.BroadcastStatus)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("starting api server: %w", err)
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing api server", "error", closeErr)
		}
	}()

	if mqttRelay != nil && cfg.MQTT.Announce {
		mqttRelay.Announce(announceHost(cfg.API.Host), cfg.API.Port)
	}

	if err := healthCheck(ctx, db, srv, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete", "address", srv.Addr())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.Run(gctx)
	})
	if mqttRelay != nil {
		g.Go(func() error {
			return mqttRelay.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("streamdeckapi stopped")
	return nil
}

// getConfigPath returns STREAMDECKAPI_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	return defaultConfigPath
}

func application(cfg config.ApplicationConfig) protocol.Application {
	return protocol.Application{
		Font:            cfg.Font,
		Language:        cfg.Language,
		Platform:        runtime.GOOS,
		PlatformVersion: cfg.PlatformVersion,
		Version:         version,
	}
}

// announceHost returns the host advertised over MQTT. A wildcard bind
// address is replaced by the machine's hostname.
func announceHost(bind string) string {
	switch bind {
	case "", "0.0.0.0", "::":
		if name, err := os.Hostname(); err == nil && name != "" {
			return name
		}
		return "localhost"
	default:
		return bind
	}
}

// healthCheck verifies every started component. mqttClient and
// influxClient may be nil when disabled.
func healthCheck(ctx context.Context, db *database.DB, srv *api.Server, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := srv.HealthCheck(ctx); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
