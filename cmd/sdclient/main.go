// sdclient watches a Stream Deck API server and logs every button event.
//
//	sdclient -host deck.local
//	sdclient -host deck.local -icon brave-otter-01 -svg play.svg
//
// With -icon and -svg it uploads one icon and exits.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/streamdeck-api/internal/infrastructure/config"
	"github.com/nerrad567/streamdeck-api/internal/infrastructure/logging"
	"github.com/nerrad567/streamdeck-api/internal/protocol"
	"github.com/nerrad567/streamdeck-api/pkg/client"
)

var version = "dev"

type options struct {
	host     string
	port     int
	level    string
	iconUUID string
	svgPath  string
}

func main() {
	var opts options
	flag.StringVar(&opts.host, "host", "localhost", "server host")
	flag.IntVar(&opts.port, "port", client.DefaultPort, "server port")
	flag.StringVar(&opts.level, "log-level", "info", "log level (debug, info, warn, error)")
	flag.StringVar(&opts.iconUUID, "icon", "", "button UUID to update (requires -svg)")
	flag.StringVar(&opts.svgPath, "svg", "", "SVG file to upload with -icon")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	log := logging.NewWithWriter(out, config.LoggingConfig{Level: opts.level, Format: "text"}, version)

	if opts.iconUUID != "" || opts.svgPath != "" {
		return uploadIcon(ctx, opts)
	}

	c := client.New(client.Options{
		Host:   opts.host,
		Port:   opts.port,
		Logger: log.Component("client"),
		OnConnect: func() {
			log.Info("connected", "host", opts.host)
		},
		OnButtonChange: func(uuid string, pressed bool) {
			log.Info("button", "uuid", uuid, "pressed", pressed)
		},
		OnButtonGesture: func(event protocol.Event, uuid string) {
			log.Info("gesture", "event", event, "uuid", uuid)
		},
		OnStatusUpdate: func(info protocol.Info) {
			log.Info("status", "devices", len(info.Devices), "buttons", len(info.Buttons))
		},
	})

	c.Start(ctx)
	<-ctx.Done()
	c.Stop()
	c.Wait()
	return nil
}

func uploadIcon(ctx context.Context, opts options) error {
	if opts.iconUUID == "" || opts.svgPath == "" {
		return fmt.Errorf("-icon and -svg must be used together")
	}
	svg, err := os.ReadFile(opts.svgPath)
	if err != nil {
		return fmt.Errorf("reading svg: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, client.DefaultRequestTimeout)
	defer cancel()

	c := client.New(client.Options{Host: opts.host, Port: opts.port})
	if err := c.UpdateIcon(ctx, opts.iconUUID, string(svg)); err != nil {
		return fmt.Errorf("updating icon: %w", err)
	}
	return nil
}
