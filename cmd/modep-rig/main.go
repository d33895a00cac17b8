// Command modep-rig runs the Orchestrator against a HOST, wiring the
// control-channel and event-stream Transport from a YAML configuration file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"github.com/o-murphy/modep-rig/config"
	"github.com/o-murphy/modep-rig/rig"
	"github.com/o-murphy/modep-rig/slot"
	"github.com/o-murphy/modep-rig/transport"
)

func main() {
	var (
		configPath     = pflag.StringP("config", "c", "modep-rig.yaml", "path to the rig configuration file")
		serverURL      = pflag.String("server-url", "", "override the configured HOST control-channel URL")
		eventsURL      = pflag.String("events-url", "", "HOST event-stream URL (ws:// or wss://)")
		requestTimeout = pflag.Duration("request-timeout", 2*time.Second, "HOST request and echo-wait timeout")
		verbose        = pflag.BoolP("verbose", "v", false, "enable debug logging")
	)
	pflag.Parse()

	logger := log.New(os.Stderr)
	if *verbose {
		logger.SetLevel(log.DebugLevel)
	}

	if err := run(*configPath, *serverURL, *eventsURL, *requestTimeout, logger); err != nil {
		logger.Fatal("modep-rig exited", "err", err)
	}
}

func run(configPath, serverURLOverride, eventsURL string, requestTimeout time.Duration, logger *log.Logger) error {
	file, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseURL := file.Server.URL
	if serverURLOverride != "" {
		baseURL = serverURLOverride
	}
	if baseURL == "" {
		return fmt.Errorf("no server.url configured and no --server-url given")
	}

	cfg, err := file.RigConfig(requestTimeout)
	if err != nil {
		return fmt.Errorf("project rig config: %w", err)
	}

	whitelist := file.Whitelist()
	inTerm, outTerm := file.Terminals()

	httpClient := transport.NewHTTPClient(baseURL, requestTimeout)

	errHandler := rig.NewLoggingErrorHandler(logger, nil)
	orch := rig.NewOrchestrator(httpClient, whitelist, inTerm, outTerm, cfg, errHandler, logger)
	orch.OnSlotAdded(func(s *slot.Slot) {
		logger.Info("slot added", "label", s.Label())
	})
	orch.OnSlotRemoved(func(label string) {
		logger.Info("slot removed", "label", label)
	})

	disp := rig.NewDispatcher(orch, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var source rig.EventSource
	if eventsURL != "" {
		ws, err := transport.DialWSEventSource(ctx, eventsURL, logger)
		if err != nil {
			return fmt.Errorf("dial event stream: %w", err)
		}
		defer ws.Close()
		source = ws
	} else {
		logger.Warn("no --events-url given; running without a HOST event stream")
		source = emptyEventSource{}
	}

	done := make(chan struct{})
	go func() {
		disp.Run(ctx, source)
		close(done)
	}()

	logger.Info("modep-rig running", "server", baseURL, "slots", len(orch.Slots()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received")
	cancel()
	<-done
	return nil
}

// emptyEventSource is used when the operator runs without an event-stream
// connection: the Orchestrator still serves local requests, it just never
// observes HOST-originated events.
type emptyEventSource struct{}

func (emptyEventSource) Events() <-chan rig.Event {
	ch := make(chan rig.Event)
	return ch
}
