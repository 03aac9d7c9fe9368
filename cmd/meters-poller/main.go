package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"meters-poller/internal/config"
	"meters-poller/internal/errors"
	"meters-poller/internal/health"
	"meters-poller/internal/history"
	"meters-poller/internal/logger"
	"meters-poller/internal/metrics"
	"meters-poller/internal/mqtt"
	"meters-poller/internal/reader"
	"meters-poller/internal/services"
)

// Version is overridden at build time with -ldflags "-X main.Version=..."
var Version = "dev"

// Application wires the poll loop to its collaborators
type Application struct {
	config    *config.Config
	publisher *mqtt.Publisher
	polling   *services.PollingService
	heartbeat *services.HeartbeatService
	monitor   *health.Monitor
	server    *metrics.Server
	history   *history.Store

	stopHeartbeat func()
}

// NewApplication loads configuration and builds every component
func NewApplication(configPath string, logLevel string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	logger.Init(&cfg.Logging)
	logger.LogStartup("Logging initialized with level: %s", cfg.Logging.Level)

	publisher, err := mqtt.NewPublisher(config.NewMQTTSettings(cfg), config.NewHASettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("error creating MQTT publisher: %w", err)
	}

	app := &Application{
		config:    cfg,
		publisher: publisher,
		monitor:   health.NewMonitor(),
	}

	var collector metrics.MetricsCollector = metrics.NewNullMetrics()
	if cfg.Metrics.Port > 0 {
		pm := metrics.NewPrometheusMetrics()
		collector = pm
		app.server = metrics.NewServer(cfg.Metrics.Port, pm.Handler(), health.NewHandler(app.monitor, Version))
	}

	publisher.SetConnectionListener(func(online bool) {
		app.monitor.SetOnline(online)
		collector.SetMQTTStatus(online)
	})

	opts := []services.Option{
		services.WithErrorHandler(errors.NewErrorHandler(publisher)),
		services.WithMetrics(collector),
		services.WithHealth(app.monitor),
		services.WithStopHook(app.haltHeartbeat),
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, fmt.Errorf("error opening history: %w", err)
		}
		app.history = store
		opts = append(opts, services.WithSink(store))
	}

	r := reader.New(config.NewReaderOptions(cfg), reader.WithObserver(collector))
	app.polling = services.NewPollingService(config.NewPollingSettings(cfg), r, publisher, cfg.Opener, opts...)
	app.heartbeat = services.NewHeartbeatService(publisher, config.NewMQTTSettings(cfg).HeartbeatInterval, nil)

	return app, nil
}

// Start connects to the broker and announces the devices
func (app *Application) Start(ctx context.Context) error {
	logger.LogInfo("🚀 Starting meters-poller %s...", Version)

	if app.server != nil {
		app.server.Start()
	}

	if err := app.publisher.Connect(ctx); err != nil {
		return fmt.Errorf("error connecting publisher: %w", err)
	}

	if err := app.publisher.PublishDiscovery(ctx, app.config.Devices); err != nil {
		logger.LogError("⚠️ Error publishing discovery configs: %v", err)
		if diagErr := app.publisher.PublishDiagnostic(ctx, errors.CodeConfig, fmt.Sprintf("Discovery config error: %v", err)); diagErr != nil {
			logger.LogError("⚠️ Error publishing diagnostic: %v", diagErr)
		}
	}

	if err := app.publisher.PublishStatusOnline(ctx); err != nil {
		logger.LogError("⚠️ Error publishing online status: %v", err)
	}
	return nil
}

// Run polls until ctx is cancelled, or once in one-shot mode
func (app *Application) Run(ctx context.Context, oneshot bool) error {
	if oneshot {
		stats := app.polling.RunOnce(ctx)
		logger.LogInfo("✅ Single cycle done: %s", stats)
		return nil
	}

	app.startHeartbeat(ctx)
	return app.polling.Run(ctx)
}

// startHeartbeat runs the heartbeat until ctx ends or haltHeartbeat is called
func (app *Application) startHeartbeat(ctx context.Context) {
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		app.heartbeat.Start(hbCtx)
	}()
	app.stopHeartbeat = func() {
		cancel()
		<-done
	}
}

// haltHeartbeat returns once no heartbeat can publish "online" any more
func (app *Application) haltHeartbeat() {
	if app.stopHeartbeat != nil {
		app.stopHeartbeat()
	}
}

// Stop releases the broker connection and local resources
func (app *Application) Stop() {
	logger.LogInfo("🛑 Stopping meters-poller...")

	app.publisher.Disconnect()

	if app.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.server.Shutdown(ctx); err != nil {
			logger.LogWarn("⚠️ Metrics server shutdown: %v", err)
		}
	}
	if app.history != nil {
		if err := app.history.Close(); err != nil {
			logger.LogWarn("⚠️ History close: %v", err)
		}
	}

	logger.LogInfo("✅ meters-poller stopped")
}

func main() {
	var (
		configPath string
		oneshot    bool
		logLevel   string
	)
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&oneshot, "oneshot", false, "Read/publish once and exit")
	flag.StringVar(&logLevel, "log", "", "Override logging level (error, warn, info, debug, trace)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := NewApplication(configPath, logLevel)
	if err != nil {
		logger.LogError("Application creation error: %v", err)
		os.Exit(1)
	}

	if err := app.Start(ctx); err != nil {
		logger.LogError("Application start error: %v", err)
		app.Stop()
		os.Exit(1)
	}

	if err := app.Run(ctx, oneshot); err != nil {
		logger.LogError("Polling ended with error: %v", err)
	}
	app.Stop()
}
