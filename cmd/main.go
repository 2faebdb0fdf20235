package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "spa_engine/docs"
	"spa_engine/internal/config"
	"spa_engine/internal/device"
	"spa_engine/internal/handlers"
	"spa_engine/internal/logger"
	"spa_engine/internal/metrics"
	"spa_engine/internal/models"
	"spa_engine/internal/mqtt"
	"spa_engine/internal/repository"
	"spa_engine/internal/repository/db"
	"spa_engine/internal/server"
	"spa_engine/internal/service"
)

var version = "dev"

const (
	defaultSimTick  = 1 * time.Second
	shutdownTimeout = 10 * time.Second
)

// @title        Spa Engine API
// @version      1.0
// @description  Spa controller: live state, commands and connection event log.
// @BasePath     /
func main() {
	// load config.yml + environment
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log().Level)

	// side-channel event log file
	eventLog, eventFile, err := openEventLog(cfg.Log())
	if err != nil {
		log.Fatalw("failed to open event log", "err", err)
	}
	defer func() {
		if cerr := eventFile.Close(); cerr != nil {
			log.Errorw("failed to close event log", "err", cerr)
		}
	}()

	// open DB
	conn, err := openDB(cfg.DBPath(), log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	driver, err := newDriver(cfg.Driver())
	if err != nil {
		log.Fatalw("unsupported spa driver", "driver", cfg.Driver(), "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(conn)
	events := service.NewEventLogService(repos.EventRepo, eventLog, eventFile, cfg.MaxEvents())
	collector := metrics.New()
	observers := []service.Observer{collector, service.NewStateLogger(eventLog, cfg.Spa)}

	var client *service.SpaClient
	bridge := newBridge(cfg.MQTT(), func(ctx context.Context, cmd models.Command) models.CommandResult {
		return client.Command(ctx, cmd)
	}, log)
	if bridge != nil {
		observers = append(observers, bridge)
	}

	client = service.NewSpaClient(driver, cfg.Spa, service.SpaClientOptions{
		Log:       log.Named("spa"),
		Events:    events,
		Observers: observers,
	})
	cfg.Watch(func(sp config.Spa) {
		log.Infow("config_reloaded", "host", sp.Host, "poll_interval", sp.PollInterval)
	})

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client.Start(ctx)
	if bridge != nil {
		if err := bridge.Connect(); err != nil {
			log.Warnw("mqtt bridge unavailable", "err", err)
		}
	}

	services := service.NewService(client, events)
	apiHandler := handlers.NewHandler(services, log.Named("http"),
		handlers.WithVersion(version),
		handlers.WithCORSOrigins(cfg.CORSOrigins()),
		handlers.WithMetrics(collector.Handler()),
	)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port(), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, client, bridge, log)
}

func openEventLog(c config.Log) (*logger.Logger, *logger.BoundedFile, error) {
	return logger.NewEventLogger("events", c.Dir, c.EventsFile, c.MaxBytes)
}

// openDB initializes the SQLite database.
func openDB(path string, log *logger.Logger) (*sql.DB, error) {
	if path == "" {
		log.Infow("db.path not set in config; using default file", "default", "spa.db")
		path = "spa.db"
	}
	return db.InitDB(path)
}

var errUnknownDriver = errors.New("unknown driver")

func newDriver(name string) (device.Driver, error) {
	switch name {
	case "", "sim":
		return device.NewSimulator(defaultSimTick), nil
	default:
		return nil, errUnknownDriver
	}
}

// newBridge returns nil when no broker is configured.
func newBridge(c config.MQTT, cmd mqtt.CommanderFunc, log *logger.Logger) *mqtt.Bridge {
	b, err := mqtt.NewBridge(c, cmd, log.Named("mqtt"))
	if err != nil {
		if !errors.Is(err, mqtt.ErrDisabled) {
			log.Warnw("mqtt bridge disabled", "err", err)
		}
		return nil
	}
	return b
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8000"
		}
		log.Infow("http server listening", "port", port)
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, client *service.SpaClient, bridge *mqtt.Bridge, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}

	// stop the spa loop and close its session
	cancel()
	client.Stop()

	if bridge != nil {
		bridge.Close()
	}
}
