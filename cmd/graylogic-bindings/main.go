// Gray Logic Bindings - device channel binding service
//
// This is the main entry point for the bindings service. It connects
// declared page entities to device server channels:
//   - Input bindings turn device data into entity events
//   - Output bindings turn entity attributes and style into device writes
//   - Every event is journaled, streamed over WebSocket and published on MQTT
//
// Configuration lives in configs/config.yaml (service) and
// configs/bindings.yaml (bindings and entities).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/gray-logic-bindings/migrations"

	"github.com/nerrad567/gray-logic-bindings/internal/api"
	"github.com/nerrad567/gray-logic-bindings/internal/bdcom"
	"github.com/nerrad567/gray-logic-bindings/internal/bridges/bindings"
	"github.com/nerrad567/gray-logic-bindings/internal/entity"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-bindings/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-bindings/internal/journal"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on Ctrl+C or SIGTERM for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// It returns nil on clean shutdown.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic Bindings",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	eventJournal := journal.NewSQLiteStore(db.DB)

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Connect to the device server
	deviceServer, err := bdcom.Connect(ctx, bdcom.FromConfig(cfg.DeviceServer))
	if err != nil {
		return fmt.Errorf("connecting to device server: %w", err)
	}
	defer func() {
		log.Info("closing device server connection")
		if closeErr := deviceServer.Close(); closeErr != nil {
			log.Error("error closing device server", "error", closeErr)
		}
	}()
	deviceServer.SetLogger(log)
	log.Info("device server connected", "url", cfg.DeviceServer.URL)

	// WebSocket hub is shared between the binding hub (producer) and the
	// API server (consumers).
	wsHub := api.NewHub(cfg.WebSocket, log)
	go wsHub.Run(ctx)

	bindingHub, err := startBindingHub(ctx, cfg, bindingDeps{
		transport: deviceServer,
		mqtt:      mqttClient,
		journal:   eventJournal,
		influx:    influxClient,
		wsHub:     wsHub,
	}, log)
	if err != nil {
		return fmt.Errorf("starting binding hub: %w", err)
	}
	defer func() {
		log.Info("stopping binding hub")
		bindingHub.Stop()
	}()

	// Start API server
	apiServer, err := api.New(api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Bindings:    bindingHub,
		Journal:     eventJournal,
		ExternalHub: wsHub,
		Version:     version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, influxClient, deviceServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// API server, binding hub, device server, InfluxDB, MQTT, database.

	log.Info("Gray Logic Bindings stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses GRAYLOGIC_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GRAYLOGIC_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bindingDeps groups the connections the binding hub publishes to.
type bindingDeps struct {
	transport *bdcom.Client
	mqtt      *mqtt.Client
	journal   journal.Store
	influx    *influxdb.Client
	wsHub     *api.Hub
}

// startBindingHub loads the bindings declaration, builds the hub and
// activates every binding.
func startBindingHub(ctx context.Context, cfg *config.Config, deps bindingDeps, log *logging.Logger) (*bindings.Hub, error) {
	bindCfg, err := bindings.LoadConfig(cfg.Bindings.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("loading bindings config: %w", err)
	}
	// The service config wins over the declaration file when set.
	if cfg.Bindings.HealthInterval > 0 {
		bindCfg.Hub.HealthInterval = cfg.Bindings.HealthInterval
	}
	log.Info("bindings config loaded",
		"path", cfg.Bindings.ConfigFile,
		"bindings", len(bindCfg.Bindings),
		"entities", len(bindCfg.Entities),
	)

	registry := entity.NewRegistry()
	registry.SetLogger(log)

	opts := bindings.Options{
		Config:           bindCfg,
		Transport:        deps.transport,
		Registry:         registry,
		MQTT:             deps.mqtt,
		Journal:          deps.journal,
		Broadcaster:      deps.wsHub,
		Logger:           log,
		Version:          version,
		Concurrency:      cfg.Bindings.ActivationConcurrency,
		JournalRetention: time.Duration(cfg.Bindings.JournalRetention) * time.Hour,
	}
	// Left unset when disabled so the hub sees a nil interface.
	if deps.influx != nil {
		opts.Telemetry = deps.influx
	}

	hub, err := bindings.NewHub(opts)
	if err != nil {
		return nil, fmt.Errorf("creating binding hub: %w", err)
	}

	if err := hub.Start(ctx); err != nil {
		hub.Stop()
		return nil, fmt.Errorf("starting binding hub: %w", err)
	}

	health := hub.Health()
	log.Info("binding hub started",
		"active", health.Bindings.Active,
		"inert", health.Bindings.Inert,
		"entities", health.EntitiesManaged,
	)
	return hub, nil
}

// healthCheck verifies all infrastructure connections are healthy.
// influxClient may be nil when InfluxDB is disabled.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, deviceServer *bdcom.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if err := deviceServer.HealthCheck(ctx); err != nil {
		return fmt.Errorf("device server: %w", err)
	}

	return nil
}
