// Enviro Core - Environmental Monitoring Daemon
//
// This is the main entry point for the Enviro Core daemon. It polls
// environmental sensors over I2C and SPI, serves cached readings at
// memory latency, and fans updates out to MQTT, InfluxDB, a local
// SQLite history store, and WebSocket subscribers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/nerrad567/enviro-core/migrations"

	"github.com/nerrad567/enviro-core/internal/api"
	"github.com/nerrad567/enviro-core/internal/bus"
	"github.com/nerrad567/enviro-core/internal/command"
	"github.com/nerrad567/enviro-core/internal/infrastructure/config"
	"github.com/nerrad567/enviro-core/internal/infrastructure/database"
	"github.com/nerrad567/enviro-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/enviro-core/internal/infrastructure/logging"
	"github.com/nerrad567/enviro-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/enviro-core/internal/sensor"
	"github.com/nerrad567/enviro-core/internal/telemetry"
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
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Enviro Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath, "sensors", len(cfg.Sensors))

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
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

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Open hardware buses. A bus that fails to open is logged and left
	// nil; sensors configured on it are rejected at build time and the
	// daemon keeps running with whatever hardware is present.
	buses := openBuses(cfg, log)
	defer func() {
		if closeErr := buses.Close(); closeErr != nil {
			log.Error("error closing buses", "error", closeErr)
		}
	}()

	// Build the sensor pipeline: factory -> registry -> engine
	registry := sensor.NewRegistry()
	registry.SetLogger(log)

	factory := sensor.NewFactory(buses)
	factory.SetLogger(log)

	engine := telemetry.NewEngine(registry, factory, cfg)
	engine.SetLogger(log)

	// Apply the declarative sensor list. Per-record rejection is not
	// fatal; the daemon serves whatever was accepted.
	result, err := engine.Reconfigure(ctx, cfg.Sensors)
	if err != nil {
		for name, reason := range result.Rejected {
			log.Warn("sensor rejected", "sensor", name, "error", reason)
		}
	}
	log.Info("sensors configured",
		"added", len(result.Added),
		"rejected", len(result.Rejected),
	)

	// Polling service over the engine
	service := telemetry.NewService(engine, cfg)
	service.SetLogger(log)

	if cfg.History.Enabled {
		service.SetRecorder(telemetry.NewReadingHistory(db.DB))
		log.Info("reading history enabled",
			"retention_hours", cfg.History.RetentionHours,
		)
	}

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	var responder *command.Responder
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		service.AddPublisher(&mqttReadingPublisher{
			client: mqttClient,
			qos:    byte(cfg.MQTT.QoS),
			log:    log,
		})

		// Command responder: remote control over MQTT
		responder, err = command.NewResponder(command.Options{
			Engine:   engine,
			Registry: registry,
			Broker:   mqttClient,
			Logger:   log,
			QoS:      byte(cfg.MQTT.QoS),
			LoadSpecs: func() ([]config.SensorConfig, error) {
				fresh, loadErr := config.Load(configPath)
				if loadErr != nil {
					return nil, loadErr
				}
				return fresh.Sensors, nil
			},
		})
		if err != nil {
			return fmt.Errorf("creating command responder: %w", err)
		}
		if startErr := responder.Start(); startErr != nil {
			return fmt.Errorf("starting command responder: %w", startErr)
		}
		defer func() {
			if closeErr := responder.Close(); closeErr != nil {
				log.Error("error closing command responder", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT disabled")
	}

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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		service.AddPublisher(influxClient)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Start API server (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		var history api.HistoryStore
		if cfg.History.Enabled {
			history = telemetry.NewReadingHistory(db.DB)
		}

		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Engine:   engine,
			Registry: registry,
			History:  history,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}

		// WebSocket hub receives every poll pass's updates
		service.AddPublisher(apiServer.HubRef())

		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	// Start the polling service: warm-up pass, then poll, reconnect,
	// and prune loops.
	service.Start(ctx)
	defer service.Stop()

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. Polling service
	// 2. API server (if enabled)
	// 3. InfluxDB (if enabled)
	// 4. Command responder and MQTT (if enabled)
	// 5. Buses
	// 6. Database

	log.Info("Enviro Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses ENVIROCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("ENVIROCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// openBuses opens the enabled hardware buses. Failures degrade to a nil
// bus rather than aborting startup; a monitoring daemon with half its
// hardware is more useful than one that refuses to run.
func openBuses(cfg *config.Config, log *logging.Logger) *bus.Buses {
	buses := &bus.Buses{}

	if cfg.Buses.I2C.Enabled {
		i2cBus, err := bus.OpenI2C(cfg.Buses.I2C)
		if err != nil {
			log.Warn("i2c bus unavailable", "name", cfg.Buses.I2C.Name, "error", err)
		} else {
			buses.I2C = i2cBus
			log.Info("i2c bus open", "name", i2cBus.Name())
		}
	}

	if cfg.Buses.SPI.Enabled {
		spiBus, err := bus.OpenSPI(cfg.Buses.SPI)
		if err != nil {
			log.Warn("spi bus unavailable", "name", cfg.Buses.SPI.Name, "error", err)
		} else {
			buses.SPI = spiBus
			log.Info("spi bus open", "name", spiBus.Name())
		}
	}

	return buses
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
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

// mqttReadingPublisher publishes cache updates as retained MQTT messages.
// Retention means a subscriber joining later immediately sees the last
// value for every stream.
type mqttReadingPublisher struct {
	client *mqtt.Client
	topics mqtt.Topics
	qos    byte
	log    *logging.Logger
}

// PublishReading implements the polling service's Publisher interface.
// A NaN value (sensor never produced one) is published as null.
func (p *mqttReadingPublisher) PublishReading(sensorName string, kind sensor.Capability, r sensor.Reading) {
	var value any
	if !math.IsNaN(r.Value) {
		value = r.Value
	}
	payload, err := json.Marshal(map[string]any{
		"value":     value,
		"timestamp": r.Timestamp.UTC().Format(time.RFC3339Nano),
		"valid":     r.Valid,
	})
	if err != nil {
		return
	}

	topic := p.topics.Reading(sensorName, string(kind))
	if err := p.client.Publish(topic, payload, p.qos, true); err != nil {
		p.log.Debug("reading publish failed", "topic", topic, "error", err)
	}
}
