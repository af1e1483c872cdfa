package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Freshness bounds for the reading cache.
//
// MinCacheAge is the enforced floor for cache.max_age_ms. Allowing a lower
// value would let the poll loop hammer the bus faster than most I2C sensors
// can complete a conversion cycle.
const (
	MinCacheAge     = 100 * time.Millisecond
	DefaultCacheAge = 5 * time.Second
)

// Config is the root configuration structure for Enviro Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Buses     BusesConfig     `yaml:"buses"`
	Sensors   []SensorConfig  `yaml:"sensors"`
	Cache     CacheConfig     `yaml:"cache"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	History   HistoryConfig   `yaml:"history"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains instance identification.
type ServiceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// BusesConfig lists the physical buses the daemon may open.
// Bus names follow periph.io conventions ("1" or "/dev/i2c-1" for I2C,
// "SPI0.0" or "/dev/spidev0.0" for SPI). An empty name selects the
// platform default bus.
type BusesConfig struct {
	I2C I2CBusConfig `yaml:"i2c"`
	SPI SPIBusConfig `yaml:"spi"`
}

// I2CBusConfig contains I2C bus settings.
type I2CBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// SPIBusConfig contains SPI bus settings.
type SPIBusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
	Mode    int    `yaml:"mode"`
	SpeedHz int64  `yaml:"speed_hz"`
}

// SensorConfig is the declarative record a sensor is constructed from.
//
// Name must be unique across the sensor list; it is the identity key used
// by the registry, the cache engine, and reconfiguration diffing.
type SensorConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Bus is the bus kind the sensor is attached to: "i2c" or "spi".
	Bus string `yaml:"bus"`

	// Address is the I2C device address (ignored for SPI sensors).
	Address uint16 `yaml:"address"`

	// PollRateMS is a per-sensor polling hint in milliseconds.
	// Zero means "use the cache engine's freshness threshold".
	PollRateMS int `yaml:"poll_rate_ms"`

	// Extra carries free-form driver-specific settings (e.g. "repeatability=high").
	Extra string `yaml:"extra"`
}

// CacheConfig governs the reading cache engine and its retry policy.
type CacheConfig struct {
	// MaxAgeMS is the freshness threshold: entries older than this are
	// re-read on the next poll pass. Clamped to MinCacheAge.
	MaxAgeMS int `yaml:"max_age_ms"`

	// RetryAttempts is the total number of read attempts per sensor per
	// pass (first attempt plus retries).
	RetryAttempts int `yaml:"retry_attempts"`

	// RetryDelayMS is the fixed delay before each retry attempt.
	RetryDelayMS int `yaml:"retry_delay_ms"`

	// ReconnectIntervalMS is the cadence of the reconnect sweep for
	// disconnected sensors. Coarser than the poll interval by design.
	ReconnectIntervalMS int `yaml:"reconnect_interval_ms"`

	// SafeReadTimeoutMS bounds the wait for the maintenance lock in
	// GetReadingSafe. On timeout an invalid reading is returned.
	SafeReadTimeoutMS int `yaml:"safe_read_timeout_ms"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite database settings for the reading history store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// HistoryConfig governs local reading-history retention.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`

	// RetentionHours is how long readings are kept before the prune loop
	// removes them.
	RetentionHours int `yaml:"retention_hours"`

	// PruneIntervalMinutes is the cadence of the prune loop.
	PruneIntervalMinutes int `yaml:"prune_interval_minutes"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket streaming settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: ENVIROCORE_SECTION_KEY
// For example: ENVIROCORE_MQTT_HOST, ENVIROCORE_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			ID:   "envirocore-01",
			Name: "Enviro Core",
		},
		Buses: BusesConfig{
			I2C: I2CBusConfig{Enabled: true, Name: ""},
			SPI: SPIBusConfig{Enabled: false, Name: "", Mode: 0, SpeedHz: 1_000_000},
		},
		Cache: CacheConfig{
			MaxAgeMS:            int(DefaultCacheAge / time.Millisecond),
			RetryAttempts:       4,
			RetryDelayMS:        5,
			ReconnectIntervalMS: 5000,
			SafeReadTimeoutMS:   100,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "envirocore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/envirocore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		History: HistoryConfig{
			Enabled:              true,
			RetentionHours:       72,
			PruneIntervalMinutes: 30,
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: ENVIROCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("ENVIROCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("ENVIROCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("ENVIROCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("ENVIROCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("ENVIROCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("ENVIROCORE_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("ENVIROCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Cache
	if v := os.Getenv("ENVIROCORE_CACHE_MAX_AGE_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Cache.MaxAgeMS = ms
		}
	}
}

// Validate checks the configuration for errors.
//
// Sensor records are deliberately NOT validated here: a malformed sensor
// record must not prevent the daemon from starting. The factory rejects
// bad records individually during (re)configuration and reports them by
// name and reason.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}

	if c.Cache.RetryAttempts < 1 {
		errs = append(errs, "cache.retry_attempts must be at least 1")
	}
	if c.Cache.RetryDelayMS < 0 {
		errs = append(errs, "cache.retry_delay_ms must not be negative")
	}
	if c.Cache.SafeReadTimeoutMS < 1 {
		errs = append(errs, "cache.safe_read_timeout_ms must be at least 1")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.History.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when history is enabled")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Buses.SPI.Enabled {
		if c.Buses.SPI.Mode < 0 || c.Buses.SPI.Mode > 3 {
			errs = append(errs, "buses.spi.mode must be between 0 and 3")
		}
		if c.Buses.SPI.SpeedHz <= 0 {
			errs = append(errs, "buses.spi.speed_hz must be positive")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MaxCacheAge returns the cache freshness threshold, clamped to the
// enforced floor.
func (c *Config) MaxCacheAge() time.Duration {
	age := time.Duration(c.Cache.MaxAgeMS) * time.Millisecond
	if age < MinCacheAge {
		return MinCacheAge
	}
	return age
}

// RetryDelay returns the inter-attempt delay for failed sensor reads.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Cache.RetryDelayMS) * time.Millisecond
}

// ReconnectInterval returns the cadence of the reconnect sweep.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.Cache.ReconnectIntervalMS) * time.Millisecond
}

// SafeReadTimeout returns the bounded wait for the maintenance lock.
func (c *Config) SafeReadTimeout() time.Duration {
	return time.Duration(c.Cache.SafeReadTimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
