package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for ugoku.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Session   SessionConfig   `yaml:"session"`
	Camera    CameraConfig    `yaml:"camera"`
	Motor     MotorConfig     `yaml:"motor"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SessionConfig names the inputs of a photography session.
type SessionConfig struct {
	// TasksFile is the CSV task list replayed in order.
	TasksFile string `yaml:"tasks_file"`

	// DevicesFile is the JSON or YAML device list (camera and motor namespaces).
	DevicesFile string `yaml:"devices_file"`

	// Preflight runs a dry validation of the whole task list before any
	// physical action. Default: true
	Preflight bool `yaml:"preflight"`

	// DryRun stops after the preflight validation.
	DryRun bool `yaml:"dry_run"`
}

// CameraConfig contains camera HTTP transport and retry tuning.
// Durations are expressed in (fractional) seconds.
type CameraConfig struct {
	MaxAttempts         int     `yaml:"max_attempts"`
	RetryDelay          float64 `yaml:"retry_delay"`
	ConnectTimeout      float64 `yaml:"connect_timeout"`
	ReadTimeout         float64 `yaml:"read_timeout"`
	APIRoot             string  `yaml:"api_root"`
	APIVersion          string  `yaml:"api_version"`
	DisableAutoPowerOff bool    `yaml:"disable_auto_power_off"`
	ConnectOnStart      bool    `yaml:"connect_on_start"`
}

// MotorConfig contains turntable serial settings.
type MotorConfig struct {
	BaudRate int `yaml:"baud_rate"`
	SpeedRPM int `yaml:"speed_rpm"`

	// CommandTimeout bounds every open and command on the serial link, in seconds.
	// Default: 5
	CommandTimeout float64 `yaml:"command_timeout"`

	// Settle waits |deg|/(rpm*6) seconds after a relative turn.
	Settle bool `yaml:"settle"`
}

// DatabaseConfig contains SQLite run journal settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
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
}

// APIConfig contains the status API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
// An empty path disables the file sink.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the run control endpoints.
// An empty secret leaves the control endpoints unauthenticated.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"`
}

// minRetryWindow is the shortest retry window a camera is known to tolerate.
const minRetryWindow = 2 * time.Second

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UGOKU_SECTION_KEY
// For example: UGOKU_DATABASE_PATH, UGOKU_TASKS_FILE
//
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg, err := Decode(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Decode is Load without validation, for commands that need only part of
// the configuration (minting a token, reading the journal).
func Decode(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			TasksFile:   "./tasks.csv",
			DevicesFile: "./devices.json",
			Preflight:   true,
		},
		Camera: CameraConfig{
			MaxAttempts:         20,
			RetryDelay:          0.5,
			ConnectTimeout:      3.0,
			ReadTimeout:         7.5,
			APIRoot:             "/ccapi",
			APIVersion:          "ver100",
			DisableAutoPowerOff: true,
			ConnectOnStart:      true,
		},
		Motor: MotorConfig{
			BaudRate:       115200,
			SpeedRPM:       30,
			CommandTimeout: 5,
			Settle:         true,
		},
		Database: DatabaseConfig{
			Path:        "./data/ugoku.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "ugoku",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
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
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Session
	if v := os.Getenv("UGOKU_TASKS_FILE"); v != "" {
		cfg.Session.TasksFile = v
	}
	if v := os.Getenv("UGOKU_DEVICES_FILE"); v != "" {
		cfg.Session.DevicesFile = v
	}
	if v := os.Getenv("UGOKU_DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.DryRun = b
		}
	}

	// Camera
	if v := os.Getenv("UGOKU_CAMERA_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Camera.MaxAttempts = n
		}
	}

	// Database
	if v := os.Getenv("UGOKU_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("UGOKU_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("UGOKU_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UGOKU_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("UGOKU_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("UGOKU_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("UGOKU_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together so an operator can fix
// the file in one pass.
func (c *Config) Validate() error {
	var errs []string

	if c.Session.TasksFile == "" {
		errs = append(errs, "session.tasks_file is required")
	}
	if c.Session.DevicesFile == "" {
		errs = append(errs, "session.devices_file is required")
	}

	if c.Camera.MaxAttempts < 1 {
		errs = append(errs, "camera.max_attempts must be at least 1")
	}
	if c.Camera.RetryDelay < 0 {
		errs = append(errs, "camera.retry_delay must not be negative")
	}
	if c.Camera.ConnectTimeout <= 0 || c.Camera.ReadTimeout <= 0 {
		errs = append(errs, "camera.connect_timeout and camera.read_timeout must be positive")
	}
	if !strings.HasPrefix(c.Camera.APIRoot, "/") {
		errs = append(errs, "camera.api_root must start with /")
	}

	if c.Motor.BaudRate <= 0 {
		errs = append(errs, "motor.baud_rate must be positive")
	}
	if c.Motor.SpeedRPM <= 0 {
		errs = append(errs, "motor.speed_rpm must be positive")
	}
	if c.Motor.CommandTimeout <= 0 {
		errs = append(errs, "motor.command_timeout must be positive")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when influxdb is enabled")
	}

	// A short secret would let anyone on the network forge a stop token.
	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Warnings reports settings that are legal but likely to misbehave.
func (c *Config) Warnings() []string {
	var warns []string
	if window := c.RetryDelay() * time.Duration(c.Camera.MaxAttempts); window < minRetryWindow {
		warns = append(warns, fmt.Sprintf(
			"camera retry window is %s (retry_delay x max_attempts); the camera might not respond fast enough", window))
	}
	if c.Security.JWT.Secret == "" && c.API.Enabled {
		warns = append(warns, "security.jwt.secret is empty; run control endpoints are unauthenticated")
	}
	return warns
}

// RetryDelay returns the fixed delay between camera request attempts.
func (c *Config) RetryDelay() time.Duration {
	return seconds(c.Camera.RetryDelay)
}

// AttemptTimeout returns the per-attempt camera request timeout.
func (c *Config) AttemptTimeout() time.Duration {
	return seconds(c.Camera.ConnectTimeout + c.Camera.ReadTimeout)
}

// ConnectTimeout returns the camera TCP dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return seconds(c.Camera.ConnectTimeout)
}

// MotorTimeout returns the serial command timeout boundary.
func (c *Config) MotorTimeout() time.Duration {
	return seconds(c.Motor.CommandTimeout)
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

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
