// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Runner    RunnerConfig    `yaml:"runner"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	LevelDB   LevelDBConfig   `yaml:"leveldb"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	NATS      NATSConfig      `yaml:"nats"`
}

// ServerConfig holds HTTP server configuration for the dashboard
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
}

// RunnerConfig holds worker pool configuration
type RunnerConfig struct {
	Workers    int  `yaml:"workers"`
	PortBuffer int  `yaml:"portBuffer"`
	Port0      int  `yaml:"port0"`
	Progress   bool `yaml:"progress"`
	Inspect    bool `yaml:"inspect"`
}

// LifecycleConfig holds liveness sweep configuration
type LifecycleConfig struct {
	SweepInterval int `yaml:"sweepInterval"` // seconds
	StaleAfter    int `yaml:"staleAfter"`    // seconds
}

// LevelDBConfig holds the result store configuration
type LevelDBConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds the optional run archive configuration
type PostgresConfig struct {
	URL string `yaml:"-"`
}

// NATSConfig holds the optional status event stream configuration
type NATSConfig struct {
	URL     string `yaml:"-"`
	Subject string `yaml:"subject"`
}

// Default configuration values
const (
	DefaultServerPort         = "8080"
	DefaultServerReadTimeout  = 30
	DefaultServerWriteTimeout = 30
	DefaultWorkers            = 4
	DefaultPortBuffer         = 5
	DefaultSweepInterval      = 5
	DefaultStaleAfter         = 30
	DefaultLevelDBPath        = "./data/leveldb"
	DefaultNATSSubject        = "helios.runs"
)

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as boolean or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// Load creates a new configuration from an optional YAML file with
// environment variable overrides. The Postgres archive and the NATS
// status stream stay disabled unless their URLs are set.
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server = ServerConfig{
		Port:         getEnv("HELIOS_SERVER_PORT", orDefault(config.Server.Port, DefaultServerPort)),
		ReadTimeout:  getEnvInt("HELIOS_SERVER_READ_TIMEOUT", orDefaultInt(config.Server.ReadTimeout, DefaultServerReadTimeout)),
		WriteTimeout: getEnvInt("HELIOS_SERVER_WRITE_TIMEOUT", orDefaultInt(config.Server.WriteTimeout, DefaultServerWriteTimeout)),
	}

	config.Runner = RunnerConfig{
		Workers:    getEnvInt("HELIOS_RUNNER_WORKERS", orDefaultInt(config.Runner.Workers, DefaultWorkers)),
		PortBuffer: getEnvInt("HELIOS_RUNNER_PORT_BUFFER", orDefaultInt(config.Runner.PortBuffer, DefaultPortBuffer)),
		Port0:      getEnvInt("HELIOS_RUNNER_PORT0", config.Runner.Port0),
		Progress:   getEnvBool("HELIOS_RUNNER_PROGRESS", config.Runner.Progress),
		Inspect:    getEnvBool("HELIOS_RUNNER_INSPECT", config.Runner.Inspect),
	}

	config.Lifecycle = LifecycleConfig{
		SweepInterval: getEnvInt("HELIOS_LIFECYCLE_SWEEP_INTERVAL", orDefaultInt(config.Lifecycle.SweepInterval, DefaultSweepInterval)),
		StaleAfter:    getEnvInt("HELIOS_LIFECYCLE_STALE_AFTER", orDefaultInt(config.Lifecycle.StaleAfter, DefaultStaleAfter)),
	}

	config.LevelDB = LevelDBConfig{
		Path: getEnv("HELIOS_LEVELDB_PATH", orDefault(config.LevelDB.Path, DefaultLevelDBPath)),
	}

	config.Postgres = PostgresConfig{
		URL: os.Getenv("HELIOS_POSTGRES_URL"),
	}

	config.NATS = NATSConfig{
		URL:     os.Getenv("HELIOS_NATS_URL"),
		Subject: getEnv("HELIOS_NATS_SUBJECT", orDefault(config.NATS.Subject, DefaultNATSSubject)),
	}

	return &config, nil
}

func orDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

func orDefaultInt(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}
