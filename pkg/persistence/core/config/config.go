// Package config provides structures and utilities for managing persistence configuration.
package config

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelSilent LogLevel = "SILENT"
)

// Metrics backends.
const (
	MetricsBackendNone       = "none"
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOTel       = "otel"
)

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// TransactionConfig holds settings of the transaction layer.
type TransactionConfig struct {
	// ConnectionRef names the database entry used by the default TransactionStateFactory.
	ConnectionRef string `yaml:"connection_ref"`
	// TableName is handed to the connection source when acquiring connections.
	TableName string `yaml:"table_name"`
	// IDStart is the value the transaction id counter starts from; the first id is IDStart+1.
	IDStart int64 `yaml:"id_start"`
}

// MetricsConfig selects the metrics backend.
type MetricsConfig struct {
	// Backend is one of "none", "prometheus", "otel".
	Backend string `yaml:"backend"`
	// Namespace prefixes Prometheus metric names.
	Namespace string `yaml:"namespace"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	// Endpoint is the collector address (host:port). Empty disables export.
	Endpoint string `yaml:"endpoint"`
	// Protocol is "grpc" or "http".
	Protocol string `yaml:"protocol"`
	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
}

// PersistenceConfig holds everything under the "persistence" top-level key.
type PersistenceConfig struct {
	System      SystemConfig      `yaml:"system"`
	Transaction TransactionConfig `yaml:"transaction"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	// AdapterConfigs holds the named database configurations, decoded lazily by providers.
	AdapterConfigs map[string]interface{} `yaml:"database"`
}

// Config is the root structure for the entire configuration.
type Config struct {
	Persistence PersistenceConfig `yaml:"persistence"`
	// EmbeddedConfig holds the raw source the config was loaded from.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	return &Config{
		Persistence: PersistenceConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Transaction: TransactionConfig{
				ConnectionRef: "default",
			},
			Metrics: MetricsConfig{
				Backend:   MetricsBackendNone,
				Namespace: "persistence",
			},
			Telemetry: TelemetryConfig{
				Protocol:    "grpc",
				ServiceName: "surfin-persistence",
			},
			AdapterConfigs: map[string]interface{}{},
		},
	}
}
