package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/core/config"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
)

const testYAML = `
persistence:
  system:
    logging:
      level: DEBUG
  transaction:
    connection_ref: ledger
    id_start: 100
  metrics:
    backend: prometheus
  database:
    ledger:
      type: sqlite
      database: ${LEDGER_DB_PATH}
`

// missingEnvFile points godotenv at a file that does not exist so the working directory is not consulted.
func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, "UTC", cfg.Persistence.System.Timezone)
	assert.Equal(t, "INFO", cfg.Persistence.System.Logging.Level)
	assert.Equal(t, "default", cfg.Persistence.Transaction.ConnectionRef)
	assert.Equal(t, config.MetricsBackendNone, cfg.Persistence.Metrics.Backend)
	assert.Equal(t, "persistence", cfg.Persistence.Metrics.Namespace)
	assert.Equal(t, "grpc", cfg.Persistence.Telemetry.Protocol)
	assert.Empty(t, cfg.Persistence.Telemetry.Endpoint)
}

func TestLoadConfig_MergesYAMLOverDefaults(t *testing.T) {
	t.Setenv("LEDGER_DB_PATH", "/var/lib/ledger.db")

	cfg, err := config.LoadConfig(missingEnvFile(t), config.EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Persistence.System.Logging.Level)
	assert.Equal(t, "UTC", cfg.Persistence.System.Timezone)
	assert.Equal(t, "ledger", cfg.Persistence.Transaction.ConnectionRef)
	assert.Equal(t, int64(100), cfg.Persistence.Transaction.IDStart)
	assert.Equal(t, config.MetricsBackendPrometheus, cfg.Persistence.Metrics.Backend)
	assert.Equal(t, "persistence", cfg.Persistence.Metrics.Namespace)

	ledger, ok := cfg.Persistence.AdapterConfigs["ledger"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "sqlite", ledger["type"])
	assert.Equal(t, "/var/lib/ledger.db", ledger["database"])
	assert.Equal(t, config.EmbeddedConfig(testYAML), cfg.EmbeddedConfig)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PERSISTENCE_METRICS_BACKEND", "otel")
	t.Setenv("PERSISTENCE_TRANSACTION_ID_START", "500")
	t.Setenv("PERSISTENCE_TELEMETRY_INSECURE", "true")
	t.Setenv("PERSISTENCE_DATABASE_LEDGER_DATABASE", "/tmp/override.db")
	t.Setenv("PERSISTENCE_DATABASE_REPORTING_TYPE", "postgres")

	cfg, err := config.LoadConfig(missingEnvFile(t), config.EmbeddedConfig(testYAML))
	require.NoError(t, err)

	assert.Equal(t, config.MetricsBackendOTel, cfg.Persistence.Metrics.Backend)
	assert.Equal(t, int64(500), cfg.Persistence.Transaction.IDStart)
	assert.True(t, cfg.Persistence.Telemetry.Insecure)

	ledger := cfg.Persistence.AdapterConfigs["ledger"].(map[string]interface{})
	assert.Equal(t, "/tmp/override.db", ledger["database"])
	assert.Equal(t, "sqlite", ledger["type"])

	reporting := cfg.Persistence.AdapterConfigs["reporting"].(map[string]interface{})
	assert.Equal(t, "postgres", reporting["type"])
}

func TestLoadConfig_InvalidInput(t *testing.T) {
	_, err := config.LoadConfig(missingEnvFile(t), config.EmbeddedConfig("persistence: [unbalanced"))
	require.Error(t, err)
	assert.True(t, exception.IsPersistenceError(err))

	t.Setenv("PERSISTENCE_TRANSACTION_ID_START", "many")
	_, err = config.LoadConfig(missingEnvFile(t), config.EmbeddedConfig(testYAML))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PERSISTENCE_TRANSACTION_ID_START")
}

func TestNewConfigProvider_Validates(t *testing.T) {
	t.Setenv("PERSISTENCE_METRICS_BACKEND", "statsd")

	_, err := config.NewConfigProvider(config.ConfigParams{
		EmbeddedConfig: config.EmbeddedConfig(testYAML),
		EnvFilePath:    missingEnvFile(t),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown metrics backend 'statsd'")
}
