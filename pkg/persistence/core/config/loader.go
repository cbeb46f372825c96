package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/exception"
	"github.com/tigerroll/surfin-persistence/pkg/persistence/support/util/logger"
)

const moduleName = "config"

// EnvPrefix prefixes every environment override, e.g. PERSISTENCE_SYSTEM_LOGGING_LEVEL.
const EnvPrefix = "PERSISTENCE_"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// LoadConfig loads configuration in order: defaults, embedded YAML (with ${VAR} expansion),
// .env file, environment variable overrides.
// It is expected to be called once during application startup.
//
// Parameters:
//
//	envFilePath: The path to the .env file. Empty means "./.env" if present.
//	embedded: The raw YAML bytes.
func LoadConfig(envFilePath string, embedded EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	var yamlConfig Config
	expanded := os.ExpandEnv(string(embedded))
	if err := yaml.Unmarshal([]byte(expanded), &yamlConfig); err != nil {
		return nil, exception.NewPersistenceError(moduleName, "failed to unmarshal embedded config", err)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(&cfg.Persistence).Elem(), EnvPrefix); err != nil {
		return nil, exception.NewPersistenceError(moduleName, "failed to load config from environment variables", err)
	}
	cfg.EmbeddedConfig = embedded
	return cfg, nil
}

// NewConfigProvider is an fx provider that loads *Config and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := LoadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}
	logger.SetLogLevel(cfg.Persistence.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Persistence.System.Logging.Level)

	if err := validate(cfg); err != nil {
		return nil, exception.NewPersistenceError(moduleName, "invalid configuration", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Persistence.Metrics.Backend {
	case MetricsBackendNone, MetricsBackendPrometheus, MetricsBackendOTel:
	default:
		return fmt.Errorf("unknown metrics backend '%s'", cfg.Persistence.Metrics.Backend)
	}
	switch cfg.Persistence.Telemetry.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("unknown telemetry protocol '%s'", cfg.Persistence.Telemetry.Protocol)
	}
	if cfg.Persistence.Transaction.IDStart < 0 {
		return fmt.Errorf("transaction id_start must not be negative, got %d", cfg.Persistence.Transaction.IDStart)
	}
	return nil
}

// mergeConfig copies every non-zero value of source over dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Persistence, &source.Persistence

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}

	if s.Transaction.ConnectionRef != "" {
		d.Transaction.ConnectionRef = s.Transaction.ConnectionRef
	}
	if s.Transaction.TableName != "" {
		d.Transaction.TableName = s.Transaction.TableName
	}
	if s.Transaction.IDStart != 0 {
		d.Transaction.IDStart = s.Transaction.IDStart
	}

	if s.Metrics.Backend != "" {
		d.Metrics.Backend = s.Metrics.Backend
	}
	if s.Metrics.Namespace != "" {
		d.Metrics.Namespace = s.Metrics.Namespace
	}

	if s.Telemetry.Endpoint != "" {
		d.Telemetry.Endpoint = s.Telemetry.Endpoint
	}
	if s.Telemetry.Protocol != "" {
		d.Telemetry.Protocol = s.Telemetry.Protocol
	}
	if s.Telemetry.Insecure {
		d.Telemetry.Insecure = true
	}
	if s.Telemetry.ServiceName != "" {
		d.Telemetry.ServiceName = s.Telemetry.ServiceName
	}

	if s.AdapterConfigs != nil {
		if d.AdapterConfigs == nil {
			d.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range s.AdapterConfigs {
			d.AdapterConfigs[key] = value
		}
	}
}

// loadStructFromEnv recursively overrides struct fields from environment variables named
// after the yaml tags, e.g. PERSISTENCE_METRICS_BACKEND. Map fields accept
// PREFIX_<KEY>_<FIELD> entries, e.g. PERSISTENCE_DATABASE_DEFAULT_DATABASE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		switch field.Kind() {
		case reflect.Struct:
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		case reflect.Map:
			if field.Type().Key().Kind() == reflect.String && field.Type().Elem().Kind() == reflect.Interface {
				loadMapFromEnv(field, envVarName+"_")
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadMapFromEnv fills map[string]interface{} entries whose values are themselves maps.
// PERSISTENCE_DATABASE_DEFAULT_TYPE=sqlite sets AdapterConfigs["default"]["type"] = "sqlite".
func loadMapFromEnv(mapField reflect.Value, prefix string) {
	if mapField.IsNil() {
		mapField.Set(reflect.MakeMap(mapField.Type()))
	}
	m := mapField.Interface().(map[string]interface{})

	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		keyAndField := strings.SplitN(parts[0], "_", 2)
		if len(keyAndField) != 2 {
			continue
		}
		mapKey := strings.ToLower(keyAndField[0])
		fieldName := strings.ToLower(keyAndField[1])

		entry, ok := m[mapKey].(map[string]interface{})
		if !ok {
			entry = make(map[string]interface{})
			if existing, isMap := m[mapKey].(map[interface{}]interface{}); isMap {
				for k, v := range existing {
					entry[fmt.Sprint(k)] = v
				}
			}
		}
		entry[fieldName] = parts[1]
		m[mapKey] = entry
	}
}

// setField sets a scalar field from its string representation.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
