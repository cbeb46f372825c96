package config

import "go.uber.org/fx"

// Module provides *Config loaded from the supplied EmbeddedConfig.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
)
