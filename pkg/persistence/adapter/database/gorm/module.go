package gorm

import (
	"go.uber.org/fx"
)

// Module provides the Resolver and the default ConnectionSource. Dialect providers come from the
// sqlite, mysql and postgres sub-package modules.
var Module = fx.Options(
	fx.Provide(NewResolver),
	fx.Provide(NewDefaultConnectionSource),
)
