package metrics

import (
	"go.uber.org/fx"
)

// Module provides the NoOp recorder and tracer. Infrastructure modules decorate them
// with real backends when metrics are enabled in configuration.
var Module = fx.Options(
	fx.Provide(NewNoOpTransactionRecorder),
	fx.Provide(NewNoOpTracer),
)
