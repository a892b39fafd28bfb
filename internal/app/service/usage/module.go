package usage

import "go.uber.org/fx"

// Module exposes the usage meter via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
)
