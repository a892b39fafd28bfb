package entitlement

import "go.uber.org/fx"

// Module exposes the entitlement service via Fx.
var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(SeedDefaultFeatures),
)
