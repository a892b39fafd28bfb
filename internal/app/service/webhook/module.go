package webhook

import "go.uber.org/fx"

// Module exposes the webhook reconciler via Fx.
var Module = fx.Options(
	fx.Provide(NewReconciler),
)
