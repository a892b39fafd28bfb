package payment

import (
	"github.com/studypass/billing/internal/platform/flowpay"

	"go.uber.org/fx"
)

// Module exposes the payment gateway adapter via Fx.
var Module = fx.Options(
	fx.Provide(func(c *flowpay.Client) Gateway { return c }),
	fx.Provide(NewService),
)
