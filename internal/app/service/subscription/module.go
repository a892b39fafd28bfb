package subscription

import (
	"github.com/studypass/billing/internal/platform/flowpay"

	"go.uber.org/fx"
)

// Module exposes the subscription ledger via Fx.
var Module = fx.Options(
	fx.Provide(func(c *flowpay.Client) RecurringGateway { return c }),
	fx.Provide(NewService),
)
