package notifier

import "go.uber.org/fx"

// Module exposes the notifier via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
