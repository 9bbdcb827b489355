package checkout

import "go.uber.org/fx"

// Module exposes the checkout orchestrator via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
