package menu

import "go.uber.org/fx"

// Module wires HTTP catalog handlers.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)
