package menu

import "go.uber.org/fx"

// Module exposes the catalog service to Fx.
var Module = fx.Provide(NewService)
