package report

import "go.uber.org/fx"

// Module exposes the report service to Fx.
var Module = fx.Provide(NewService)
