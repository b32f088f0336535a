package http

import (
	"go.uber.org/fx"

	accounttransport "github.com/Additional-Code/brewline/internal/transport/http/account"
	menutransport "github.com/Additional-Code/brewline/internal/transport/http/menu"
	ordertransport "github.com/Additional-Code/brewline/internal/transport/http/order"
	reporttransport "github.com/Additional-Code/brewline/internal/transport/http/report"
)

// Module aggregates all HTTP transport handlers.
var Module = fx.Options(
	accounttransport.Module,
	menutransport.Module,
	ordertransport.Module,
	reporttransport.Module,
)
