package app

import (
	"go.uber.org/fx"

	"github.com/Additional-Code/brewline/internal/auth"
	"github.com/Additional-Code/brewline/internal/cache"
	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/internal/database"
	"github.com/Additional-Code/brewline/internal/logger"
	"github.com/Additional-Code/brewline/internal/messaging"
	"github.com/Additional-Code/brewline/internal/observability"
	repositoryaccount "github.com/Additional-Code/brewline/internal/repository/account"
	repositorymenu "github.com/Additional-Code/brewline/internal/repository/menu"
	repositoryorder "github.com/Additional-Code/brewline/internal/repository/order"
	grpcserver "github.com/Additional-Code/brewline/internal/server/grpc"
	httpserver "github.com/Additional-Code/brewline/internal/server/http"
	serviceaccount "github.com/Additional-Code/brewline/internal/service/account"
	servicemenu "github.com/Additional-Code/brewline/internal/service/menu"
	serviceorder "github.com/Additional-Code/brewline/internal/service/order"
	servicereport "github.com/Additional-Code/brewline/internal/service/report"
	transporthttp "github.com/Additional-Code/brewline/internal/transport/http"
	"github.com/Additional-Code/brewline/internal/worker"
	workerorder "github.com/Additional-Code/brewline/internal/worker/order"
)

// Core provides the foundational modules shared across executables.
var Core = fx.Options(
	config.Module,
	cache.Module,
	database.Module,
	logger.Module,
	messaging.Module,
	observability.Module,
	auth.Module,
	repositoryaccount.Module,
	repositorymenu.Module,
	repositoryorder.Module,
	serviceaccount.Module,
	servicemenu.Module,
	serviceorder.Module,
	servicereport.Module,
)

// HTTP wires the HTTP and gRPC servers on top of the core modules.
var HTTP = fx.Options(
	Core,
	httpserver.Module,
	grpcserver.Module,
	transporthttp.Module,
)

// Worker exposes background worker processing.
var Worker = fx.Options(
	Core,
	worker.Module,
	workerorder.Module,
)

// Module is the default application wiring: the API servers plus the in-process worker.
var Module = fx.Options(
	HTTP,
	worker.Module,
	workerorder.Module,
)
