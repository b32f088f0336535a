package grpc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/Additional-Code/brewline/internal/config"
	"github.com/Additional-Code/brewline/pkg/errorbank"
)

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewHealth, NewServer),
	fx.Invoke(Run),
)

// NewHealth returns the health service reported by the gRPC server.
func NewHealth() *health.Server {
	return health.NewServer()
}

// NewServer builds a gRPC server exposing health and reflection, with logging and
// error-mapping interceptors.
func NewServer(logger *zap.Logger, healthSrv *health.Server) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unaryLogging(logger), unaryErrors),
		grpc.ChainStreamInterceptor(streamLogging(logger), streamErrors),
	)
	healthpb.RegisterHealthServer(server, healthSrv)
	reflection.Register(server)
	return server
}

func unaryLogging(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logCall(logger, "grpc unary call finished", info.FullMethod, time.Since(start), err)
		return resp, err
	}
}

func streamLogging(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		logCall(logger, "grpc stream call finished", info.FullMethod, time.Since(start), err)
		return err
	}
}

func logCall(logger *zap.Logger, msg, method string, duration time.Duration, err error) {
	fields := []zap.Field{zap.String("method", method), zap.Duration("duration", duration)}
	if err != nil {
		logger.Warn(msg, append(fields, zap.Error(err))...)
		return
	}
	logger.Debug(msg, fields...)
}

// unaryErrors converts application errors into gRPC statuses. Internal causes are not
// sent to clients.
func unaryErrors(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	resp, err := handler(ctx, req)
	return resp, toStatus(err)
}

func streamErrors(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	return toStatus(handler(srv, ss))
}

func toStatus(err error) error {
	var appErr *errorbank.AppError
	if err == nil || !errors.As(err, &appErr) {
		return err
	}
	return status.Error(appErr.GRPCCode(), strings.Join(appErr.Messages(), "; "))
}

// Run binds the gRPC server when enabled and manages its lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, healthSrv *health.Server, logger *zap.Logger) {
	if !cfg.GRPC.Enabled {
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
	var listener net.Listener

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			listener = ln
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
					logger.Fatal("grpc server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			healthSrv.Shutdown()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
