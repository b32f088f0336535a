package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/Additional-Code/brewline/pkg/errorbank"
)

func TestToStatusMapsApplicationErrors(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
		msg  string
	}{
		{errorbank.NotFound("order not found"), codes.NotFound, "order not found"},
		{errorbank.InvalidTransition("completed", "pending"), codes.FailedPrecondition, "cannot change order status from completed to pending"},
		{errorbank.Forbidden("admin privileges required"), codes.PermissionDenied, "admin privileges required"},
		{errorbank.Internal("boom", errorbank.WithCause(errors.New("db down"))), codes.Internal, "internal server error"},
	}
	for _, tc := range cases {
		st, ok := status.FromError(toStatus(tc.err))
		require.True(t, ok)
		assert.Equal(t, tc.code, st.Code())
		assert.Equal(t, tc.msg, st.Message())
	}

	assert.NoError(t, toStatus(nil))
	plain := errors.New("plain")
	assert.Equal(t, plain, toStatus(plain))
}

func TestHealthService(t *testing.T) {
	healthSrv := NewHealth()
	server := NewServer(zap.NewNop(), healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	listener := bufconn.Listen(1 << 20)
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
