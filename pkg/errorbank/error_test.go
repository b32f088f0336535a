package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err    *AppError
		status int
		code   codes.Code
	}{
		{Validation([]string{"a", "b"}), http.StatusBadRequest, codes.InvalidArgument},
		{BadRequest("bad"), http.StatusBadRequest, codes.InvalidArgument},
		{InvalidTransition("ready", "pending"), http.StatusBadRequest, codes.FailedPrecondition},
		{Unauthorized("who"), http.StatusUnauthorized, codes.Unauthenticated},
		{Forbidden("no"), http.StatusForbidden, codes.PermissionDenied},
		{NotFound("gone"), http.StatusNotFound, codes.NotFound},
		{Conflict("dup"), http.StatusConflict, codes.AlreadyExists},
		{Internal("boom"), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.StatusCode())
			assert.Equal(t, tc.code, tc.err.GRPCCode())
		})
	}
}

func TestValidationCarriesAllMessages(t *testing.T) {
	err := Validation([]string{"cart is empty", "notes too long"})
	assert.Equal(t, []string{"cart is empty", "notes too long"}, err.Messages())
	assert.Equal(t, "validation failed", err.Message())

	single := Validation([]string{"cart is empty"})
	assert.Equal(t, "cart is empty", single.Message())
}

func TestInvalidTransitionNamesEdge(t *testing.T) {
	err := InvalidTransition("preparing", "pending")
	assert.Equal(t, "preparing", err.Details()["from"])
	assert.Equal(t, "pending", err.Details()["to"])
	assert.Contains(t, err.Message(), "preparing")
	assert.Contains(t, err.Message(), "pending")
}

func TestInternalNeverExposesCause(t *testing.T) {
	cause := errors.New("pq: relation \"orders\" does not exist")
	err := Internal("failed to create order", WithCause(cause), WithDetail("sql", "SELECT 1"))

	assert.Equal(t, []string{internalMessage}, err.Messages())
	assert.Nil(t, err.Details())
	assert.ErrorIs(t, err, cause)
}

func TestFrom(t *testing.T) {
	assert.Nil(t, From(nil))

	wrapped := fmt.Errorf("wrap: %w", NotFound("order not found"))
	assert.Equal(t, KindNotFound, From(wrapped).Kind())

	plain := From(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, KindInternal, plain.Kind())
}

func TestIs(t *testing.T) {
	assert.True(t, Is(Forbidden("no"), KindForbidden))
	assert.False(t, Is(Forbidden("no"), KindNotFound))
	assert.False(t, Is(errors.New("plain"), KindInternal))
}
