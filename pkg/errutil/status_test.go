package errutil

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromHTTP(t *testing.T) {
	cases := map[int]CoreStatus{
		http.StatusTooManyRequests:     StatusTooManyRequests,
		http.StatusNotFound:            StatusNotFound,
		http.StatusForbidden:           StatusUnauthorized,
		http.StatusBadGateway:          StatusBadGateway,
		http.StatusServiceUnavailable:  StatusServiceUnavailable,
		http.StatusGatewayTimeout:      StatusTimeout,
		http.StatusUnprocessableEntity: StatusBadRequest,
		http.StatusOK:                  StatusUnknown,
	}

	for code, want := range cases {
		require.Equal(t, want, FromHTTP(code), "code %d", code)
	}
}

func TestIsTransient(t *testing.T) {
	require.False(t, IsTransient(nil))
	require.True(t, IsTransient(context.DeadlineExceeded))
	require.True(t, IsTransient(BadGateway("upstream", errors.New("502"))))
	require.True(t, IsTransient(fmt.Errorf("wrapped: %w", New(StatusTooManyRequests, "slow down"))))
	require.False(t, IsTransient(NotFound("payload", nil)))
	require.False(t, IsTransient(New(StatusInvariantViolation, "over cap")))
	require.False(t, IsTransient(errors.New("plain")))
}

func TestBaseErrorWrapping(t *testing.T) {
	root := errors.New("boom")
	err := Unavailable("xumm request failed", root)

	require.ErrorIs(t, err, root)
	require.Equal(t, StatusServiceUnavailable, StatusOf(err))
	require.Equal(t, "[service_unavailable] xumm request failed: boom", err.Error())
	require.Equal(t, "[conflict] busy", Conflict("busy", nil).Error())
	require.Equal(t, http.StatusConflict, StatusInvariantViolation.HTTPStatus())
}
