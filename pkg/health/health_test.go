package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type staticProbe struct {
	name string
	err  error
}

func (p staticProbe) Name() string                    { return p.name }
func (p staticProbe) Check(ctx context.Context) error { return p.err }

func serve(t *testing.T, h HealthService, path string) (*httptest.ResponseRecorder, Health) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body Health
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestLiveness(t *testing.T) {
	w, body := serve(t, ProvideHealth(HealthParams{}), "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, StatusHealthy, body.Status)
}

func TestReadinessAllProbesHealthy(t *testing.T) {
	h := ProvideHealth(HealthParams{Probes: []Probe{staticProbe{name: "reconciler"}}})

	w, body := serve(t, h, "/readyz")
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, body.Deps, 1)
	require.Equal(t, "reconciler", body.Deps[0].Name)
}

func TestReadinessFailingProbe(t *testing.T) {
	h := ProvideHealth(HealthParams{Probes: []Probe{
		staticProbe{name: "ok"},
		staticProbe{name: "reconciler", err: errors.New("last tick 2h ago")},
	}})

	w, body := serve(t, h, "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, StatusUnhealthy, body.Status)
	require.Equal(t, "reconciler not ready", body.Message)
	require.Equal(t, "last tick 2h ago", body.Deps[1].Message)
}
