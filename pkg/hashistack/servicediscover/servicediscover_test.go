package servicediscover

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewConsulRegistry(t *testing.T) {
	r, err := NewConsulRegistry("127.0.0.1:8500", "curtailment-reconciler", "curtailment-reconciler-1", "host-a", 8080)
	require.NoError(t, err)

	var _ ServiceRegistry = r
	require.Equal(t, "curtailment-reconciler-1", r.serviceID)
	require.Equal(t, "http://host-a:8080/readyz", r.service.Check.HTTP)
	require.Equal(t, 8080, r.service.Port)
}
