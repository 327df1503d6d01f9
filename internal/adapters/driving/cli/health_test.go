package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docqa/internal/core/domain"
)

func TestHealthCmd_Healthy(t *testing.T) {
	_, cleanup := newTestServices()
	defer cleanup()

	out, err := execute(t, "health")

	require.NoError(t, err)
	assert.Contains(t, out, "embedding")
	assert.Contains(t, out, "vector index")
	assert.NotContains(t, out, "FAIL")
}

func TestHealthCmd_Unhealthy(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()
	svc.health.report = domain.HealthReport{Components: []domain.ComponentHealth{
		{Name: "generation", Healthy: false, Detail: "connection refused"},
	}}

	out, err := execute(t, "health")

	require.Error(t, err)
	assert.Contains(t, out, "FAIL  (connection refused)")
}

func TestHealthCmd_JSON(t *testing.T) {
	_, cleanup := newTestServices()
	defer cleanup()

	out, err := execute(t, "health", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "embedding"`)
}
