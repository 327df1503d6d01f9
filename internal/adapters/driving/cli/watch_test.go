package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchCmd_RequiresDirectory(t *testing.T) {
	svc, cleanup := newTestServices()
	defer cleanup()

	_, err := execute(t, "watch", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "watch directory")
	assert.False(t, svc.orch.started)
}

func TestWatchCmd_RequiresExactlyOneArg(t *testing.T) {
	_, cleanup := newTestServices()
	defer cleanup()

	_, err := execute(t, "watch")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}
