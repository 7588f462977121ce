//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFindProcess_SkipsSelf ensures the current process is never reported.
func TestFindProcess_SkipsSelf(t *testing.T) {
	t.Parallel()

	executable, err := os.Executable()
	require.NoError(t, err)

	pid, err := findProcess(filepath.Base(executable), os.Getpid())
	require.NoError(t, err)
	require.NotEqual(t, os.Getpid(), pid)

	pid, err = findProcess("no-such-oneshot-process", os.Getpid())
	require.NoError(t, err)
	require.Zero(t, pid)
}
