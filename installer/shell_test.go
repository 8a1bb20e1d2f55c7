package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leeforge/bot/extension"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNopInstaller(t *testing.T) {
	res, err := Nop{}.Install(context.Background(), Request{})
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
}

func TestShellInstallerRunsInModuleDir(t *testing.T) {
	dir := t.TempDir()
	sh, err := NewShell(`echo "$BOT_MODULE_ID@$BOT_MODULE_VERSION $BOT_DEP_COUNT $BOT_DEP_0" > installed.txt; echo done`)
	require.NoError(t, err)

	res, err := sh.Install(context.Background(), Request{
		Dir: dir,
		Module: extension.Descriptor{
			ID:           "weather",
			Version:      "1.2.0",
			Dependencies: map[string]string{"github.com/leeforge/bot": "^2.0.0"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "done\n", res.Stdout)

	data, err := os.ReadFile(filepath.Join(dir, "installed.txt"))
	require.NoError(t, err)
	assert.Equal(t, "weather@1.2.0 1 github.com/leeforge/bot@^2.0.0\n", string(data))
}

func TestShellInstallerExitStatus(t *testing.T) {
	sh, err := NewShell(`echo broken >&2; exit 3`)
	require.NoError(t, err)

	res, err := sh.Install(context.Background(), Request{Dir: t.TempDir()})
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "broken\n", res.Stderr)
}

func TestNewShellRejectsSyntaxErrors(t *testing.T) {
	_, err := NewShell(`if then fi (`)
	assert.Error(t, err)
}
