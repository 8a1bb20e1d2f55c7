package discovery

import (
	"archive/zip"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/leeforge/bot/json"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testAPIPackage = "github.com/leeforge/bot"

func manifestFor(id, version, apiRange string) map[string]any {
	return map[string]any{
		"name":         "bot-module-" + id,
		"version":      version,
		"main":         "module.go",
		"dependencies": map[string]string{testAPIPackage: apiRange},
		"bot-module":   map[string]string{"id": id, "name": id},
	}
}

func writeDirModule(t *testing.T, dir, name string, manifest map[string]any) string {
	t.Helper()
	root := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	if manifest != nil {
		data, err := json.Marshal(manifest)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(root, ManifestName), data, 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "module.go"), []byte("package mod\n"), 0o644))
	return root
}

func writeZipModule(t *testing.T, dir, name string, manifest map[string]any, files map[string]string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	if manifest != nil {
		data, err := json.Marshal(manifest)
		require.NoError(t, err)
		w, err := zw.Create(ManifestName)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	for entry, content := range files {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = fmt.Fprint(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return p
}

func newTestScanner(t *testing.T, apiVersion string) (*Scanner, *observer.ObservedLogs) {
	t.Helper()
	compat, err := NewCompatibility(apiVersion, testAPIPackage)
	require.NoError(t, err)
	core, logs := observer.New(zap.DebugLevel)
	return NewScanner(compat, zap.New(core), WithConcurrency(2)), logs
}
