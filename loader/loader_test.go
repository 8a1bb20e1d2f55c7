package loader

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/leeforge/bot/discovery"
	boterrors "github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/installer"
	"github.com/leeforge/bot/json"
	"github.com/leeforge/bot/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func manifest(id string) []byte {
	data, _ := json.Marshal(map[string]any{
		"name":         "bot-module-" + id,
		"version":      "1.0.0",
		"main":         "module.go",
		"dependencies": map[string]string{"github.com/leeforge/bot": "^2.0.0"},
		"bot-module":   map[string]string{"id": id, "name": id},
	})
	return data
}

func descriptor(id, containerPath string, archive bool) extension.Descriptor {
	return extension.Descriptor{
		ID:            id,
		Name:          id,
		Version:       "1.0.0",
		EntryPoint:    "module.go",
		ContainerPath: containerPath,
		ContainerName: filepath.Base(containerPath),
		Archive:       archive,
	}
}

func writeDir(t *testing.T, parent, id, source string) string {
	t.Helper()
	dir := filepath.Join(parent, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, discovery.ManifestName), manifest(id), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.go"), []byte(source), 0o644))
	return dir
}

func writeZip(t *testing.T, parent, name string, entries map[string][]byte) string {
	t.Helper()
	p := filepath.Join(parent, name)
	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()
	zw := zip.NewWriter(f)
	for entry, data := range entries {
		w, err := zw.Create(entry)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return p
}

// baseOpener returns the Base itself as the module.
var baseOpener = OpenerFunc(func(_ context.Context, _ string, base *extension.Base) (extension.Module, error) {
	return base, nil
})

type recordingInstaller struct {
	calls []installer.Request
	err   error
}

func (r *recordingInstaller) Install(_ context.Context, req installer.Request) (installer.Result, error) {
	r.calls = append(r.calls, req)
	return installer.Result{Stderr: "warning: something"}, r.err
}

func extractionDirs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), discovery.ExtractDirPrefix) {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestLoadDirectoryModule(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")

	reg := registry.New()
	inst := &recordingInstaller{}
	l := New(reg, nil, WithOpener(".go", baseOpener), WithInstaller(inst))

	m, err := l.Load(context.Background(), descriptor("weather", dir, false))
	require.NoError(t, err)
	assert.Equal(t, "weather", m.Descriptor().ID)
	assert.Equal(t, 1, reg.Len())
	require.Len(t, inst.calls, 1)
	assert.Equal(t, dir, inst.calls[0].Dir)
}

func TestLoadArchiveExtractsNextToArchive(t *testing.T) {
	parent := t.TempDir()
	p := writeZip(t, parent, "weather.zip", map[string][]byte{
		discovery.ManifestName: manifest("weather"),
		"module.go":            []byte("package weather\n"),
		"assets/readme.txt":    []byte("hello"),
	})

	var seen string
	opener := OpenerFunc(func(_ context.Context, entryPath string, base *extension.Base) (extension.Module, error) {
		seen = entryPath
		return base, nil
	})

	l := New(registry.New(), nil, WithOpener(".go", opener))
	_, err := l.Load(context.Background(), descriptor("weather", p, true))
	require.NoError(t, err)

	dirs := extractionDirs(t, parent)
	require.Len(t, dirs, 1)
	assert.Equal(t, filepath.Join(parent, dirs[0], "module.go"), seen)
	assert.FileExists(t, filepath.Join(parent, dirs[0], "assets", "readme.txt"))
}

func TestLoadArchiveFailureRemovesExtraction(t *testing.T) {
	parent := t.TempDir()
	p := writeZip(t, parent, "weather.zip", map[string][]byte{
		discovery.ManifestName: manifest("weather"),
		"module.go":            []byte("package weather\n"),
	})

	failing := OpenerFunc(func(context.Context, string, *extension.Base) (extension.Module, error) {
		return nil, errors.New("boom")
	})
	reg := registry.New()
	l := New(reg, nil, WithOpener(".go", failing))

	_, err := l.Load(context.Background(), descriptor("weather", p, true))
	require.Error(t, err)
	assert.True(t, boterrors.IsType(err, boterrors.ErrorTypeConstruction))
	assert.Empty(t, extractionDirs(t, parent))
	assert.Zero(t, reg.Len())
}

func TestExtractRejectsZipSlip(t *testing.T) {
	parent := t.TempDir()
	p := writeZip(t, parent, "evil.zip", map[string][]byte{
		discovery.ManifestName: manifest("evil"),
		"../escaped.txt":       []byte("nope"),
	})

	_, err := extract(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	assert.NoFileExists(t, filepath.Join(parent, "escaped.txt"))
	assert.Empty(t, extractionDirs(t, parent))
}

func TestLoadRejectsManifestMismatch(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")

	l := New(registry.New(), nil, WithOpener(".go", baseOpener))
	_, err := l.Load(context.Background(), descriptor("dice", dir, false))
	assert.Error(t, err)
}

func TestLoadRejectsMissingEntryPoint(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "module.go")))

	l := New(registry.New(), nil, WithOpener(".go", baseOpener))
	_, err := l.Load(context.Background(), descriptor("weather", dir, false))
	assert.ErrorIs(t, err, discovery.ErrMissingEntryPoint)
}

func TestInstallerFailureIsNotFatal(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")

	core, logs := observer.New(zap.DebugLevel)
	inst := &recordingInstaller{err: errors.New("network down")}
	l := New(registry.New(), zap.New(core), WithOpener(".go", baseOpener), WithInstaller(inst))

	_, err := l.Load(context.Background(), descriptor("weather", dir, false))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("dependency installation failed").Len())
	assert.Equal(t, 1, logs.FilterMessage("installer diagnostics").Len())
}

func TestLoadAllIsolatesFailures(t *testing.T) {
	parent := t.TempDir()
	good := writeDir(t, parent, "good", "package good\n")
	panics := writeDir(t, parent, "panics", "package panics\n")
	wrongID := writeDir(t, parent, "wrong", "package wrong\n")

	opener := OpenerFunc(func(_ context.Context, entryPath string, base *extension.Base) (extension.Module, error) {
		switch filepath.Base(filepath.Dir(entryPath)) {
		case "panics":
			panic("constructor exploded")
		case "wrong":
			return extension.NewBase(extension.Descriptor{ID: "impostor"}, nil, nil, nil), nil
		}
		return base, nil
	})

	core, logs := observer.New(zap.DebugLevel)
	reg := registry.New()
	l := New(reg, zap.New(core), WithOpener(".go", opener))

	loaded, err := l.LoadAll(context.Background(), []extension.Descriptor{
		descriptor("panics", panics, false),
		descriptor("good", good, false),
		descriptor("wrong", wrongID, false),
	})
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].Descriptor().ID)
	assert.Equal(t, 1, reg.Len())

	failures := logs.FilterMessage("failed to load module").All()
	require.Len(t, failures, 2)
	assert.Contains(t, failures[0].ContextMap()["error"], "constructor exploded")
}

func TestLoadUnknownEntryPointKind(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "module.lua"), []byte("--"), 0o644))

	d := descriptor("weather", dir, false)
	d.EntryPoint = "module.lua"
	_, err := New(registry.New(), nil).Load(context.Background(), d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no opener")
}

func TestLoadDuplicateRegistrationFails(t *testing.T) {
	parent := t.TempDir()
	dir := writeDir(t, parent, "weather", "package weather\n")

	reg := registry.New()
	l := New(reg, nil, WithOpener(".go", baseOpener))
	_, err := l.Load(context.Background(), descriptor("weather", dir, false))
	require.NoError(t, err)

	_, err = l.Load(context.Background(), descriptor("weather", dir, false))
	assert.True(t, boterrors.IsType(err, boterrors.ErrorTypeConflict))
}
