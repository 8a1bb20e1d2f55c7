package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leeforge/bot/config"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/json"
	"github.com/leeforge/bot/logging"
	"github.com/leeforge/bot/tenant"
	"github.com/leeforge/bot/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--config-dir", t.TempDir()}, args...))
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func writeModule(t *testing.T, dir, name, id, ver string) {
	t.Helper()
	root := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(root, 0o755))
	manifest, err := json.Marshal(map[string]any{
		"name":         "bot-module-" + id,
		"version":      ver,
		"main":         "module.go",
		"dependencies": map[string]string{version.APIPackage: "^2.0.0"},
		"bot-module":   map[string]string{"id": id, "name": id},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, "module.json"), manifest, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "module.go"), []byte("package mod\n"), 0o644))
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	assert.Equal(t, "bot "+version.Version+" (extension API "+version.API+")\n", out)
}

func TestModulesCommand(t *testing.T) {
	dir := t.TempDir()
	writeModule(t, dir, "weather-1", "weather", "1.0.0")
	writeModule(t, dir, "weather-2", "weather", "1.2.0")
	writeModule(t, dir, "music", "music", "0.3.0")

	table := execute(t, "modules", dir)
	assert.Contains(t, table, "ID")
	assert.Contains(t, table, "1.2.0")
	assert.Contains(t, table, "music")
	assert.NotContains(t, table, "1.0.0")

	var all []extension.Descriptor
	require.NoError(t, json.Unmarshal([]byte(execute(t, "modules", "--all", "--json", dir)), &all))
	assert.Len(t, all, 3)

	assert.Equal(t, "no modules found\n", execute(t, "modules", t.TempDir()))
}

func TestBuildBotRequiresToken(t *testing.T) {
	cfg := &config.AppConfig{}
	logs := logging.NewFactory(logging.Config{Level: "error"})
	defer logs.Close()

	_, err := buildBot(context.Background(), cfg, logs)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInvalid))
}

func TestOpenTenantStore(t *testing.T) {
	ctx := context.Background()

	store, closers, err := openTenantStore(ctx, config.TenantConfig{Driver: "memory"}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &tenant.MemoryStore{}, store)
	assert.Empty(t, closers)

	store, closers, err = openTenantStore(ctx, config.TenantConfig{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "tenants.db"),
		CacheTTL: time.Minute,
	}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &tenant.CachedStore{}, store)
	require.Len(t, closers, 2)

	require.NoError(t, store.Save(ctx, &tenant.Overrides{TenantID: "g1", Prefix: "?"}))
	o, err := store.Load(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "?", o.Prefix)
	for i := len(closers) - 1; i >= 0; i-- {
		assert.NoError(t, closers[i]())
	}
}

func TestReloadLogLevel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: warn\n"), 0o644))
	cfg, conf, err := config.Load(config.Options{BasePath: dir, FileName: "config", FileType: "yaml", EnvPrefix: "BOTTEST"})
	require.NoError(t, err)
	logs := logging.NewFactory(cfg.Log)
	defer logs.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("log:\n  level: debug\n"), 0o644))
	require.NoError(t, conf.Reload())
	reloadLogLevel(conf, logs, zap.NewNop())(nil)

	assert.Equal(t, "debug", logs.Root().Level().String())
}
