// Package loader materializes validated module descriptors into running
// extensions: archive extraction, dependency installation, construction
// and registration.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeforge/bot/discovery"
	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/installer"
	"github.com/leeforge/bot/registry"
	"go.uber.org/zap"
)

// ConfigSource returns the scoped configuration for a module id.
type ConfigSource func(moduleID string) extension.ConfigProvider

// Loader turns descriptors into registered modules.
type Loader struct {
	registry  *registry.Registry
	services  *extension.ServiceRegistry
	installer installer.Installer
	openers   map[string]Opener
	config    ConfigSource
	logger    *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithInstaller sets the dependency installer. Defaults to installer.Nop.
func WithInstaller(i installer.Installer) Option {
	return func(l *Loader) { l.installer = i }
}

// WithOpener registers an opener for entry points with the given file
// extension (including the dot), replacing any existing one.
func WithOpener(ext string, o Opener) Option {
	return func(l *Loader) { l.openers[strings.ToLower(ext)] = o }
}

// WithServices shares a service registry with every constructed module.
func WithServices(s *extension.ServiceRegistry) Option {
	return func(l *Loader) { l.services = s }
}

// WithConfig supplies per-module configuration.
func WithConfig(c ConfigSource) Option {
	return func(l *Loader) { l.config = c }
}

func New(reg *registry.Registry, logger *zap.Logger, opts ...Option) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &Loader{
		registry:  reg,
		services:  extension.NewServiceRegistry(),
		installer: installer.Nop{},
		openers:   defaultOpeners(),
		config:    func(string) extension.ConfigProvider { return extension.EmptyConfig() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LoadAll loads every descriptor in order. A descriptor that fails to
// load is logged and skipped; the others still load. Only context
// cancellation stops the batch.
func (l *Loader) LoadAll(ctx context.Context, descriptors []extension.Descriptor) ([]extension.Module, error) {
	loaded := make([]extension.Module, 0, len(descriptors))
	for _, d := range descriptors {
		if err := ctx.Err(); err != nil {
			return loaded, err
		}
		m, err := l.Load(ctx, d)
		if err != nil {
			l.logger.Error("failed to load module",
				zap.String("module", d.ID),
				zap.String("version", d.Version),
				zap.String("path", d.ContainerPath),
				zap.Error(err),
			)
			continue
		}
		loaded = append(loaded, m)
	}
	return loaded, nil
}

// Load runs one descriptor through the pipeline and registers the result.
func (l *Loader) Load(ctx context.Context, d extension.Descriptor) (m extension.Module, err error) {
	logger := l.logger.With(zap.String("module", d.ID), zap.String("version", d.Version))
	state := extension.LoadValidated
	advance := func(next extension.LoadState) {
		logger.Debug("load state", zap.Stringer("from", state), zap.Stringer("to", next))
		state = next
	}
	defer func() {
		if err != nil {
			advance(extension.LoadRejected)
		}
	}()

	root := d.ContainerPath
	if d.Archive {
		if root, err = extract(d.ContainerPath); err != nil {
			return nil, errors.NewConstruction(d.ID, err)
		}
		defer func() {
			if err != nil {
				os.RemoveAll(root)
			}
		}()
	}

	entryPath, err := verify(root, d)
	if err != nil {
		return nil, errors.NewConstruction(d.ID, err)
	}
	advance(extension.LoadExtracted)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.install(ctx, root, d, logger)
	advance(extension.LoadDependenciesChecked)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m, err = l.construct(ctx, entryPath, d); err != nil {
		return nil, errors.NewConstruction(d.ID, err)
	}
	advance(extension.LoadConstructed)

	if err := l.registry.Add(m); err != nil {
		return nil, err
	}
	advance(extension.LoadRegistered)

	logger.Info("module loaded", zap.String("path", d.ContainerPath))
	return m, nil
}

// verify re-reads the manifest from the materialized root and checks the
// entry point is present.
func verify(root string, d extension.Descriptor) (string, error) {
	data, err := discovery.ReadManifestFile(root)
	if err != nil {
		return "", err
	}
	m, err := discovery.ParseManifest(data)
	if err != nil {
		return "", err
	}
	if m.Module == nil || m.Module.ID != d.ID {
		return "", fmt.Errorf("manifest in %s no longer describes module %s", root, d.ID)
	}

	entryPath := filepath.Join(root, filepath.FromSlash(d.EntryPoint))
	info, err := os.Stat(entryPath)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s", discovery.ErrMissingEntryPoint, d.EntryPoint)
	}
	return entryPath, nil
}

// install runs the installer; failures are logged and loading continues.
func (l *Loader) install(ctx context.Context, root string, d extension.Descriptor, logger *zap.Logger) {
	res, err := l.installer.Install(ctx, installer.Request{Dir: root, Module: d.Clone()})
	if res.Stdout != "" {
		logger.Debug("installer output", zap.String("stdout", res.Stdout))
	}
	if res.Stderr != "" {
		logger.Debug("installer diagnostics", zap.String("stderr", res.Stderr))
	}
	if err != nil {
		logger.Warn("dependency installation failed", zap.Error(errors.NewInstall(root, err)))
	}
}

// construct calls the entry point, converting panics into errors.
func (l *Loader) construct(ctx context.Context, entryPath string, d extension.Descriptor) (m extension.Module, err error) {
	opener, ok := l.openers[openerKey(d.EntryPoint)]
	if !ok {
		return nil, fmt.Errorf("no opener for entry point %s", d.EntryPoint)
	}

	defer func() {
		if r := recover(); r != nil {
			m, err = nil, errors.FromPanic(r)
		}
	}()

	base := extension.NewBase(d, l.logger.Named(d.ID), l.services, l.config(d.ID))
	m, err = opener.Open(ctx, entryPath, base)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("entry point returned no module")
	}
	if got := m.Descriptor().ID; got != d.ID {
		return nil, fmt.Errorf("entry point built module %q, manifest declares %q", got, d.ID)
	}
	return m, nil
}
