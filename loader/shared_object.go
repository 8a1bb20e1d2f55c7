package loader

import (
	"context"
	"fmt"
	"plugin"

	"github.com/leeforge/bot/extension"
)

// SharedObjectOpener loads entry points built with -buildmode=plugin. The
// object must export NewModule as a func(*extension.Base) (extension.Module, error).
type SharedObjectOpener struct{}

func (SharedObjectOpener) Open(_ context.Context, entryPath string, base *extension.Base) (extension.Module, error) {
	p, err := plugin.Open(entryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open shared object: %w", err)
	}
	sym, err := p.Lookup(extension.FactorySymbol)
	if err != nil {
		return nil, err
	}

	var factory extension.Factory
	switch f := sym.(type) {
	case func(*extension.Base) (extension.Module, error):
		factory = f
	case *extension.Factory:
		factory = *f
	default:
		return nil, fmt.Errorf("%s has incorrect type %T", extension.FactorySymbol, sym)
	}
	return factory(base)
}
