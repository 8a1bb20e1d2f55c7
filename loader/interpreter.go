package loader

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"os"

	"github.com/leeforge/bot/extension"
	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// ScriptFactory is the signature interpreted entry points export as NewModule.
type ScriptFactory = func(base *extension.Base) (*extension.Hooks, error)

// InterpreterOpener evaluates Go source entry points with yaegi. The script
// may import the standard library and github.com/leeforge/bot/extension.
type InterpreterOpener struct{}

func NewInterpreterOpener() *InterpreterOpener {
	return &InterpreterOpener{}
}

func (o *InterpreterOpener) Open(ctx context.Context, entryPath string, base *extension.Base) (extension.Module, error) {
	src, err := os.ReadFile(entryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read entry point: %w", err)
	}

	pkg, err := packageName(entryPath, src)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if err := i.Use(Symbols); err != nil {
		return nil, fmt.Errorf("failed to load extension symbols: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		return nil, fmt.Errorf("entry point evaluation failed: %w", err)
	}

	v, err := i.EvalWithContext(ctx, pkg+"."+extension.FactorySymbol)
	if err != nil {
		return nil, fmt.Errorf("%s function not found: %w", extension.FactorySymbol, err)
	}
	factory, ok := v.Interface().(ScriptFactory)
	if !ok {
		return nil, fmt.Errorf("%s has incorrect signature (expected: func(*extension.Base) (*extension.Hooks, error))", extension.FactorySymbol)
	}

	hooks, err := factory(base)
	if err != nil {
		return nil, err
	}
	if hooks == nil {
		return nil, fmt.Errorf("%s returned no module", extension.FactorySymbol)
	}
	return extension.WithHooks(base, hooks), nil
}

func packageName(path string, src []byte) (string, error) {
	f, err := parser.ParseFile(token.NewFileSet(), path, src, parser.PackageClauseOnly)
	if err != nil {
		return "", fmt.Errorf("invalid entry point: %w", err)
	}
	return f.Name.Name, nil
}
