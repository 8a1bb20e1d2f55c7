package loader

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/leeforge/bot/extension"
)

// Opener turns an entry point file into a Module.
type Opener interface {
	Open(ctx context.Context, entryPath string, base *extension.Base) (extension.Module, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, entryPath string, base *extension.Base) (extension.Module, error)

func (f OpenerFunc) Open(ctx context.Context, entryPath string, base *extension.Base) (extension.Module, error) {
	return f(ctx, entryPath, base)
}

// defaultOpeners maps entry point extensions to their opener.
func defaultOpeners() map[string]Opener {
	return map[string]Opener{
		".go": NewInterpreterOpener(),
		".so": SharedObjectOpener{},
	}
}

func openerKey(entryPoint string) string {
	return strings.ToLower(filepath.Ext(entryPoint))
}
