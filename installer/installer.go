// Package installer resolves the runtime dependencies of a module before
// it is constructed.
package installer

import (
	"context"

	"github.com/leeforge/bot/extension"
)

// Request describes one module whose dependencies should be installed.
type Request struct {
	Dir    string // unpacked module root
	Module extension.Descriptor
}

// Result carries the installer's diagnostic output.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Installer installs a module's declared dependencies.
type Installer interface {
	Install(ctx context.Context, req Request) (Result, error)
}

// Nop is an Installer that does nothing.
type Nop struct{}

func (Nop) Install(context.Context, Request) (Result, error) {
	return Result{}, nil
}
