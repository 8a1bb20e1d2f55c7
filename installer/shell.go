package installer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// Shell runs a POSIX shell script inside the module directory using an
// embedded interpreter. The script sees the module identity through
// BOT_MODULE_ID, BOT_MODULE_VERSION and BOT_MODULE_DIR, and every
// declared dependency as BOT_DEP_<n>="name@range".
type Shell struct {
	Script string
	Env    []string // extra KEY=VALUE pairs on top of the process environment
}

// NewShell parses script eagerly so configuration errors surface at startup.
func NewShell(script string, env ...string) (*Shell, error) {
	if _, err := parse(script); err != nil {
		return nil, err
	}
	return &Shell{Script: script, Env: env}, nil
}

func parse(script string) (*syntax.File, error) {
	prog, err := syntax.NewParser().Parse(strings.NewReader(script), "install")
	if err != nil {
		return nil, fmt.Errorf("installer script syntax error: %w", err)
	}
	return prog, nil
}

// Install runs the script and captures its output.
func (s *Shell) Install(ctx context.Context, req Request) (Result, error) {
	prog, err := parse(s.Script)
	if err != nil {
		return Result{ExitCode: 1}, err
	}

	var stdout, stderr bytes.Buffer
	runner, err := interp.New(
		interp.Dir(req.Dir),
		interp.Env(expand.ListEnviron(s.environ(req)...)),
		interp.StdIO(nil, &stdout, &stderr),
	)
	if err != nil {
		return Result{ExitCode: 1}, fmt.Errorf("failed to create interpreter: %w", err)
	}

	err = runner.Run(ctx, prog)
	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var status interp.ExitStatus
		if errors.As(err, &status) {
			result.ExitCode = int(status)
			return result, fmt.Errorf("installer exited with status %d", status)
		}
		result.ExitCode = 1
		return result, fmt.Errorf("installer failed: %w", err)
	}
	return result, nil
}

func (s *Shell) environ(req Request) []string {
	env := append(os.Environ(), s.Env...)
	env = append(env,
		"BOT_MODULE_ID="+req.Module.ID,
		"BOT_MODULE_VERSION="+req.Module.Version,
		"BOT_MODULE_DIR="+req.Dir,
	)

	names := make([]string, 0, len(req.Module.Dependencies))
	for name := range req.Module.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for i, name := range names {
		env = append(env, fmt.Sprintf("BOT_DEP_%d=%s@%s", i, name, req.Module.Dependencies[name]))
	}
	env = append(env, fmt.Sprintf("BOT_DEP_COUNT=%d", len(names)))
	return env
}
