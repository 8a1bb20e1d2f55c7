package imports_test

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

const modulePath = "github.com/leeforge/bot"

// imports maps every non-test Go file under dir to its import paths.
func imports(t *testing.T, dir string) map[string][]string {
	t.Helper()
	out := map[string][]string{}
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != dir && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") || name == "testdata") {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".go" || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		f, err := parser.ParseFile(token.NewFileSet(), path, nil, parser.ImportsOnly)
		if err != nil {
			return err
		}
		for _, imp := range f.Imports {
			p, _ := strconv.Unquote(imp.Path.Value)
			out[path] = append(out[path], p)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

func TestNoLegacyFrameworkImports(t *testing.T) {
	legacy := []string{
		"github.com/leeforge/framework",
		"github.com/JsonLee12138/leeforge",
	}
	var hits []string
	for path, list := range imports(t, filepath.Clean("../..")) {
		for _, p := range list {
			for _, l := range legacy {
				if strings.HasPrefix(p, l) {
					hits = append(hits, path+": "+p)
				}
			}
		}
	}
	if len(hits) > 0 {
		t.Fatalf("legacy imports found: %v", hits[:min(10, len(hits))])
	}
}

// Module authors build against extension alone, so it must not pull in
// host packages.
func TestExtensionStaysThin(t *testing.T) {
	allowed := map[string]bool{
		modulePath + "/errors": true,
		modulePath + "/json":   true,
	}
	for path, list := range imports(t, filepath.Clean("../../extension")) {
		for _, p := range list {
			if strings.HasPrefix(p, modulePath+"/") && !allowed[p] {
				t.Errorf("%s imports host package %s", path, p)
			}
		}
	}
}
