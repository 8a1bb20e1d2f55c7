package loader

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeforge/bot/discovery"
)

// maxEntrySize bounds a single extracted file.
const maxEntrySize = 256 << 20

// extract unpacks archive into a fresh work directory next to it and
// returns that directory. The directory is removed on failure.
func extract(archive string) (string, error) {
	tmp, err := os.MkdirTemp(filepath.Dir(archive), discovery.ExtractDirPattern)
	if err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}
	if err := unpack(archive, tmp); err != nil {
		os.RemoveAll(tmp)
		return "", err
	}
	return tmp, nil
}

func unpack(archive, dir string) error {
	// Insecure entry names are reported per entry below.
	r, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := extractFile(dir, f); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(root string, f *zip.File) error {
	target := filepath.Join(root, filepath.FromSlash(f.Name))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("archive entry %q escapes the extraction directory", f.Name)
	}

	mode := f.Mode()
	switch {
	case mode.IsDir():
		return os.MkdirAll(target, 0o755)
	case !mode.IsRegular():
		return fmt.Errorf("archive entry %q is not a regular file", f.Name)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %q: %w", f.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return err
	}
	n, err := io.Copy(dst, io.LimitReader(src, maxEntrySize+1))
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to extract %q: %w", f.Name, err)
	}
	if n > maxEntrySize {
		return fmt.Errorf("archive entry %q is too large", f.Name)
	}
	return nil
}
