package discovery

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

const (
	// minArchiveSize is the size of an empty zip end-of-central-directory record.
	minArchiveSize = 22

	// maxManifestSize bounds how much of a manifest entry is read.
	maxManifestSize = 1 << 20
)

var zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}

// sniffArchive rejects anything that cannot be a zip archive before any parse.
func sniffArchive(p string, info os.FileInfo) error {
	if !info.Mode().IsRegular() {
		return ErrNotRegularFile
	}
	if info.Size() < minArchiveSize {
		return fmt.Errorf("%w: %d bytes", ErrTooSmall, info.Size())
	}

	f, err := os.Open(p)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, len(zipSignature))
	if _, err := io.ReadFull(f, header); err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !bytes.Equal(header, zipSignature) {
		return ErrBadSignature
	}
	return nil
}

// readArchiveManifest reads only the manifest entry of the archive and
// reports whether entryPoint is one of its entries.
func readArchiveManifest(p string) (data []byte, hasEntry func(string) bool, err error) {
	r, err := zip.OpenReader(p)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return nil, nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	defer r.Close()

	names := make(map[string]struct{}, len(r.File))
	var manifest *zip.File
	for _, f := range r.File {
		name := path.Clean(f.Name)
		names[name] = struct{}{}
		if name == ManifestName {
			manifest = f
		}
	}
	if manifest == nil {
		return nil, nil, ErrNoManifest
	}

	rc, err := manifest.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	defer rc.Close()

	data, err = io.ReadAll(io.LimitReader(rc, maxManifestSize))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}

	return data, func(entry string) bool {
		_, ok := names[entry]
		return ok
	}, nil
}
