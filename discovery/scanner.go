package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/leeforge/bot/errors"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// ExtractDirPrefix marks temporary extraction directories inside a module directory.
	ExtractDirPrefix = ".bot-extract-"

	// ExtractDirPattern is the os.MkdirTemp pattern for extraction directories.
	ExtractDirPattern = ExtractDirPrefix + "*"

	defaultConcurrency = 8
)

// Candidate is one entry of a module directory that may hold a module.
type Candidate struct {
	Directory string
	Name      string
}

// Path returns the absolute-or-relative path of the entry.
func (c Candidate) Path() string {
	return filepath.Join(c.Directory, c.Name)
}

// Scanner enumerates and validates module candidates.
type Scanner struct {
	compat      *Compatibility
	logger      *zap.Logger
	concurrency int
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithConcurrency bounds how many candidates are validated at once.
func WithConcurrency(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanner creates a scanner checking manifests against compat.
func NewScanner(compat *Compatibility, logger *zap.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scanner{
		compat:      compat,
		logger:      logger,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns the descriptors of every valid candidate in dirs, in
// directory then name order. Invalid candidates are logged and skipped.
func (s *Scanner) Scan(ctx context.Context, dirs ...string) ([]extension.Descriptor, error) {
	var found []extension.Descriptor
	for _, dir := range dirs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		s.PurgeOrphans(dir)

		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("cannot read module directory", zap.String("directory", dir), zap.Error(err))
			continue
		}

		candidates := make([]Candidate, 0, len(entries))
		for _, entry := range entries {
			if strings.HasPrefix(entry.Name(), ExtractDirPrefix) {
				continue
			}
			candidates = append(candidates, Candidate{Directory: dir, Name: entry.Name()})
		}

		descriptors, err := s.validateAll(ctx, candidates)
		if err != nil {
			return nil, err
		}
		found = append(found, descriptors...)
	}
	return found, nil
}

// validateAll validates candidates concurrently and keeps their order.
func (s *Scanner) validateAll(ctx context.Context, candidates []Candidate) ([]extension.Descriptor, error) {
	results := make([]*extension.Descriptor, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			d, err := s.Validate(c)
			if err != nil {
				s.logger.Warn("not a valid module",
					zap.String("candidate", c.Name),
					zap.String("directory", c.Directory),
					zap.Error(err),
				)
				return nil
			}
			results[i] = &d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]extension.Descriptor, 0, len(results))
	for _, d := range results {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// Validate checks a single candidate and builds its descriptor.
// The returned error is a candidate_rejected AppError wrapping a discovery sentinel.
func (s *Scanner) Validate(c Candidate) (extension.Descriptor, error) {
	d, err := s.validate(c)
	if err != nil {
		return extension.Descriptor{}, errors.NewCandidateRejected(c.Name, err)
	}
	return d, nil
}

func (s *Scanner) validate(c Candidate) (extension.Descriptor, error) {
	p := c.Path()
	info, err := os.Stat(p)
	if err != nil {
		return extension.Descriptor{}, err
	}

	archive := !info.IsDir()
	var (
		data     []byte
		hasEntry func(string) bool
	)
	if archive {
		if err := sniffArchive(p, info); err != nil {
			return extension.Descriptor{}, err
		}
		if data, hasEntry, err = readArchiveManifest(p); err != nil {
			return extension.Descriptor{}, err
		}
	} else {
		if data, err = ReadManifestFile(p); err != nil {
			return extension.Descriptor{}, err
		}
	}

	m, err := ParseManifest(data)
	if err != nil {
		return extension.Descriptor{}, err
	}
	d, err := s.compat.Describe(m)
	if err != nil {
		return extension.Descriptor{}, err
	}

	if archive && !hasEntry(d.EntryPoint) {
		return extension.Descriptor{}, fmt.Errorf("%w: %s", ErrMissingEntryPoint, d.EntryPoint)
	}

	d.ContainerPath = p
	d.ContainerName = c.Name
	d.Archive = archive
	return d, nil
}

// ReadManifestFile reads the manifest of an unpacked module directory.
func ReadManifestFile(dir string) ([]byte, error) {
	p := filepath.Join(dir, ManifestName)
	info, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	if !info.Mode().IsRegular() || info.Size() > maxManifestSize {
		return nil, ErrManifestUnreadable
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	return data, nil
}

// PurgeOrphans removes extraction directories left behind by an earlier
// process inside dir.
func (s *Scanner) PurgeOrphans(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), ExtractDirPrefix) {
			continue
		}
		p := filepath.Join(dir, entry.Name())
		if err := os.RemoveAll(p); err != nil {
			s.logger.Warn("failed to remove orphaned extraction directory", zap.String("path", p), zap.Error(err))
			continue
		}
		s.logger.Debug("removed orphaned extraction directory", zap.String("path", p))
	}
}
