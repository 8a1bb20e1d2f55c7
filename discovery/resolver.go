package discovery

import (
	"cmp"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/leeforge/bot/extension"
	"go.uber.org/zap"
)

// Resolve keeps the highest version of every module id. The result is
// ordered by id; equal versions keep their scan order.
func Resolve(descriptors []extension.Descriptor, logger *zap.Logger) []extension.Descriptor {
	if logger == nil {
		logger = zap.NewNop()
	}

	sorted := slices.Clone(descriptors)
	slices.SortStableFunc(sorted, func(a, b extension.Descriptor) int {
		if c := cmp.Compare(a.ID, b.ID); c != 0 {
			return c
		}
		return compareVersions(b.Version, a.Version)
	})

	out := make([]extension.Descriptor, 0, len(sorted))
	for i, d := range sorted {
		if i > 0 && sorted[i-1].ID == d.ID {
			logger.Debug("skipping superseded module version",
				zap.String("module", d.ID),
				zap.String("version", d.Version),
				zap.String("path", d.ContainerPath),
			)
			continue
		}
		logger.Info("selected module version",
			zap.String("module", d.ID),
			zap.String("version", d.Version),
			zap.String("path", d.ContainerPath),
		)
		out = append(out, d)
	}
	return out
}

// compareVersions orders semantic versions; unparsable versions sort lowest.
func compareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA != nil && errB != nil:
		return 0
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}
