package discovery

import (
	"fmt"
	"maps"
	"path"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/leeforge/bot/extension"
	"github.com/leeforge/bot/json"
)

const (
	// ManifestName is the package manifest file expected at a module's root.
	ManifestName = "module.json"

	// ModuleSection is the manifest key holding the extension identity.
	ModuleSection = "bot-module"
)

// Manifest is the on-disk package manifest. People and funding fields
// stay raw because they accept several shapes.
type Manifest struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Description          string            `json:"description"`
	Main                 string            `json:"main" default:"module.go"`
	Homepage             string            `json:"homepage"`
	Author               json.RawMessage   `json:"author"`
	Contributors         json.RawMessage   `json:"contributors"`
	Funding              json.RawMessage   `json:"funding"`
	Dependencies         map[string]string `json:"dependencies"`
	PeerDependencies     map[string]string `json:"peerDependencies"`
	OptionalDependencies map[string]string `json:"optionalDependencies"`
	DevDependencies      map[string]string `json:"devDependencies"`
	Module               *ModuleInfo       `json:"bot-module"`
}

// ModuleInfo is the framework-specific identity section.
type ModuleInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Thumbnail string `json:"thumbnail"`
}

// ParseManifest decodes manifest bytes.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestUnreadable, err)
	}
	return &m, nil
}

// MergedDependencies flattens the four dependency tables; later tables
// win on key collisions.
func (m *Manifest) MergedDependencies() map[string]string {
	merged := make(map[string]string)
	for _, table := range []map[string]string{
		m.Dependencies,
		m.PeerDependencies,
		m.OptionalDependencies,
		m.DevDependencies,
	} {
		maps.Copy(merged, table)
	}
	return merged
}

// Compatibility checks manifests against the host API version.
type Compatibility struct {
	APIVersion *semver.Version
	APIPackage string
}

// NewCompatibility parses the host API version.
func NewCompatibility(apiVersion, apiPackage string) (*Compatibility, error) {
	v, err := semver.NewVersion(apiVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid host API version %q: %w", apiVersion, err)
	}
	return &Compatibility{APIVersion: v, APIPackage: apiPackage}, nil
}

// Describe turns a parsed manifest into a descriptor, rejecting
// incompatible or incomplete manifests. Container fields are left empty.
func (c *Compatibility) Describe(m *Manifest) (extension.Descriptor, error) {
	deps := m.MergedDependencies()

	apiRange := strings.TrimSpace(deps[c.APIPackage])
	if apiRange == "" {
		return extension.Descriptor{}, ErrMissingAPIRange
	}
	constraint, err := semver.NewConstraint(apiRange)
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%w: %q: %v", ErrInvalidAPIRange, apiRange, err)
	}
	if !constraint.Check(c.APIVersion) {
		return extension.Descriptor{}, fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleAPI, c.APIVersion, apiRange)
	}

	if m.Module == nil {
		return extension.Descriptor{}, ErrMissingModuleInfo
	}
	if strings.TrimSpace(m.Module.ID) == "" || strings.TrimSpace(m.Module.Name) == "" {
		return extension.Descriptor{}, ErrMissingIdentity
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return extension.Descriptor{}, fmt.Errorf("%w: %q", ErrInvalidVersion, m.Version)
	}

	entry, err := cleanEntryPoint(m.Main)
	if err != nil {
		return extension.Descriptor{}, err
	}

	authors, err := normalizePeople(m.Author)
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%w: author: %v", ErrManifestUnreadable, err)
	}
	contributors, err := normalizePeople(m.Contributors)
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%w: contributors: %v", ErrManifestUnreadable, err)
	}
	funding, err := normalizePeople(m.Funding)
	if err != nil {
		return extension.Descriptor{}, fmt.Errorf("%w: funding: %v", ErrManifestUnreadable, err)
	}

	return extension.Descriptor{
		ID:            m.Module.ID,
		Name:          m.Module.Name,
		Version:       m.Version,
		APIRange:      apiRange,
		EntryPoint:    entry,
		Authors:       append(authors, contributors...),
		Description:   m.Description,
		Website:       m.Homepage,
		Thumbnail:     m.Module.Thumbnail,
		DonationLinks: funding,
		Dependencies:  deps,
	}, nil
}

// cleanEntryPoint normalizes main to a slash-separated path inside the container.
func cleanEntryPoint(main string) (string, error) {
	p := path.Clean(strings.ReplaceAll(strings.TrimSpace(main), "\\", "/"))
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == "" || strings.HasPrefix(p, "/") || p == ".." || strings.HasPrefix(p, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidEntryPoint, main)
	}
	return p, nil
}
