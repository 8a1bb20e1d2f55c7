package extension

import "maps"

// Descriptor is the validated identity of a module package.
// Registries hand out copies; a descriptor never changes after validation.
type Descriptor struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	APIRange      string            `json:"apiRange"`
	EntryPoint    string            `json:"entryPoint"`
	ContainerPath string            `json:"containerPath"`
	ContainerName string            `json:"containerName"`
	Archive       bool              `json:"archive"`
	Authors       []string          `json:"authors,omitempty"`
	Description   string            `json:"description,omitempty"`
	Website       string            `json:"website,omitempty"`
	Thumbnail     string            `json:"thumbnail,omitempty"`
	DonationLinks []string          `json:"donationLinks,omitempty"`
	Dependencies  map[string]string `json:"dependencies,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Authors = append([]string(nil), d.Authors...)
	out.DonationLinks = append([]string(nil), d.DonationLinks...)
	if d.Dependencies != nil {
		out.Dependencies = maps.Clone(d.Dependencies)
	}
	return out
}

func (d Descriptor) String() string {
	return d.ID + "@" + d.Version
}
