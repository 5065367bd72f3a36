package engine

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pkgkitd/pkgkitd/backend"
	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

// capabilityManifest is the YAML sidecar a concrete backend driver
// ships describing what it supports, rather than hard-coding
// capability bits into Go source (spec §4.E: "capability discovery").
type capabilityManifest struct {
	Name                    string   `yaml:"name"`
	Author                  string   `yaml:"author"`
	Description             string   `yaml:"description"`
	Roles                   []string `yaml:"roles"`
	Filters                 []string `yaml:"filters"`
	Groups                  []string `yaml:"groups"`
	MimeTypes               []string `yaml:"mime_types"`
	SupportsParallelization bool     `yaml:"supports_parallelization"`
}

// LoadCapabilityManifest reads a YAML capability manifest and applies
// it to b: Name/Author/Description plus the Roles/Filters/Groups/
// MimeTypes bitfields.
func LoadCapabilityManifest(b *backend.Backend, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.FailedConfigParsing, err, "read capability manifest %s", path)
	}
	var m capabilityManifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return pkgerrors.Wrap(pkgerrors.FailedConfigParsing, err, "parse capability manifest %s", path)
	}

	b.Name = m.Name
	b.Author = m.Author
	b.Description = m.Description
	b.MimeTypes = m.MimeTypes
	b.Roles = pkgenum.TextToRoleSet(strings.Join(m.Roles, ";"))
	b.Filters = pkgenum.TextToFilter(strings.Join(m.Filters, ";"))
	for _, g := range m.Groups {
		b.Groups = append(b.Groups, pkgenum.GroupFromText(g))
	}
	return nil
}
