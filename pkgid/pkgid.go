// Package pkgid implements the canonical PackageId 4-tuple and its
// text round-trip (spec §3/§4.B).
package pkgid

import "strings"

// ID is the canonical (name, version, arch, data) tuple. data encodes
// origin: "installed", "installed:<repo>", "local", or a repo id.
type ID struct {
	Name    string
	Version string
	Arch    string
	Data    string
}

// Build concatenates the four fields into their canonical
// semicolon-delimited text form. No field may itself contain ';'; Build
// does not validate this — callers constructing an ID programmatically
// are expected to pass well-formed components, the same trust boundary
// the original backends operate under.
func Build(name, version, arch, data string) string {
	return strings.Join([]string{name, version, arch, data}, ";")
}

// String renders id in canonical form.
func (id ID) String() string {
	return Build(id.Name, id.Version, id.Arch, id.Data)
}

// Equal reports component-wise equality.
func (id ID) Equal(other ID) bool {
	return id.Name == other.Name && id.Version == other.Version &&
		id.Arch == other.Arch && id.Data == other.Data
}

// Split parses the canonical text form. It fails if the field count is
// not exactly 4 or any field contains an embedded newline.
func Split(text string) (ID, bool) {
	if strings.ContainsAny(text, "\n\r") {
		return ID{}, false
	}
	parts := strings.Split(text, ";")
	if len(parts) != 4 {
		return ID{}, false
	}
	return ID{Name: parts[0], Version: parts[1], Arch: parts[2], Data: parts[3]}, true
}

// Check reports whether text is a well-formed PackageId, matching
// pk_package_id_check in the original spawn-protocol validator.
func Check(text string) bool {
	_, ok := Split(text)
	return ok
}

// IsInstalled reports whether the id's data field marks it as coming
// from the system (installed, or installed from a named repo).
func (id ID) IsInstalled() bool {
	return id.Data == "installed" || strings.HasPrefix(id.Data, "installed:")
}

// IsLocal reports whether the id names an ad-hoc local file install.
func (id ID) IsLocal() bool {
	return id.Data == "local"
}

// RepoID returns the originating repo id: the part after "installed:"
// when installed-from-repo, or Data itself for a remote-repo package.
// Returns "" for "installed" (system) and "local" packages.
func (id ID) RepoID() string {
	if strings.HasPrefix(id.Data, "installed:") {
		return strings.TrimPrefix(id.Data, "installed:")
	}
	if id.Data == "installed" || id.Data == "local" {
		return ""
	}
	return id.Data
}

// List is a container of IDs with a text round trip: one id per line,
// semicolon-delimited, matching the EnumList text container in §3/§4.B.
type List []ID

// ToText renders the list newline-joined.
func (l List) ToText() string {
	parts := make([]string, len(l))
	for i, id := range l {
		parts[i] = id.String()
	}
	return strings.Join(parts, "\n")
}

// FromText parses a newline-joined list, skipping blank lines. Any
// malformed entry fails the whole parse, matching Split's strictness.
func FromText(text string) (List, bool) {
	if text == "" {
		return nil, true
	}
	lines := strings.Split(text, "\n")
	list := make(List, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		id, ok := Split(line)
		if !ok {
			return nil, false
		}
		list = append(list, id)
	}
	return list, true
}

// Contains reports whether id (by full equality) is present in l.
func (l List) Contains(id ID) bool {
	for _, other := range l {
		if other.Equal(id) {
			return true
		}
	}
	return false
}
