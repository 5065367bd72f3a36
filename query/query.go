// Package query implements the search/filter engine every read-only
// role (search-*, get-updates, resolve, what-provides, ...) runs
// against a sack (spec §3/§4.G).
package query

import (
	"path"
	"strings"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/sack"
)

// Mode selects which content-match rule step 4 of §4.G applies.
type Mode int

const (
	ModeName Mode = iota
	ModeDetails
	ModeFile
	ModeProvides
	ModeGlob
)

// Meta is the per-package metadata the sack itself doesn't carry but
// the filter engine needs: the files a package ships (for ModeFile and
// the Application filter's desktop-file check) and the provides
// namespace strings a solver would expose. A backend driver supplies
// this via a MetaLookup; a query run without one treats every package
// as having no files/provides, which still lets name/glob searches and
// every non-content filter work.
type Meta struct {
	Files        []string
	Provides     []string
	Description  string
}

// MetaLookup resolves per-package Meta. Returning the zero Meta is
// always safe.
type MetaLookup func(id pkgid.ID) Meta

// ExtrasLookup supplies a distro-supplied icon name and localized
// summary (the pk-extra.c-derived supplemented feature in
// SPEC_FULL.md). Building results consults only LocalizedSummary, which
// replaces the package's summary; Icon is not used. A nil ExtrasLookup
// or a miss leaves the package's own summary untouched.
type ExtrasLookup interface {
	// Icon returns a named icon (never a path) for id, or "" if none.
	Icon(id pkgid.ID) string
	// LocalizedSummary returns a locale-specific summary for id, or
	// ("", false) if none is available.
	LocalizedSummary(id pkgid.ID, locale string) (string, bool)
}

// Request describes one query run.
type Request struct {
	Terms        []string
	Mode         Mode
	Filters      pkgenum.FilterSet
	NativeArches []string
	Locale       string

	Meta   MetaLookup
	Extras ExtrasLookup
}

var noMeta = Meta{}

func (r Request) metaFor(id pkgid.ID) Meta {
	if r.Meta == nil {
		return noMeta
	}
	return r.Meta(id)
}

// Run applies the ordered filter pipeline of §4.G to s and returns the
// matching packages in emission order (installed first, then
// available packages that don't duplicate an already-emitted installed
// (name, version, arch) triple — the "anti-duplicate rule").
func Run(s *sack.Sack, req Request) ([]job.Package, error) {
	if !req.Filters.Validate() {
		return nil, pkgerrors.New(pkgerrors.FilterInvalid, "installed and ~installed are mutually exclusive")
	}

	candidates := make([]job.Package, 0, len(s.Installed)+len(s.Remote))
	candidates = append(candidates, s.Installed...)
	candidates = append(candidates, s.Remote...)

	var out []job.Package
	for _, p := range candidates {
		if !req.matchesArch(p) {
			continue
		}
		if !req.matchesInstalled(p) {
			continue
		}
		if !req.matchesKind(p) {
			continue
		}
		if !req.matchesContent(p) {
			continue
		}
		out = append(out, p)
	}

	out = req.applyNewest(s, out)
	out = dedupInstalledFirst(out)
	out = req.applyExtras(out)
	return out, nil
}

func (r Request) matchesArch(p job.Package) bool {
	pos := r.Filters.Contains(pkgenum.FilterArch)
	neg := r.Filters.Contains(pkgenum.FilterNotArch)
	if !pos && !neg {
		return true
	}
	native := isNativeArch(p.ID.Arch, r.NativeArches)
	if pos {
		return native
	}
	return !native
}

func isNativeArch(arch string, native []string) bool {
	if arch == "noarch" || arch == "" {
		return true
	}
	for _, a := range native {
		if a == arch {
			return true
		}
	}
	return false
}

func (r Request) matchesInstalled(p job.Package) bool {
	pos := r.Filters.Contains(pkgenum.FilterInstalled)
	neg := r.Filters.Contains(pkgenum.FilterNotInstalled)
	if !pos && !neg {
		return true
	}
	if pos {
		return p.ID.IsInstalled()
	}
	return !p.ID.IsInstalled()
}

func (r Request) matchesKind(p job.Package) bool {
	if pos, neg := r.Filters.Contains(pkgenum.FilterSource), r.Filters.Contains(pkgenum.FilterNotSource); pos || neg {
		isSource := p.ID.Arch == "src"
		if pos && !isSource {
			return false
		}
		if neg && isSource {
			return false
		}
	}
	if pos, neg := r.Filters.Contains(pkgenum.FilterApplication), r.Filters.Contains(pkgenum.FilterNotApplication); pos || neg {
		isApp := r.shipsDesktopFile(p.ID)
		if pos && !isApp {
			return false
		}
		if neg && isApp {
			return false
		}
	}
	return true
}

func (r Request) shipsDesktopFile(id pkgid.ID) bool {
	for _, f := range r.metaFor(id).Files {
		if strings.HasPrefix(f, "/usr/share/applications/") && strings.HasSuffix(f, ".desktop") {
			return true
		}
	}
	return false
}

func (r Request) matchesContent(p job.Package) bool {
	if len(r.Terms) == 0 {
		return true
	}
	meta := r.metaFor(p.ID)
	for _, term := range r.Terms {
		if r.matchesOneTerm(p, meta, term) {
			return true
		}
	}
	return false
}

func (r Request) matchesOneTerm(p job.Package, meta Meta, term string) bool {
	lowerTerm := strings.ToLower(term)
	switch r.Mode {
	case ModeName:
		return strings.Contains(strings.ToLower(p.ID.Name), lowerTerm)
	case ModeDetails:
		return strings.Contains(strings.ToLower(p.ID.Name), lowerTerm) ||
			strings.Contains(strings.ToLower(p.Summary), lowerTerm) ||
			strings.Contains(strings.ToLower(meta.Description), lowerTerm)
	case ModeFile:
		for _, f := range meta.Files {
			if f == term || strings.HasSuffix(f, "/"+term) {
				return true
			}
		}
		return false
	case ModeProvides:
		return matchesProvides(meta.Provides, term)
	case ModeGlob:
		for _, candidate := range []string{p.ID.Name, p.Summary} {
			if ok, _ := path.Match(term, candidate); ok {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// ProvidesNamespaces decomposes a what-provides search term into every
// namespace a solver might expose it under (spec §4.G): the bare name
// plus each of the namespaced forms. A superset of namespaces beyond
// the PackageKit original is explicitly fine per spec.
func ProvidesNamespaces(term string) []string {
	namespaces := []string{
		"gstreamer0.10", "gstreamer1", "font", "mimehandler",
		"postscriptdriver", "plasma4", "plasma5", "language-support",
	}
	out := make([]string, 0, len(namespaces)+1)
	out = append(out, term)
	for _, ns := range namespaces {
		out = append(out, ns+"("+term+")")
	}
	return out
}

func matchesProvides(provides []string, term string) bool {
	for _, want := range ProvidesNamespaces(term) {
		for _, have := range provides {
			if have == want {
				return true
			}
		}
	}
	return false
}

// applyNewest implements the Newest filter: per arch, keep only the
// greatest-EVR package in the system repo and the greatest-EVR package
// in available repos, unioned (spec §4.G step 5).
func (r Request) applyNewest(s *sack.Sack, in []job.Package) []job.Package {
	pos := r.Filters.Contains(pkgenum.FilterNewest)
	neg := r.Filters.Contains(pkgenum.FilterNotNewest)
	if !pos && neg {
		return in
	}
	if !pos {
		return in
	}

	type bucketKey struct {
		name      string
		arch      string
		installed bool
	}
	bestIdx := make(map[bucketKey]int)
	for i, p := range in {
		key := bucketKey{name: p.ID.Name, arch: p.ID.Arch, installed: p.ID.IsInstalled()}
		cur, ok := bestIdx[key]
		if !ok || pkgid.CompareEVR(p.ID.Version, in[cur].ID.Version) > 0 {
			bestIdx[key] = i
		}
	}
	keep := make(map[int]bool, len(bestIdx))
	for _, i := range bestIdx {
		keep[i] = true
	}
	out := make([]job.Package, 0, len(keep))
	for i, p := range in {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// dedupInstalledFirst emits every installed package first, then
// available packages that don't share (name, version, arch) with an
// already-emitted installed package (spec §4.G's "anti-duplicate
// rule").
func dedupInstalledFirst(in []job.Package) []job.Package {
	var installed, available []job.Package
	for _, p := range in {
		if p.ID.IsInstalled() {
			installed = append(installed, p)
		} else {
			available = append(available, p)
		}
	}

	seen := make(map[string]bool, len(installed))
	for _, p := range installed {
		seen[p.ID.Name+";"+p.ID.Version+";"+p.ID.Arch] = true
	}

	out := make([]job.Package, 0, len(in))
	out = append(out, installed...)
	for _, p := range available {
		key := p.ID.Name + ";" + p.ID.Version + ";" + p.ID.Arch
		if seen[key] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r Request) applyExtras(in []job.Package) []job.Package {
	if r.Extras == nil {
		return in
	}
	out := make([]job.Package, len(in))
	for i, p := range in {
		if text, ok := r.Extras.LocalizedSummary(p.ID, r.Locale); ok && text != "" {
			p.Summary = text
		}
		out[i] = p
	}
	return out
}
