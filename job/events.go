package job

import (
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
)

// Package is the result-item event payload (spec §3).
type Package struct {
	Info    pkgenum.Info
	ID      pkgid.ID
	Summary string
}

// Details carries the optional, heavier package metadata.
type Details struct {
	ID          pkgid.ID
	License     string
	Group       pkgenum.Group
	Description string
	URL         string
	Size        uint64
}

// Files lists the on-disk paths owned by a package.
type Files struct {
	ID    pkgid.ID
	Files []string
}

// UpdateDetail describes an available update (spec §3).
type UpdateDetail struct {
	ID           pkgid.ID
	Updates      pkgid.List
	Obsoletes    pkgid.List
	VendorURLs   []string
	BugzillaURLs []string
	CVEURLs      []string
	Restart      pkgenum.Restart
	Changelog    string
	State        pkgenum.UpgradeKind
	Issued       string
	Updated      string
}

// DistroUpgrade describes an available distribution upgrade.
type DistroUpgrade struct {
	State   pkgenum.UpgradeKind
	Name    string
	Summary string
}

// Category is a group-browsing node; CatID must differ from ParentID
// and Icon is a named icon, never a path.
type Category struct {
	ParentID string
	CatID    string
	Name     string
	Summary  string
	Icon     string
}

// RepoDetail announces a configured repository and its enabled state.
type RepoDetail struct {
	ID          string
	Description string
	Enabled     bool
}

// RepoSignatureRequired asks the frontend to accept or reject an
// unverified repository signing key.
type RepoSignatureRequired struct {
	PackageID   pkgid.ID
	RepoID      string
	URL         string
	KeyName     string
	KeyID       string
	Fingerprint string
	Created     string
	SigType     pkgenum.SigType
}

// EulaRequired asks the frontend to accept a license before a package
// may be installed.
type EulaRequired struct {
	EulaID  string
	ID      pkgid.ID
	Vendor  string
	Text    string
}

// MediaChangeRequired asks for a different disc/volume to be inserted.
type MediaChangeRequired struct {
	Kind string
	ID   string
	Text string
}

// RequireRestart reports that applying id requires the given restart
// class.
type RequireRestart struct {
	Restart pkgenum.Restart
	ID      pkgid.ID
}

// Message is a non-fatal, human-readable note (e.g. a per-repo
// refresh failure per spec §4.H).
type Message struct {
	Type string
	Text string
}

// ItemProgress is the per-package progress tick during a transaction.
type ItemProgress struct {
	ID      pkgid.ID
	Status  pkgenum.Status
	Percent int
}
