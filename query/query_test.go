package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/sack"
)

func pkg(name, version, arch, data, summary string) job.Package {
	return job.Package{
		Info:    pkgenum.InfoAvailable,
		ID:      pkgid.ID{Name: name, Version: version, Arch: arch, Data: data},
		Summary: summary,
	}
}

func TestRunRejectsInvalidFilter(t *testing.T) {
	s := &sack.Sack{}
	req := Request{Filters: pkgenum.FilterSet(0).Add(pkgenum.FilterInstalled).Add(pkgenum.FilterNotInstalled)}
	_, err := Run(s, req)
	require.Error(t, err)
}

func TestRunInstalledFilter(t *testing.T) {
	s := &sack.Sack{
		Installed: []job.Package{pkg("bash", "5.2-1", "x86_64", "installed", "the bourne shell")},
		Remote:    []job.Package{pkg("zsh", "5.9-1", "x86_64", "fedora", "the z shell")},
	}
	out, err := Run(s, Request{Filters: pkgenum.FilterSet(0).Add(pkgenum.FilterInstalled)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "bash", out[0].ID.Name)
}

func TestRunAntiDuplicateRule(t *testing.T) {
	s := &sack.Sack{
		Installed: []job.Package{pkg("bash", "5.2-1", "x86_64", "installed", "installed bash")},
		Remote:    []job.Package{pkg("bash", "5.2-1", "x86_64", "fedora", "remote bash")},
	}
	out, err := Run(s, Request{})
	require.NoError(t, err)
	require.Len(t, out, 1, "the available duplicate of an already-emitted installed package must be dropped")
	assert.Equal(t, "installed", out[0].ID.Data)
}

func TestRunNameSearch(t *testing.T) {
	s := &sack.Sack{
		Remote: []job.Package{
			pkg("firefox", "120.0-1", "x86_64", "fedora", "a web browser"),
			pkg("chromium", "119.0-1", "x86_64", "fedora", "another web browser"),
		},
	}
	out, err := Run(s, Request{Terms: []string{"fire"}, Mode: ModeName})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "firefox", out[0].ID.Name)
}

func TestRunNewestKeepsGreatestEVRPerArch(t *testing.T) {
	s := &sack.Sack{
		Remote: []job.Package{
			pkg("foo", "1.0-1", "x86_64", "fedora", ""),
			pkg("foo", "2.0-1", "x86_64", "fedora", ""),
		},
	}
	out, err := Run(s, Request{Filters: pkgenum.FilterSet(0).Add(pkgenum.FilterNewest)})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "2.0-1", out[0].ID.Version)
}

func TestRunArchFilter(t *testing.T) {
	s := &sack.Sack{
		Remote: []job.Package{
			pkg("foo", "1.0-1", "x86_64", "fedora", ""),
			pkg("foo", "1.0-1", "i686", "fedora", ""),
		},
	}
	out, err := Run(s, Request{
		Filters:      pkgenum.FilterSet(0).Add(pkgenum.FilterArch),
		NativeArches: []string{"x86_64"},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "x86_64", out[0].ID.Arch)
}

func TestRunFileSearch(t *testing.T) {
	s := &sack.Sack{
		Remote: []job.Package{pkg("bash", "5.2-1", "x86_64", "fedora", "")},
	}
	req := Request{
		Terms: []string{"/usr/bin/bash"},
		Mode:  ModeFile,
		Meta: func(id pkgid.ID) Meta {
			return Meta{Files: []string{"/usr/bin/bash", "/etc/bashrc"}}
		},
	}
	out, err := Run(s, req)
	require.NoError(t, err)
	require.Len(t, out, 1)
}

func TestRunWhatProvidesNamespaces(t *testing.T) {
	namespaces := ProvidesNamespaces("gimp")
	assert.Contains(t, namespaces, "gimp")
	assert.Contains(t, namespaces, "mimehandler(gimp)")
	assert.Contains(t, namespaces, "plasma5(gimp)")
}

func TestRunApplicationFilterChecksDesktopFile(t *testing.T) {
	s := &sack.Sack{
		Remote: []job.Package{
			pkg("gimp", "2.10-1", "x86_64", "fedora", ""),
			pkg("libgimp", "2.10-1", "x86_64", "fedora", ""),
		},
	}
	req := Request{
		Filters: pkgenum.FilterSet(0).Add(pkgenum.FilterApplication),
		Meta: func(id pkgid.ID) Meta {
			if id.Name == "gimp" {
				return Meta{Files: []string{"/usr/share/applications/gimp.desktop"}}
			}
			return Meta{}
		},
	}
	out, err := Run(s, req)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "gimp", out[0].ID.Name)
}
