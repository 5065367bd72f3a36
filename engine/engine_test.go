package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/backend"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/plugin"
	"github.com/pkgkitd/pkgkitd/query"
	"github.com/pkgkitd/pkgkitd/sack"
)

func newTestEngine(t *testing.T) *Engine {
	b := backend.New("test", false)
	cache := sack.NewCache(func(ctx context.Context, releaseVer string, flags sack.FlagSet) (*sack.Sack, error) {
		return &sack.Sack{
			ReleaseVer: releaseVer,
			Flags:      flags,
			Installed: []job.Package{
				{Info: pkgenum.InfoInstalled, ID: pkgid.ID{Name: "bash", Version: "5.2-1", Arch: "x86_64", Data: "installed"}},
			},
			Remote: []job.Package{
				{Info: pkgenum.InfoAvailable, ID: pkgid.ID{Name: "htop", Version: "3.2.2-1", Arch: "x86_64", Data: "main"}},
			},
		}, nil
	})
	e := New(b, cache, nil)
	e.NativeArches = []string{"x86_64"}
	e.Plugins = plugin.NewRegistry(nil)
	e.RegisterRoles()
	require.NoError(t, b.Load(""))
	return e
}

func TestRunSynchronouslySucceeds(t *testing.T) {
	e := newTestEngine(t)
	j := job.NewJob(pkgenum.RoleSearchName, []string{"none", "htop"})

	var pkgs []job.Package
	j.OnPackage(func(p job.Package) { pkgs = append(pkgs, p) })

	err := e.RunSynchronously(context.Background(), j)
	require.NoError(t, err)
	require.Len(t, pkgs, 1)
	assert.Equal(t, "htop", pkgs[0].ID.Name)
	assert.True(t, j.IsFinished())
	assert.False(t, j.HasErrorSet())
}

func TestRunSynchronouslySurfacesHandlerError(t *testing.T) {
	e := newTestEngine(t)
	j := job.NewJob(pkgenum.RoleInstallPackages, []string{"not-a-valid-id"})

	err := e.RunSynchronously(context.Background(), j)
	require.Error(t, err)
	assert.True(t, j.HasErrorSet())
}

func TestSearchHandlerAppliesFilterText(t *testing.T) {
	e := newTestEngine(t)
	j := job.NewJob(pkgenum.RoleSearchName, []string{"~installed", "bash"})

	var pkgs []job.Package
	j.OnPackage(func(p job.Package) { pkgs = append(pkgs, p) })

	require.NoError(t, e.RunSynchronously(context.Background(), j))
	assert.Empty(t, pkgs, "~installed filter should exclude the installed bash package")
}

func TestHandleGetFilesUsesMetaLookup(t *testing.T) {
	e := newTestEngine(t)
	e.Meta = func(id pkgid.ID) query.Meta { return query.Meta{Files: []string{"/usr/bin/" + id.Name}} }

	text := pkgid.Build("htop", "3.2.2-1", "x86_64", "main")
	j := job.NewJob(pkgenum.RoleGetFiles, []string{text})

	var got []job.Files
	j.OnFiles(func(f job.Files) { got = append(got, f) })

	require.NoError(t, e.RunSynchronously(context.Background(), j))
	require.Len(t, got, 1)
	assert.Equal(t, "htop", got[0].ID.Name)
	assert.Equal(t, []string{"/usr/bin/htop"}, got[0].Files)
}

func TestHandleGetFilesRejectsMalformedID(t *testing.T) {
	e := newTestEngine(t)
	j := job.NewJob(pkgenum.RoleGetFiles, []string{"not-a-valid-id"})

	err := e.RunSynchronously(context.Background(), j)
	require.Error(t, err)
}
