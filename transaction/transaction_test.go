package transaction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
)

type fakeInstalled struct{ versions map[string]string }

func key(name, arch string) string { return name + ";" + arch }

func (f *fakeInstalled) InstalledVersion(ctx context.Context, name, arch string) (string, bool) {
	v, ok := f.versions[key(name, arch)]
	return v, ok
}

func newFlags(flags ...pkgenum.TransactionFlag) pkgenum.TransactionFlagSet {
	var set pkgenum.TransactionFlagSet
	for _, f := range flags {
		set = set.Add(f)
	}
	return set
}

func TestClassifyInstallSameVersionRejectedWithoutFlag(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{key("foo", "x86_64"): "1.0-1"}}
	_, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.0-1", Arch: "x86_64"}, newFlags(), installed)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.PackageAlreadyInstalled))
}

func TestClassifyInstallSameVersionAllowedWithReinstallFlag(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{key("foo", "x86_64"): "1.0-1"}}
	action, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.0-1", Arch: "x86_64"}, newFlags(pkgenum.TransactionFlagAllowReinstall), installed)
	require.NoError(t, err)
	assert.Equal(t, ActionReinstall, action)
}

func TestClassifyInstallOlderVersionRejectedWithoutDowngradeFlag(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{key("foo", "x86_64"): "1.1-1"}}
	_, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.0-1", Arch: "x86_64"}, newFlags(), installed)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.PackageAlreadyInstalled))
}

func TestClassifyInstallOlderVersionAllowedWithDowngradeFlag(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{key("foo", "x86_64"): "1.1-1"}}
	action, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.0-1", Arch: "x86_64"}, newFlags(pkgenum.TransactionFlagAllowDowngrade), installed)
	require.NoError(t, err)
	assert.Equal(t, ActionDowngrade, action)
}

func TestClassifyInstallNewerVersionIsOrdinaryUpgrade(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{key("foo", "x86_64"): "1.0-1"}}
	action, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.1-1", Arch: "x86_64"}, newFlags(), installed)
	require.NoError(t, err)
	assert.Equal(t, ActionSkipOlder, action)
}

func TestClassifyInstallNotInstalledAtAll(t *testing.T) {
	installed := &fakeInstalled{versions: map[string]string{}}
	action, err := ClassifyInstall(context.Background(), pkgid.ID{Name: "foo", Version: "1.0-1", Arch: "x86_64"}, newFlags(), installed)
	require.NoError(t, err)
	assert.Equal(t, ActionInstall, action)
}

type stubSolver struct {
	plan *Plan
	err  error
}

func (s *stubSolver) Depsolve(ctx context.Context, goal Goal) (*Plan, error) { return s.plan, s.err }

type stubGPG struct{ enabled map[string]bool }

func (s *stubGPG) GPGCheck(repoID string) (bool, bool) {
	v, ok := s.enabled[repoID]
	return v, ok
}

func newPlannerJob() *job.Job {
	return job.NewJob(pkgenum.RoleInstallPackages, nil)
}

func TestRunFailsOnProtectedPackageRemoval(t *testing.T) {
	plan := &Plan{Remove: []pkgid.ID{{Name: "glibc", Version: "2.38-1", Arch: "x86_64", Data: "installed"}}}
	p := &Planner{Solver: &stubSolver{plan: plan}}
	j := newPlannerJob()

	var gotCode pkgerrors.Code
	j.OnErrorCode(func(e *pkgerrors.JobError) { gotCode = e.Code })

	err := p.Run(context.Background(), j, Goal{Intent: IntentRemove})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CannotRemoveSystem, gotCode)
}

func TestRunDepsolveFailureReportsJoinedProblems(t *testing.T) {
	p := &Planner{Solver: &stubSolver{err: &DepsolveError{Problems: []string{"nothing provides libfoo", "conflicting requests"}}}}
	j := newPlannerJob()

	var gotText string
	j.OnErrorCode(func(e *pkgerrors.JobError) { gotText = e.Error() })

	err := p.Run(context.Background(), j, Goal{Intent: IntentInstall})
	require.Error(t, err)
	assert.Contains(t, gotText, "nothing provides libfoo")
	assert.Contains(t, gotText, "conflicting requests")
}

func TestRunSimulateClassifiesWithoutCommitting(t *testing.T) {
	plan := &Plan{
		Install: []pkgid.ID{{Name: "newpkg", Version: "1.0-1", Arch: "x86_64", Data: "fedora"}},
		Remove:  []pkgid.ID{{Name: "oldpkg", Version: "1.0-1", Arch: "x86_64", Data: "installed"}},
	}
	committer := &recordingCommitter{}
	p := &Planner{
		Solver:    &stubSolver{plan: plan},
		RepoGPG:   &stubGPG{enabled: map[string]bool{"fedora": true}},
		Committer: committer,
	}
	j := newPlannerJob()
	j.TransactionFlags = newFlags(pkgenum.TransactionFlagSimulate)

	var classes []pkgenum.Info
	j.OnPackage(func(pkg job.Package) { classes = append(classes, pkg.Info) })

	err := p.Run(context.Background(), j, Goal{Intent: IntentInstall})
	require.NoError(t, err)
	assert.Equal(t, 0, committer.calls, "simulate must never call Commit")
	assert.Contains(t, classes, pkgenum.InfoInstalling)
	assert.Contains(t, classes, pkgenum.InfoRemoving)
}

func TestRunUntrustedPackageBlockedWithOnlyTrusted(t *testing.T) {
	plan := &Plan{Install: []pkgid.ID{{Name: "newpkg", Version: "1.0-1", Arch: "x86_64", Data: "unsigned-repo"}}}
	p := &Planner{
		Solver:     &stubSolver{plan: plan},
		RepoGPG:    &stubGPG{enabled: map[string]bool{}},
		Downloader: &noopDownloader{},
		Committer:  &recordingCommitter{},
	}
	j := newPlannerJob()
	j.TransactionFlags = newFlags(pkgenum.TransactionFlagOnlyTrusted)

	err := p.Run(context.Background(), j, Goal{Intent: IntentInstall})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.GpgFailure))
}

func TestRunDownloadsThenCommitsTrustedPlan(t *testing.T) {
	plan := &Plan{Install: []pkgid.ID{{Name: "newpkg", Version: "1.0-1", Arch: "x86_64", Data: "fedora"}}}
	downloader := &noopDownloader{}
	committer := &recordingCommitter{}
	p := &Planner{
		Solver:     &stubSolver{plan: plan},
		RepoGPG:    &stubGPG{enabled: map[string]bool{"fedora": true}},
		Downloader: downloader,
		Committer:  committer,
	}
	j := newPlannerJob()

	err := p.Run(context.Background(), j, Goal{Intent: IntentInstall})
	require.NoError(t, err)
	assert.Equal(t, 1, downloader.calls)
	assert.Equal(t, 1, committer.calls)
}

type noopDownloader struct{ calls int }

func (n *noopDownloader) Download(ctx context.Context, ids []pkgid.ID, onProgress func(pkgid.ID, int, uint64)) error {
	n.calls++
	return nil
}

type recordingCommitter struct{ calls int }

func (r *recordingCommitter) Commit(ctx context.Context, plan *Plan, testOnly bool, onItemProgress func(pkgid.ID, pkgenum.Status, int)) error {
	r.calls++
	return nil
}
