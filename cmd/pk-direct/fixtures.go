package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/refresh"
	"github.com/pkgkitd/pkgkitd/sack"
	"github.com/pkgkitd/pkgkitd/transaction"
)

// catalogEntry is one remote package the in-memory fixture backend
// knows how to "install". pk-direct has no native package manager to
// call into, so it carries a small built-in catalog instead, the same
// role the teacher's test fixtures play for its own CLI harnesses.
type catalogEntry struct {
	id      pkgid.ID
	summary string
	repo    string
	gpg     bool
}

var defaultCatalog = []catalogEntry{
	{id: pkgid.ID{Name: "bash", Version: "5.2-1", Arch: "x86_64", Data: "installed"}, summary: "GNU Bourne Again shell", repo: ""},
	{id: pkgid.ID{Name: "curl", Version: "8.4.0-1", Arch: "x86_64", Data: "installed"}, summary: "command line transfer tool", repo: ""},
	{id: pkgid.ID{Name: "curl", Version: "8.6.0-1", Arch: "x86_64", Data: "updates"}, summary: "command line transfer tool", repo: "updates", gpg: true},
	{id: pkgid.ID{Name: "htop", Version: "3.2.2-1", Arch: "x86_64", Data: "main"}, summary: "interactive process viewer", repo: "main", gpg: true},
	{id: pkgid.ID{Name: "cowsay", Version: "3.7.0-1", Arch: "noarch", Data: "extras"}, summary: "configurable speaking cow", repo: "extras", gpg: false},
}

// fixtureWorld is the fixture-backed stand-in for every external
// collaborator the core consumes (spec §1): it plays solver,
// installed-DB, repo loader, downloader, and committer all at once, in
// memory, so pk-direct's commands are reproducible without a real
// distribution underneath.
type fixtureWorld struct {
	catalog []catalogEntry
}

func newFixtureWorld() *fixtureWorld {
	return &fixtureWorld{catalog: defaultCatalog}
}

func (w *fixtureWorld) entry(name, arch, version string) (catalogEntry, bool) {
	for _, e := range w.catalog {
		if e.id.Name == name && (arch == "" || e.id.Arch == arch) && (version == "" || e.id.Version == version) {
			return e, true
		}
	}
	return catalogEntry{}, false
}

func (w *fixtureWorld) buildSack(ctx context.Context, releaseVer string, flags sack.FlagSet) (*sack.Sack, error) {
	s := &sack.Sack{ReleaseVer: releaseVer, Flags: flags}
	for _, e := range w.catalog {
		p := job.Package{Info: pkgenum.InfoAvailable, ID: e.id, Summary: e.summary}
		if e.id.IsInstalled() {
			p.Info = pkgenum.InfoInstalled
			s.Installed = append(s.Installed, p)
		} else if flags.Contains(sack.FlagRemote) {
			s.Remote = append(s.Remote, p)
		}
	}
	return s, nil
}

// InstalledVersion implements transaction.InstalledQuery.
func (w *fixtureWorld) InstalledVersion(ctx context.Context, name, arch string) (string, bool) {
	for _, e := range w.catalog {
		if e.id.Name == name && e.id.IsInstalled() && (arch == "" || e.id.Arch == arch) {
			return e.id.Version, true
		}
	}
	return "", false
}

// GPGCheck implements transaction.RepoGPGLookup.
func (w *fixtureWorld) GPGCheck(repoID string) (bool, bool) {
	for _, e := range w.catalog {
		if e.repo == repoID {
			return e.gpg, true
		}
	}
	return false, false
}

// Depsolve implements transaction.Solver: a single target becomes a
// one-step install/upgrade/downgrade/removal plan with no transitive
// dependencies, which is all a fixture catalog needs to exercise the
// planner end to end.
func (w *fixtureWorld) Depsolve(ctx context.Context, goal transaction.Goal) (*transaction.Plan, error) {
	plan := &transaction.Plan{}
	switch goal.Intent {
	case transaction.IntentRemove, transaction.IntentErase:
		plan.Remove = append(plan.Remove, goal.Targets...)
	default:
		for _, want := range goal.Targets {
			entry, ok := w.entry(want.Name, want.Arch, want.Version)
			if !ok {
				return nil, &transaction.DepsolveError{Problems: []string{fmt.Sprintf("nothing provides %s", want.Name)}}
			}
			action, err := transaction.ClassifyInstall(ctx, entry.id, pkgenum.TransactionFlagSet(0), w)
			if err != nil {
				return nil, err
			}
			switch action {
			case transaction.ActionReinstall:
				plan.Reinstall = append(plan.Reinstall, entry.id)
			case transaction.ActionDowngrade:
				if installedVersion, found := w.InstalledVersion(ctx, entry.id.Name, entry.id.Arch); found {
					plan.Downgrade = append(plan.Downgrade, transaction.Downgrade{
						From: pkgid.ID{Name: entry.id.Name, Version: installedVersion, Arch: entry.id.Arch, Data: "installed"},
						To:   entry.id,
					})
				}
			case transaction.ActionSkipOlder:
				if installedVersion, found := w.InstalledVersion(ctx, entry.id.Name, entry.id.Arch); found {
					plan.Upgrade = append(plan.Upgrade, transaction.Upgrade{
						From: pkgid.ID{Name: entry.id.Name, Version: installedVersion, Arch: entry.id.Arch, Data: "installed"},
						To:   entry.id,
					})
				} else {
					plan.Install = append(plan.Install, entry.id)
				}
			default:
				plan.Install = append(plan.Install, entry.id)
			}
		}
	}
	return plan, nil
}

// Download implements transaction.Downloader as a no-op progress
// ticker: there is nowhere real to fetch bytes from in a fixture world.
func (w *fixtureWorld) Download(ctx context.Context, ids []pkgid.ID, onProgress func(pkgid.ID, int, uint64)) error {
	for _, id := range ids {
		onProgress(id, 100, 0)
	}
	return nil
}

// Commit implements transaction.Committer by mutating the in-memory
// catalog so a following query reflects the change.
func (w *fixtureWorld) Commit(ctx context.Context, plan *transaction.Plan, testOnly bool, onItemProgress func(pkgid.ID, pkgenum.Status, int)) error {
	if testOnly {
		return nil
	}
	for _, id := range plan.Install {
		onItemProgress(id, pkgenum.StatusInstall, 100)
		w.setInstalled(id)
	}
	for _, u := range plan.Upgrade {
		onItemProgress(u.To, pkgenum.StatusUpdate, 100)
		w.setInstalled(u.To)
	}
	for _, d := range plan.Downgrade {
		onItemProgress(d.To, pkgenum.StatusUpdate, 100)
		w.setInstalled(d.To)
	}
	for _, id := range plan.Reinstall {
		onItemProgress(id, pkgenum.StatusInstall, 100)
		w.setInstalled(id)
	}
	for _, id := range plan.Remove {
		onItemProgress(id, pkgenum.StatusRemove, 100)
		w.setRemoved(id)
	}
	return nil
}

func (w *fixtureWorld) setInstalled(id pkgid.ID) {
	for i, e := range w.catalog {
		if e.id.Name == id.Name && e.id.Arch == id.Arch {
			if e.id.IsInstalled() {
				w.catalog[i].id.Version = id.Version
				return
			}
		}
	}
	w.catalog = append(w.catalog, catalogEntry{id: pkgid.ID{Name: id.Name, Version: id.Version, Arch: id.Arch, Data: "installed"}, summary: id.Name})
}

func (w *fixtureWorld) setRemoved(id pkgid.ID) {
	out := w.catalog[:0]
	for _, e := range w.catalog {
		if e.id.Name == id.Name && e.id.IsInstalled() {
			continue
		}
		out = append(out, e)
	}
	w.catalog = out
}

// fixtureRepos implements refresh.Lister/refresh.Loader with two
// always-stale repos so `refresh` and `refresh-force` have something
// visible to iterate.
type fixtureRepos struct{}

func (fixtureRepos) ListRepos(ctx context.Context) ([]refresh.Repo, error) {
	return []refresh.Repo{
		{ID: "main", Description: "Main repository", Enabled: true, GPGCheck: true, LastRefresh: time.Now().Add(-48 * time.Hour)},
		{ID: "updates", Description: "Updates repository", Enabled: true, GPGCheck: true, LastRefresh: time.Now().Add(-48 * time.Hour)},
	}, nil
}

func (fixtureRepos) Check(ctx context.Context, repo refresh.Repo, maxAge time.Duration) (bool, error) {
	return time.Since(repo.LastRefresh) > maxAge, nil
}

func (fixtureRepos) Clean(ctx context.Context, repo refresh.Repo) error { return nil }

func (fixtureRepos) Update(ctx context.Context, repo refresh.Repo, flags refresh.UpdateFlag) error {
	return nil
}

// noopRebuilder implements refresh.SackRebuilder.
type noopRebuilder struct{}

func (noopRebuilder) RebuildSack(ctx context.Context) error { return nil }
