// Package transaction implements the transaction planner (spec
// §3/§4.I): it wraps an external solver's "goal", classifies the
// operations it proposes, optionally simulates without committing,
// checks trust, downloads, and commits — reporting per-item progress
// throughout.
package transaction

import (
	"context"
	"strings"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
)

// Intent is the kind of goal the planner builds (spec §4.I step 1).
type Intent int

const (
	IntentInstall Intent = iota
	IntentRemove
	IntentUpdate
	IntentUpgrade // distupgrade
	IntentErase
)

// Goal is the planner's description of the user's request, handed to
// the external Solver.
type Goal struct {
	Intent  Intent
	Targets []pkgid.ID
	// Files holds install-files targets: standalone files are always
	// untrusted (spec §4.I step 3) regardless of repo gpgcheck.
	Files []string
}

// Upgrade/Downgrade/Obsolete pair an old package with its replacement,
// matching the shape real dependency-solver goal objects (dnf's
// Goal.list_upgrades/list_obsoletes/list_downgrades, zypp's
// ProblemSolution set) already expose.
type Upgrade struct{ From, To pkgid.ID }
type Downgrade struct{ From, To pkgid.ID }
type Obsolete struct{ Old, By pkgid.ID }

// Plan is the solver's proposed operation set (spec §1: "a solver that
// returns a proposed operation set" is an external collaborator; the
// core only classifies and reports on what it returns).
type Plan struct {
	Install   []pkgid.ID
	Upgrade   []Upgrade
	Remove    []pkgid.ID
	Obsolete  []Obsolete
	Reinstall []pkgid.ID
	Downgrade []Downgrade
}

// DepsolveError carries the solver's per-problem descriptions; the
// planner concatenates them into a single DepResolutionFailed (spec
// §4.I step 2).
type DepsolveError struct {
	Problems []string
}

func (e *DepsolveError) Error() string {
	return strings.Join(e.Problems, "; ")
}

// Solver depsolves a Goal into a Plan — the native package manager's
// SAT/dependency solver, an external collaborator (spec §1).
type Solver interface {
	Depsolve(ctx context.Context, goal Goal) (*Plan, error)
}

// InstalledQuery answers "what version of (name, arch) is installed",
// the installed-DB collaborator (spec §1/§6) the install/upgrade
// selection rule (spec §4.I) consults.
type InstalledQuery interface {
	InstalledVersion(ctx context.Context, name, arch string) (version string, found bool)
}

// RepoGPGLookup answers whether a repo has gpgcheck enabled, for the
// untrusted-package partition (spec §4.I step 3).
type RepoGPGLookup interface {
	GPGCheck(repoID string) (enabled, found bool)
}

// Downloader fetches the remote packages a Plan needs before commit —
// an external collaborator (spec §1).
type Downloader interface {
	Download(ctx context.Context, ids []pkgid.ID, onProgress func(id pkgid.ID, percent int, speedBytesPerSec uint64)) error
}

// Committer applies a Plan to the system — an external collaborator
// wrapping the native package manager's RPM/tar/transaction machinery
// (spec §1). testOnly mirrors TRANSACTION_TEST (OnlyDownload).
type Committer interface {
	Commit(ctx context.Context, plan *Plan, testOnly bool, onItemProgress func(id pkgid.ID, status pkgenum.Status, percent int)) error
}

// Snapshotter captures solver/pool state before a simulated run and
// returns a restore function, the Go analogue of the original's RAII
// "pool status saver" (spec §4.I step 4 / §9's exception-control-flow
// note): restoring always runs, success or failure.
type Snapshotter interface {
	Snapshot() (restore func())
}

// protectedNames can never appear in a Plan's Remove set (spec §4.I
// step 4 / §8 scenario 6).
var protectedNames = map[string]bool{
	"glibc": true, "PackageKit": true, "rpm": true, "libzypp": true,
}

// Action is the outcome of the install/upgrade selection rule applied
// to one requested package against what's already installed (spec
// §4.I, §8 scenario 5).
type Action string

const (
	ActionInstall   Action = "install"
	ActionReinstall Action = "reinstall"
	ActionDowngrade Action = "downgrade"
	// ActionSkipOlder is the ordinary upgrade path: the requested
	// version is newer than what's installed, so the older installed
	// copy is simply superseded — not an error, and not a fresh
	// install either.
	ActionSkipOlder Action = "skip-older"
)

// ClassifyInstall applies spec §4.I's EVR comparison rule: for a
// requested id, compare it against whatever (name, arch) is already
// installed. The result is one of {Install, Reinstall, Downgrade,
// SkipOlder}; same-version and older-than-installed requests are
// rejected unless the matching flag is present.
func ClassifyInstall(ctx context.Context, id pkgid.ID, flags pkgenum.TransactionFlagSet, installed InstalledQuery) (Action, error) {
	installedVersion, found := installed.InstalledVersion(ctx, id.Name, id.Arch)
	if !found {
		if flags.Contains(pkgenum.TransactionFlagJustReinstall) {
			return "", pkgerrors.New(pkgerrors.NotAuthorized, "%s is not installed, cannot satisfy just-reinstall", id.Name)
		}
		return ActionInstall, nil
	}

	cmp := pkgid.CompareEVR(id.Version, installedVersion)
	switch {
	case cmp == 0:
		if flags.Contains(pkgenum.TransactionFlagAllowReinstall) || flags.Contains(pkgenum.TransactionFlagJustReinstall) {
			return ActionReinstall, nil
		}
		return "", pkgerrors.New(pkgerrors.PackageAlreadyInstalled, "%s;%s already installed", id.Name, id.Version)
	case cmp < 0:
		if flags.Contains(pkgenum.TransactionFlagJustReinstall) {
			return "", pkgerrors.New(pkgerrors.NotAuthorized, "%s requested version differs from installed, cannot satisfy just-reinstall", id.Name)
		}
		if flags.Contains(pkgenum.TransactionFlagAllowDowngrade) {
			return ActionDowngrade, nil
		}
		return "", pkgerrors.New(pkgerrors.PackageAlreadyInstalled, "higher version of %s installed (%s > %s)", id.Name, installedVersion, id.Version)
	default:
		if flags.Contains(pkgenum.TransactionFlagJustReinstall) {
			return "", pkgerrors.New(pkgerrors.NotAuthorized, "%s requested version differs from installed, cannot satisfy just-reinstall", id.Name)
		}
		return ActionSkipOlder, nil
	}
}

// Class is the per-package category the simulate path emits exactly
// one event per (spec §4.I step 4).
type Class string

const (
	ClassInstalling   Class = "installing"
	ClassRemoving     Class = "removing"
	ClassUpdating     Class = "updating"
	ClassObsoleting   Class = "obsoleting"
	ClassDowngrading  Class = "downgrading"
	ClassReinstalling Class = "reinstalling"
	ClassUntrusted    Class = "untrusted"
)

// Classified is one (package, class) pairing emitted during simulate.
type Classified struct {
	ID    pkgid.ID
	Class Class
}

// Planner drives one transaction for a Job against its external
// collaborators.
type Planner struct {
	Solver     Solver
	Installed  InstalledQuery
	RepoGPG    RepoGPGLookup
	Downloader Downloader
	Committer  Committer
	Snapshot   Snapshotter

	TransactionInhibitStart func()
	TransactionInhibitEnd   func()
}

// Run executes the full planner algorithm of spec §4.I for goal
// against j's transaction flags.
func (p *Planner) Run(ctx context.Context, j *job.Job, goal Goal) error {
	root := j.RootState
	if err := root.SetWeights([]int{5, 95}); err != nil {
		return err
	}

	j.EmitStatus(pkgenum.StatusDepResolve)
	plan, err := p.Solver.Depsolve(ctx, goal)
	if err != nil {
		var de *DepsolveError
		if ok := asDepsolveError(err, &de); ok {
			j.ErrorCode(pkgerrors.DepResolutionFailed, "%s", strings.Join(de.Problems, "; "))
		} else {
			j.ErrorCode(pkgerrors.DepResolutionFailed, "%v", err)
		}
		return err
	}
	if err := root.StepDone(); err != nil { // depsolve
		return err
	}

	if err := p.checkProtected(plan); err != nil {
		j.ErrorCode(pkgerrors.CannotRemoveSystem, "%v", err)
		return err
	}

	untrusted := p.untrustedSet(goal, plan)
	classified := classifyPlan(plan, untrusted)

	flags := j.TransactionFlags
	if flags.Contains(pkgenum.TransactionFlagSimulate) {
		return p.runSimulate(j, classified)
	}

	if flags.Contains(pkgenum.TransactionFlagOnlyTrusted) && len(untrusted) > 0 {
		err := pkgerrors.New(pkgerrors.GpgFailure, "untrusted packages present and only-trusted was requested")
		j.ErrorCode(pkgerrors.GpgFailure, "%v", err)
		return err
	}

	rest, err := root.Child()
	if err != nil {
		return err
	}
	remoteCount := len(plan.Install) + len(plan.Upgrade) + len(plan.Downgrade)
	if remoteCount == 0 {
		if err := rest.SetNumberSteps(1); err != nil {
			return err
		}
	} else {
		if err := rest.SetWeights([]int{50, 50}); err != nil {
			return err
		}
	}

	if remoteCount > 0 {
		download, err := rest.Child()
		if err != nil {
			return err
		}
		if err := download.SetNumberSteps(1); err != nil {
			return err
		}
		j.EmitStatus(pkgenum.StatusDownload)
		if err := p.Downloader.Download(ctx, remoteTargets(plan), func(id pkgid.ID, percent int, speed uint64) {
			j.EmitItemProgress(job.ItemProgress{ID: id, Status: pkgenum.StatusDownload, Percent: percent})
			j.EmitSpeed(speed)
		}); err != nil {
			j.ErrorCode(pkgerrors.PackageDownloadFailed, "%v", err)
			return err
		}
		_ = download.Finished()
		if err := rest.StepDone(); err != nil {
			return err
		}
	}

	commit, err := rest.Child()
	if err != nil {
		return err
	}
	if err := commit.SetNumberSteps(1); err != nil {
		return err
	}
	j.EmitStatus(pkgenum.StatusCommit)

	if p.TransactionInhibitStart != nil {
		p.TransactionInhibitStart()
	}
	commitErr := p.Committer.Commit(ctx, plan, flags.Contains(pkgenum.TransactionFlagOnlyDownload), func(id pkgid.ID, status pkgenum.Status, percent int) {
		j.EmitItemProgress(job.ItemProgress{ID: id, Status: status, Percent: percent})
	})
	if p.TransactionInhibitEnd != nil {
		p.TransactionInhibitEnd()
	}
	if commitErr != nil {
		j.ErrorCode(pkgerrors.TransactionError, "%v", commitErr)
		return commitErr
	}
	_ = commit.Finished()
	return rest.StepDone()
}

func asDepsolveError(err error, target **DepsolveError) bool {
	de, ok := err.(*DepsolveError)
	if ok {
		*target = de
	}
	return ok
}

func (p *Planner) checkProtected(plan *Plan) error {
	for _, id := range plan.Remove {
		if protectedNames[id.Name] {
			return pkgerrors.New(pkgerrors.CannotRemoveSystem, "refusing to remove protected package %s", id.Name)
		}
	}
	return nil
}

// untrustedSet collects install/reinstall/downgrade/update targets
// whose origin repo either has no gpgcheck configured or is a
// standalone file (spec §4.I step 3).
func (p *Planner) untrustedSet(goal Goal, plan *Plan) map[pkgid.ID]bool {
	untrusted := make(map[pkgid.ID]bool)
	if len(goal.Files) > 0 {
		for _, id := range plan.Install {
			if id.IsLocal() {
				untrusted[id] = true
			}
		}
	}
	check := func(id pkgid.ID) {
		repo := id.RepoID()
		if repo == "" {
			return
		}
		if p.RepoGPG == nil {
			untrusted[id] = true
			return
		}
		enabled, found := p.RepoGPG.GPGCheck(repo)
		if !found || !enabled {
			untrusted[id] = true
		}
	}
	for _, id := range plan.Install {
		check(id)
	}
	for _, id := range plan.Reinstall {
		check(id)
	}
	for _, d := range plan.Downgrade {
		check(d.To)
	}
	for _, u := range plan.Upgrade {
		check(u.To)
	}
	return untrusted
}

// classifyPlan assigns each touched package exactly one Class (spec
// §4.I step 4): an upgrade's old version is folded into Updating
// rather than separately reported as Removing.
func classifyPlan(plan *Plan, untrusted map[pkgid.ID]bool) []Classified {
	var out []Classified
	emit := func(id pkgid.ID, class Class) {
		if untrusted[id] {
			out = append(out, Classified{ID: id, Class: ClassUntrusted})
			return
		}
		out = append(out, Classified{ID: id, Class: class})
	}
	for _, id := range plan.Install {
		emit(id, ClassInstalling)
	}
	for _, u := range plan.Upgrade {
		emit(u.To, ClassUpdating)
	}
	for _, id := range plan.Remove {
		emit(id, ClassRemoving)
	}
	for _, o := range plan.Obsolete {
		emit(o.Old, ClassObsoleting)
	}
	for _, id := range plan.Reinstall {
		emit(id, ClassReinstalling)
	}
	for _, d := range plan.Downgrade {
		emit(d.To, ClassDowngrading)
	}
	return out
}

// runSimulate emits one Package event per classified operation without
// ever calling Commit, and restores any solver pool state on exit —
// success or failure — via Snapshot (spec §4.I step 4).
func (p *Planner) runSimulate(j *job.Job, classified []Classified) error {
	if p.Snapshot != nil {
		restore := p.Snapshot.Snapshot()
		defer restore()
	}
	for _, c := range classified {
		info := simulateInfo(c.Class)
		j.EmitPackage(job.Package{Info: info, ID: c.ID})
	}
	return j.RootState.Finished()
}

func simulateInfo(c Class) pkgenum.Info {
	switch c {
	case ClassInstalling:
		return pkgenum.InfoInstalling
	case ClassRemoving:
		return pkgenum.InfoRemoving
	case ClassUpdating:
		return pkgenum.InfoUpdating
	case ClassObsoleting:
		return pkgenum.InfoObsoleting
	case ClassDowngrading:
		return pkgenum.InfoDowngrading
	case ClassReinstalling:
		return pkgenum.InfoReinstalling
	case ClassUntrusted:
		return pkgenum.InfoUntrusted
	default:
		return pkgenum.InfoUnknown
	}
}

func remoteTargets(plan *Plan) []pkgid.ID {
	ids := make([]pkgid.ID, 0, len(plan.Install)+len(plan.Upgrade)+len(plan.Downgrade))
	ids = append(ids, plan.Install...)
	for _, u := range plan.Upgrade {
		ids = append(ids, u.To)
	}
	for _, d := range plan.Downgrade {
		ids = append(ids, d.To)
	}
	return ids
}
