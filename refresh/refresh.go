// Package refresh implements the repository refresh scheduler (spec
// §3/§4.H): it enumerates enabled repos, decides which are stale (or
// forced), runs a staged download + cache rebuild per repo, and
// isolates a single repo's failure from the rest of the batch.
package refresh

import (
	"context"
	"fmt"
	"time"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/internal/pkglog"
	"github.com/pkgkitd/pkgkitd/internal/pkgmetrics"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/progress"
)

// Repo is one configured repository, as the repo-loader collaborator
// (spec §1/§6) reports it.
type Repo struct {
	ID          string
	Description string
	Enabled     bool
	Media       bool
	Local       bool
	Removable   bool
	GPGCheck    bool
	LastRefresh time.Time
}

// eligible reports whether r is a candidate for refresh at all (spec
// §4.H step 1: "enabled, non-media, non-local, non-removable").
func (r Repo) eligible() bool {
	return r.Enabled && !r.Media && !r.Local && !r.Removable
}

// UpdateFlag modifies how Loader.Update fetches a repo.
type UpdateFlag int

const (
	UpdateFlagNone UpdateFlag = iota
	UpdateFlagImportPubkey
)

// SignatureInfo is the detail behind a RepoSignatureRequired prompt.
type SignatureInfo struct {
	RepoID      string
	URL         string
	KeyName     string
	KeyID       string
	Fingerprint string
	Created     string
	SigType     pkgenum.SigType
}

// ErrSignatureRequired is returned by Loader.Update when the repo's
// metadata is signed by a key the loader doesn't yet trust. The
// refresh loop turns this into a RepoSignatureRequired prompt rather
// than letting it abort the batch (spec §4.H's "never terminates with
// an uncaught signature/digest exception").
type ErrSignatureRequired struct {
	Info SignatureInfo
}

func (e *ErrSignatureRequired) Error() string {
	return fmt.Sprintf("signature required for repo %s (key %s)", e.Info.RepoID, e.Info.KeyID)
}

// Lister enumerates configured repositories — an external collaborator
// (spec §1: "a repo loader").
type Lister interface {
	ListRepos(ctx context.Context) ([]Repo, error)
}

// Loader performs the actual network/cache work for one repo — an
// external collaborator the core never implements directly.
type Loader interface {
	// Check reports whether repo's cached metadata is older than
	// maxAge.
	Check(ctx context.Context, repo Repo, maxAge time.Duration) (stale bool, err error)
	Clean(ctx context.Context, repo Repo) error
	// Update fetches fresh metadata. It returns *ErrSignatureRequired
	// when the repo's key isn't yet trusted, and a
	// pkgerrors-classified error (CannotFetchSource in particular)
	// for any other fetch failure.
	Update(ctx context.Context, repo Repo, flags UpdateFlag) error
}

// SackRebuilder regenerates the solver metadata sack after a
// successful batch of repo downloads (spec §4.H step 4).
type SackRebuilder interface {
	RebuildSack(ctx context.Context) error
}

// AppStreamInstaller copies appstream/appstream-icons payloads into
// the shared cache directory after a repo downloads successfully
// (spec §4.H step 3).
type AppStreamInstaller interface {
	InstallAppStream(ctx context.Context, repo Repo) error
}

// KeyStore remembers GPG keys the user has already approved across
// refreshes within the process lifetime (SPEC_FULL.md's "signature
// auto-approval persistence" feature, grounded in spec §4.H: "if the
// user previously approved the key... auto-approved").
type KeyStore interface {
	IsApproved(repoID, keyID string) bool
	Approve(repoID, keyID string)
}

// Scheduler drives the refresh of every eligible repo for one Job.
type Scheduler struct {
	Lister   Lister
	Loader   Loader
	Sack     SackRebuilder
	AppStore AppStreamInstaller
	Keys     KeyStore
	Log      *pkglog.Logger

	// MaxAge is the staleness threshold Check compares a repo's
	// cached metadata age against.
	MaxAge time.Duration

	// ApproveSignature is consulted when a repo's key isn't already
	// trusted via Keys, after the scheduler has emitted
	// RepoSignatureRequired on j, and returns the frontend's decision;
	// a nil ApproveSignature always
	// rejects (fail closed).
	ApproveSignature func(j *job.Job, info SignatureInfo) bool
}

// Run executes the full refresh for j, optionally forcing every
// eligible repo regardless of staleness.
func (s *Scheduler) Run(ctx context.Context, j *job.Job, force bool) error {
	root := j.RootState
	if err := root.SetWeights([]int{1, 95, 4}); err != nil {
		return err
	}
	j.EmitStatus(pkgenum.StatusRefreshCache)

	repos, err := s.Lister.ListRepos(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.RepoNotAvailable, err, "list repos")
	}
	if err := root.StepDone(); err != nil { // "count" step
		return err
	}

	var toRefresh []Repo
	for _, r := range repos {
		if !r.eligible() {
			continue
		}
		stale := true
		if !force {
			var checkErr error
			stale, checkErr = s.Loader.Check(ctx, r, s.MaxAge)
			if checkErr != nil {
				stale = true
			}
		}
		if force || stale {
			toRefresh = append(toRefresh, r)
		}
	}

	downloadState, err := root.Child()
	if err != nil {
		return err
	}
	if len(toRefresh) > 0 {
		if err := downloadState.SetNumberSteps(len(toRefresh)); err != nil {
			return err
		}
	}

	for _, r := range toRefresh {
		if err := s.refreshOneRepo(ctx, j, downloadState, r, force); err != nil {
			if pkgerrors.Is(err, pkgerrors.CannotFetchSource) {
				pkgmetrics.RepoRefreshTotal.WithLabelValues(r.ID, "fetch-failed").Inc()
				j.EmitMessage(job.Message{Type: "warning", Text: fmt.Sprintf("repo %s: %v", r.ID, err)})
			} else {
				pkgmetrics.RepoRefreshTotal.WithLabelValues(r.ID, "error").Inc()
				return err
			}
		}
		if err := downloadState.StepDone(); err != nil {
			return err
		}
		if j.IsCancelled() {
			return pkgerrors.New(pkgerrors.TransactionCancelled, "refresh cancelled")
		}
	}
	if err := root.StepDone(); err != nil {
		return err
	}

	if s.Sack != nil {
		if err := s.Sack.RebuildSack(ctx); err != nil {
			return pkgerrors.Wrap(pkgerrors.InternalError, err, "rebuild sack metadata")
		}
	}
	return root.StepDone() // "rebuild" step
}

// refreshOneRepo runs the per-repo {check:2, download:98} stage and
// reports how it ended to the caller rather than deciding for itself
// whether that's batch-fatal: a CannotFetchSource error is the only
// outcome Run treats as a non-fatal per-repo Message (spec §4.H); any
// other error — including a genuine runtime panic, recovered here and
// converted into a typed InternalError rather than re-panicking —
// propagates to the caller to fail the Job, per spec §9's early-return
// replacement for the original's AbortTransactionException.
func (s *Scheduler) refreshOneRepo(ctx context.Context, j *job.Job, parent *progress.State, r Repo, force bool) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.New(pkgerrors.InternalError, "repo %s: internal failure: %v", r.ID, rec)
		}
	}()

	child, err := parent.Child()
	if err != nil {
		return err
	}
	if err := child.SetWeights([]int{2, 98}); err != nil {
		return err
	}

	if force {
		if cerr := s.Loader.Clean(ctx, r); cerr != nil {
			return cerr
		}
	}
	_ = child.StepDone() // check

	uerr := s.Loader.Update(ctx, r, UpdateFlagImportPubkey)
	if sigErr, ok := uerr.(*ErrSignatureRequired); ok {
		if !s.handleSignature(j, r, sigErr.Info) {
			pkgmetrics.RepoRefreshTotal.WithLabelValues(r.ID, "untrusted").Inc()
			j.EmitMessage(job.Message{Type: "warning", Text: fmt.Sprintf("repo %s: signature not approved", r.ID)})
			_ = child.Finished()
			return nil
		}
		uerr = s.Loader.Update(ctx, r, UpdateFlagImportPubkey)
	}
	if uerr != nil {
		_ = child.Finished()
		return uerr
	}
	_ = child.StepDone() // download

	if s.AppStore != nil {
		if aerr := s.AppStore.InstallAppStream(ctx, r); aerr != nil {
			j.EmitMessage(job.Message{Type: "warning", Text: fmt.Sprintf("repo %s: appstream install failed: %v", r.ID, aerr)})
		}
	}

	pkgmetrics.RepoRefreshTotal.WithLabelValues(r.ID, "success").Inc()
	return nil
}

func (s *Scheduler) handleSignature(j *job.Job, r Repo, info SignatureInfo) bool {
	if s.Keys != nil && s.Keys.IsApproved(r.ID, info.KeyID) {
		return true
	}
	j.EmitRepoSignatureRequired(job.RepoSignatureRequired{
		PackageID:   pkgid.ID{Name: "dummy", Version: "0.0.1", Arch: "i386", Data: "data"},
		RepoID:      info.RepoID,
		URL:         info.URL,
		KeyName:     info.KeyName,
		KeyID:       info.KeyID,
		Fingerprint: info.Fingerprint,
		Created:     info.Created,
		SigType:     info.SigType,
	})
	if s.ApproveSignature == nil {
		return false
	}
	approved := s.ApproveSignature(j, info)
	if approved && s.Keys != nil {
		s.Keys.Approve(r.ID, info.KeyID)
	}
	return approved
}
