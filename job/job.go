// Package job implements the per-transaction context shared by every
// role the engine dispatches (spec §3/§4.D): inputs, the hierarchical
// progress root, typed event subscriptions, and the sticky error slot.
package job

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/internal/pkgmetrics"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/progress"
)

// CacheAgeNoCache is the cache_age sentinel meaning "do not use cache"
// (spec §3: "G_MAXUINT ⇒ do not use cache"). The zero value means no
// age restriction was requested: any cached sack is acceptable
// regardless of age.
const CacheAgeNoCache = math.MaxUint64

// Proxy carries the per-job proxy configuration (spec §3/§4.J).
type Proxy struct {
	HTTP    string
	HTTPS   string
	FTP     string
	SOCKS   string
	NoProxy string
	PAC     string
}

// Job is a single client request: a role, its parameters, and every
// per-request input, plus the subscription table role implementations
// emit events into. A Job is created with NewJob and is driven on
// exactly one worker at a time (see Dispatcher).
type Job struct {
	Role             pkgenum.Role
	TransactionFlags pkgenum.TransactionFlagSet
	Parameters       []string
	UID              uint32
	Locale           string
	Proxy            Proxy
	CacheAge         uint64
	Background       bool
	Interactive      bool
	FrontendSocket   string

	RootState *progress.State

	mu        sync.Mutex
	started   bool
	startedAt time.Time
	finished  bool
	errSet    *pkgerrors.JobError
	backend   interface{}

	onPackage               []func(Package)
	onDetails               []func(Details)
	onFiles                 []func(Files)
	onUpdateDetail          []func(UpdateDetail)
	onDistroUpgrade         []func(DistroUpgrade)
	onCategory              []func(Category)
	onRepoDetail            []func(RepoDetail)
	onRepoSignatureRequired []func(RepoSignatureRequired)
	onEulaRequired          []func(EulaRequired)
	onMediaChangeRequired   []func(MediaChangeRequired)
	onRequireRestart        []func(RequireRestart)
	onMessage               []func(Message)
	onErrorCode             []func(*pkgerrors.JobError)
	onStatus                []func(pkgenum.Status)
	onPercentage            []func(int)
	onItemProgress          []func(ItemProgress)
	onSpeed                 []func(uint64)
	onDownloadSizeRemaining []func(uint64)
	onAllowCancel           []func(bool)
	onFinished              []func(pkgenum.Exit)
}

// NewJob allocates a Job for role with the given parameters. The
// caller (the engine) still owns configuring RootState's weights once
// the role entry point knows its step plan; a single-step placeholder
// is installed so Percentage/StepDone are always safe to call.
func NewJob(role pkgenum.Role, parameters []string) *Job {
	root, err := progress.NewSteps(1)
	if err != nil {
		// NewSteps(1) cannot fail; guard against a future regression.
		panic(fmt.Sprintf("job: NewSteps(1) failed: %v", err))
	}
	return &Job{
		Role:       role,
		Parameters: parameters,
		RootState:  root,
	}
}

// SetBackend records the Backend this Job borrows for its duration.
// Stored as interface{} to avoid an import cycle between job and
// backend; callers type-assert back to their concrete Backend
// interface.
func (j *Job) SetBackend(b interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.backend = b
}

// Backend returns the borrowed backend set by SetBackend.
func (j *Job) Backend() interface{} {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.backend
}

// Start marks the Job as dispatched. Calling Start twice is a
// programming error.
func (j *Job) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.started {
		panic("job: Start called twice")
	}
	j.started = true
	j.startedAt = time.Now()
}

// Started reports whether Start has been called.
func (j *Job) Started() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.started
}

// IsCancelled reports whether the job's root progress tree has been
// cancelled.
func (j *Job) IsCancelled() bool {
	return j.RootState.IsCancelled()
}

// Cancel requests cancellation; see progress.State.Cancel.
func (j *Job) Cancel() bool {
	return j.RootState.Cancel()
}

// checkEmittableLocked panics if an emitter is called after Finished, per
// spec §4.D ("calling any emitter after finished is a programming
// error and must be detected"). Caller holds j.mu.
func (j *Job) checkEmittableLocked() {
	if j.finished {
		panic("job: emitter called after Finished")
	}
}

// ErrorCode records a typed failure. The first call wins; subsequent
// calls are logged-ignored (spec §4.D/§7: "a single error per Job is
// sticky").
func (j *Job) ErrorCode(code pkgerrors.Code, format string, args ...interface{}) {
	j.mu.Lock()
	if j.errSet != nil {
		j.mu.Unlock()
		return
	}
	err := pkgerrors.New(code, format, args...)
	j.errSet = err
	subs := append([]func(*pkgerrors.JobError){}, j.onErrorCode...)
	j.mu.Unlock()

	for _, fn := range subs {
		fn(err)
	}
}

// HasErrorSet reports whether ErrorCode has already recorded an
// error.
func (j *Job) HasErrorSet() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errSet != nil
}

// Error returns the sticky error, or nil if none was set.
func (j *Job) Error() *pkgerrors.JobError {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.errSet
}

// Finished ends the Job with the caller's exit code, except that
// Success is reported as Failed when an error is set (a Failed or
// Cancelled exit is kept as given). Finished is idempotent: a second
// call is a silent no-op, distinct from the other emitters which panic
// after Finished.
func (j *Job) Finished(exit pkgenum.Exit) {
	j.mu.Lock()
	if j.finished {
		j.mu.Unlock()
		return
	}
	if j.errSet != nil && exit == pkgenum.ExitSuccess {
		exit = pkgenum.ExitFailed
	}
	j.finished = true
	startedAt := j.startedAt
	subs := append([]func(pkgenum.Exit){}, j.onFinished...)
	j.mu.Unlock()

	role := j.Role.ToText()
	pkgmetrics.JobsTotal.WithLabelValues(role, exit.ToText()).Inc()
	if !startedAt.IsZero() {
		pkgmetrics.JobDuration.WithLabelValues(role).Observe(time.Since(startedAt).Seconds())
	}

	for _, fn := range subs {
		fn(exit)
	}
}

// IsFinished reports whether Finished has already run.
func (j *Job) IsFinished() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.finished
}

// ThreadCreate runs fn through d, which serializes execution when the
// owning backend is not parallelizable.
func (j *Job) ThreadCreate(d *Dispatcher, fn func()) {
	d.Run(fn)
}
