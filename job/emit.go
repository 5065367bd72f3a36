package job

import (
	"errors"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

var errPercentOutOfRange = errors.New("job: item progress percent > 100")

// This file defines the On<Kind>/Emit<Kind> pair for every event kind
// listed in spec §4.D. Each Emit<Kind> panics if called after
// Finished (see checkEmittableLocked); each On<Kind> may be called at
// any time, including before Start.

func (j *Job) OnPackage(fn func(Package)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onPackage = append(j.onPackage, fn)
}

func (j *Job) EmitPackage(p Package) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(Package){}, j.onPackage...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(p)
	}
}

func (j *Job) OnDetails(fn func(Details)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onDetails = append(j.onDetails, fn)
}

func (j *Job) EmitDetails(d Details) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(Details){}, j.onDetails...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(d)
	}
}

func (j *Job) OnFiles(fn func(Files)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onFiles = append(j.onFiles, fn)
}

func (j *Job) EmitFiles(f Files) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(Files){}, j.onFiles...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(f)
	}
}

func (j *Job) OnUpdateDetail(fn func(UpdateDetail)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onUpdateDetail = append(j.onUpdateDetail, fn)
}

func (j *Job) EmitUpdateDetail(u UpdateDetail) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(UpdateDetail){}, j.onUpdateDetail...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}

func (j *Job) OnDistroUpgrade(fn func(DistroUpgrade)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onDistroUpgrade = append(j.onDistroUpgrade, fn)
}

func (j *Job) EmitDistroUpgrade(d DistroUpgrade) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(DistroUpgrade){}, j.onDistroUpgrade...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(d)
	}
}

func (j *Job) OnCategory(fn func(Category)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onCategory = append(j.onCategory, fn)
}

func (j *Job) EmitCategory(c Category) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(Category){}, j.onCategory...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}

func (j *Job) OnRepoDetail(fn func(RepoDetail)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onRepoDetail = append(j.onRepoDetail, fn)
}

func (j *Job) EmitRepoDetail(r RepoDetail) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(RepoDetail){}, j.onRepoDetail...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(r)
	}
}

func (j *Job) OnRepoSignatureRequired(fn func(RepoSignatureRequired)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onRepoSignatureRequired = append(j.onRepoSignatureRequired, fn)
}

func (j *Job) EmitRepoSignatureRequired(r RepoSignatureRequired) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(RepoSignatureRequired){}, j.onRepoSignatureRequired...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(r)
	}
}

func (j *Job) OnEulaRequired(fn func(EulaRequired)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onEulaRequired = append(j.onEulaRequired, fn)
}

func (j *Job) EmitEulaRequired(e EulaRequired) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(EulaRequired){}, j.onEulaRequired...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

func (j *Job) OnMediaChangeRequired(fn func(MediaChangeRequired)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onMediaChangeRequired = append(j.onMediaChangeRequired, fn)
}

func (j *Job) EmitMediaChangeRequired(m MediaChangeRequired) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(MediaChangeRequired){}, j.onMediaChangeRequired...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
}

func (j *Job) OnRequireRestart(fn func(RequireRestart)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onRequireRestart = append(j.onRequireRestart, fn)
}

func (j *Job) EmitRequireRestart(r RequireRestart) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(RequireRestart){}, j.onRequireRestart...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(r)
	}
}

func (j *Job) OnMessage(fn func(Message)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onMessage = append(j.onMessage, fn)
}

func (j *Job) EmitMessage(m Message) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(Message){}, j.onMessage...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(m)
	}
}

func (j *Job) OnErrorCode(fn func(*pkgerrors.JobError)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onErrorCode = append(j.onErrorCode, fn)
}

func (j *Job) OnStatus(fn func(pkgenum.Status)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onStatus = append(j.onStatus, fn)
}

func (j *Job) EmitStatus(s pkgenum.Status) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(pkgenum.Status){}, j.onStatus...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

// OnPercentage/EmitPercentage exist on Job in addition to
// progress.State's own OnPercentage so the engine may subscribe at the
// Job level without reaching into RootState directly; role code
// should still drive percentage through RootState.StepDone, and wire
// RootState.OnPercentage(job.EmitPercentage) once at Job creation.
func (j *Job) OnPercentage(fn func(int)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onPercentage = append(j.onPercentage, fn)
}

func (j *Job) EmitPercentage(p int) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(int){}, j.onPercentage...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(p)
	}
}

func (j *Job) OnItemProgress(fn func(ItemProgress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onItemProgress = append(j.onItemProgress, fn)
}

// EmitItemProgress rejects percentages above 100 per the spawn
// protocol's validation rule (§6), which this emitter also enforces
// for in-process role callers.
func (j *Job) EmitItemProgress(p ItemProgress) error {
	if p.Percent > 100 {
		return errPercentOutOfRange
	}
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(ItemProgress){}, j.onItemProgress...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(p)
	}
	return nil
}

func (j *Job) OnSpeed(fn func(uint64)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onSpeed = append(j.onSpeed, fn)
}

func (j *Job) EmitSpeed(bytesPerSec uint64) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(uint64){}, j.onSpeed...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(bytesPerSec)
	}
}

func (j *Job) OnDownloadSizeRemaining(fn func(uint64)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onDownloadSizeRemaining = append(j.onDownloadSizeRemaining, fn)
}

func (j *Job) EmitDownloadSizeRemaining(bytes uint64) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(uint64){}, j.onDownloadSizeRemaining...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(bytes)
	}
}

func (j *Job) OnAllowCancel(fn func(bool)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onAllowCancel = append(j.onAllowCancel, fn)
}

func (j *Job) EmitAllowCancel(allow bool) {
	j.mu.Lock()
	j.checkEmittableLocked()
	subs := append([]func(bool){}, j.onAllowCancel...)
	j.mu.Unlock()
	for _, fn := range subs {
		fn(allow)
	}
}

// OnFinished registers a Finished subscriber. See Job.Finished for the
// idempotency contract.
func (j *Job) OnFinished(fn func(pkgenum.Exit)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.onFinished = append(j.onFinished, fn)
}
