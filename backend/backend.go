// Package backend implements the polymorphic backend abstraction
// (spec §3/§4.E): capability discovery, the load/start_job/stop_job/
// unload lifecycle, and the cross-cutting EULA/inhibitor/signal/proxy
// concerns every concrete driver shares.
package backend

import (
	"context"
	"strings"
	"sync"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

// RoleHandler is a backend's entry point for one Role. It receives the
// Job it was dispatched for and reports failure through the returned
// error, which the engine turns into a Job.ErrorCode call if the
// handler did not already set one itself.
type RoleHandler func(ctx context.Context, j *job.Job) error

// Backend is a concrete package-manager driver registered against the
// engine. The core ships no driver of its own (spec §1: native
// package-manager libraries are external collaborators) — Backend is
// the seam a driver plugs into.
type Backend struct {
	Name                    string
	Author                  string
	Description             string
	Roles                   pkgenum.RoleSet
	Filters                 pkgenum.FilterSet
	Groups                  []pkgenum.Group
	MimeTypes               []string
	SupportsParallelization bool

	Dispatcher *job.Dispatcher

	mu       sync.Mutex
	handlers map[pkgenum.Role]RoleHandler
	online   bool

	eulas         *eulaRegistry
	inhibitor     *inhibitor
	watcher       *fileWatcher
	signals       *signalBus
	onFileChanged []func()
}

// engineThreadKey marks a context produced by the engine's single
// dispatch loop (or, for parallel-capable backends, one of its worker
// goroutines). Go does not expose goroutine identity, so thread
// affinity is enforced the idiomatic way: the engine stamps every
// context it hands to a Backend method, and AssertEngineThread panics
// if that stamp is missing (spec §5: "violating this is a programming
// error").
type engineThreadKey struct{}

// WithEngineThread marks ctx as originating from the engine's call
// path into a Backend.
func WithEngineThread(ctx context.Context) context.Context {
	return context.WithValue(ctx, engineThreadKey{}, true)
}

// AssertEngineThread panics if ctx was not produced by
// WithEngineThread.
func AssertEngineThread(ctx context.Context) {
	if v, _ := ctx.Value(engineThreadKey{}).(bool); !v {
		panic("backend: accessor called outside the engine's call path")
	}
}

// New creates an unloaded Backend. Call Load before dispatching any
// role.
func New(name string, parallel bool) *Backend {
	return &Backend{
		Name:                    name,
		SupportsParallelization: parallel,
		Dispatcher:              job.NewDispatcher(parallel),
		handlers:                make(map[pkgenum.Role]RoleHandler),
		eulas:                   newEulaRegistry(),
		inhibitor:               newInhibitor(),
		signals:                 newSignalBus(),
	}
}

// RegisterRole binds a RoleHandler and advertises the role as
// supported. Roles are either enumerated by the driver up front (this
// call) or inferred from which entry points it registers — both end
// up in the same Roles set.
func (b *Backend) RegisterRole(role pkgenum.Role, handler RoleHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[role] = handler
	b.Roles = b.Roles.Add(role)
}

// Load brings the backend up: starts the config file watch (confPath
// may be empty to skip it) and marks the backend online. Load must be
// called exactly once before any job is dispatched.
func (b *Backend) Load(confPath string) error {
	b.mu.Lock()
	b.online = true
	b.mu.Unlock()

	if confPath != "" {
		w, err := newFileWatcher(confPath, b.fireFileChanged)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.FailedInitialization, err, "watch backend config %s", confPath)
		}
		b.mu.Lock()
		b.watcher = w
		b.mu.Unlock()
	}
	return nil
}

// Unload tears the backend down: stops the config watch and the
// inhibitor's debounce timer.
func (b *Backend) Unload() {
	b.mu.Lock()
	w := b.watcher
	b.watcher = nil
	b.online = false
	b.mu.Unlock()

	if w != nil {
		w.stop()
	}
	b.inhibitor.stop()
}

// IsOnline exposes network link state, as tracked by SetOnline.
func (b *Backend) IsOnline() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.online
}

// SetOnline updates the link state the backend reports via IsOnline.
func (b *Backend) SetOnline(online bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.online = online
}

// StartJob marks j as borrowing this backend for its duration (spec
// §3 ownership: "a Job... borrows the Backend for the duration of the
// Job").
func (b *Backend) StartJob(j *job.Job) {
	j.SetBackend(b)
}

// StopJob releases the borrow. It is always safe to call, including
// after a failed dispatch.
func (b *Backend) StopJob(j *job.Job) {
	j.SetBackend(nil)
}

// Dispatch runs the role entry point registered for j.Role. An
// unregistered role fails the Job with NotSupported (spec §4.E). A
// panic crossing the handler boundary is recovered and turned into
// InternalError, never propagated to the engine (spec §7).
func (b *Backend) Dispatch(ctx context.Context, j *job.Job) (err error) {
	b.mu.Lock()
	handler, ok := b.handlers[j.Role]
	b.mu.Unlock()

	if !ok {
		j.ErrorCode(pkgerrors.NotSupported, "backend %s does not implement role %s", b.Name, j.Role.ToText())
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			j.ErrorCode(pkgerrors.InternalError, "panic in backend %s role %s: %v", b.Name, j.Role.ToText(), r)
			err = pkgerrors.New(pkgerrors.InternalError, "panic in backend %s role %s: %v", b.Name, j.Role.ToText(), r)
		}
	}()

	if hErr := handler(ctx, j); hErr != nil && !j.HasErrorSet() {
		j.ErrorCode(pkgerrors.InternalError, "%v", hErr)
	}
	return nil
}

// ConvertURI normalizes a proxy URI: it prepends "http://" (or
// "socks://" when socks is true) if the string carries no scheme, and
// appends "/" if it carries no path (spec §4.E).
func ConvertURI(raw string, socks bool) string {
	if raw == "" {
		return raw
	}
	out := raw
	if !strings.Contains(out, "://") {
		scheme := "http://"
		if socks {
			scheme = "socks://"
		}
		out = scheme + out
	}
	if i := strings.Index(out, "://"); i >= 0 {
		rest := out[i+3:]
		if !strings.Contains(rest, "/") {
			out += "/"
		}
	}
	return out
}

// OnFileChanged registers a callback fired when the watched config
// file's mtime changes (spec §4.E: "load may register a file watch on
// the backend config").
func (b *Backend) OnFileChanged(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onFileChanged = append(b.onFileChanged, fn)
}

func (b *Backend) fireFileChanged() {
	b.mu.Lock()
	subs := append([]func(){}, b.onFileChanged...)
	b.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// OnRepoListChanged registers a repo-list-changed subscriber.
func (b *Backend) OnRepoListChanged(fn func()) { b.signals.onRepoListChanged(fn) }

// FireRepoListChanged notifies repo-list-changed subscribers.
func (b *Backend) FireRepoListChanged() { b.signals.fireRepoListChanged() }

// OnUpdatesChanged registers an updates-changed subscriber; fires are
// batched within the fixed updatesChangedBatch window.
func (b *Backend) OnUpdatesChanged(fn func()) { b.signals.onUpdatesChanged(fn) }

// FireUpdatesChanged notifies (possibly batched) updates-changed
// subscribers.
func (b *Backend) FireUpdatesChanged() { b.signals.fireUpdatesChanged() }

// AcceptEula delegates to the backend's EULA registry.
func (b *Backend) AcceptEula(eulaID string) { b.eulas.accept(eulaID) }

// IsEulaValid delegates to the backend's EULA registry.
func (b *Backend) IsEulaValid(eulaID string) bool { return b.eulas.isValid(eulaID) }

// GetAcceptedEulaString delegates to the backend's EULA registry.
func (b *Backend) GetAcceptedEulaString() string { return b.eulas.acceptedString() }

// TransactionInhibitStart brackets a DB mutation; see inhibitor for
// the debounce semantics this enables.
func (b *Backend) TransactionInhibitStart() { b.inhibitor.start() }

// TransactionInhibitEnd ends the bracket started by
// TransactionInhibitStart.
func (b *Backend) TransactionInhibitEnd() { b.inhibitor.end() }

// InstalledDBChanged is posted by a file monitor on the installed
// database; it is debounced through the inhibitor per spec §4.E.
func (b *Backend) InstalledDBChanged() { b.inhibitor.installedDBChanged() }

// OnInstalledDBChanged registers the (debounced) callback the
// inhibitor invokes.
func (b *Backend) OnInstalledDBChanged(fn func()) { b.inhibitor.onChanged = fn }
