// Package engine wires the Job/Backend/Sack/Query/Refresh/Transaction/
// Spawn/Plugin components together into the daemon process (spec §1's
// "the core" orchestrating role): it owns no package-manager logic
// itself, only the glue between the core components and whatever
// external collaborators (solver, downloader, installed-DB, repo
// loader) a concrete deployment supplies.
package engine

import (
	"context"
	"fmt"

	"github.com/pkgkitd/pkgkitd/backend"
	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/internal/pkglog"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
	"github.com/pkgkitd/pkgkitd/plugin"
	"github.com/pkgkitd/pkgkitd/query"
	"github.com/pkgkitd/pkgkitd/refresh"
	"github.com/pkgkitd/pkgkitd/sack"
	"github.com/pkgkitd/pkgkitd/transaction"
)

// Engine composes one Backend with the collaborators every read/write
// role needs, and registers a RoleHandler for each role it supports.
type Engine struct {
	Backend *backend.Backend
	Cache   *sack.Cache

	ReleaseVer   string
	SackFlags    sack.FlagSet
	NativeArches []string

	Meta   query.MetaLookup
	Extras query.ExtrasLookup

	Refresh     *refresh.Scheduler
	Transaction *transaction.Planner
	Plugins     *plugin.Registry

	Log *pkglog.Logger
}

// New builds an Engine bound to backend b. RegisterRoles must still be
// called once the collaborator fields above are populated.
func New(b *backend.Backend, cache *sack.Cache, log *pkglog.Logger) *Engine {
	return &Engine{Backend: b, Cache: cache, Log: log, Plugins: plugin.NewRegistry(log)}
}

// RegisterRoles binds every role this Engine drives onto its Backend.
func (e *Engine) RegisterRoles() {
	e.Backend.RegisterRole(pkgenum.RoleRefreshCache, e.handleRefresh)
	e.Backend.RegisterRole(pkgenum.RoleSearchName, e.searchHandler(query.ModeName))
	e.Backend.RegisterRole(pkgenum.RoleSearchDetails, e.searchHandler(query.ModeDetails))
	e.Backend.RegisterRole(pkgenum.RoleSearchFile, e.searchHandler(query.ModeFile))
	e.Backend.RegisterRole(pkgenum.RoleResolve, e.searchHandler(query.ModeName))
	e.Backend.RegisterRole(pkgenum.RoleWhatProvides, e.searchHandler(query.ModeProvides))
	e.Backend.RegisterRole(pkgenum.RoleGetUpdates, e.handleGetUpdates)
	e.Backend.RegisterRole(pkgenum.RoleInstallPackages, e.transactionHandler(transaction.IntentInstall))
	e.Backend.RegisterRole(pkgenum.RoleRemovePackages, e.transactionHandler(transaction.IntentRemove))
	e.Backend.RegisterRole(pkgenum.RoleUpdatePackages, e.transactionHandler(transaction.IntentUpdate))
	e.Backend.RegisterRole(pkgenum.RoleUpdateSystem, e.transactionHandler(transaction.IntentUpgrade))
	e.Backend.RegisterRole(pkgenum.RoleGetDetails, e.searchHandler(query.ModeDetails))
	e.Backend.RegisterRole(pkgenum.RoleSearchGroup, e.searchHandler(query.ModeName))

	e.Backend.RegisterRole(pkgenum.RoleSimulateInstall, e.simulateHandler(transaction.IntentInstall))
	e.Backend.RegisterRole(pkgenum.RoleSimulateRemove, e.simulateHandler(transaction.IntentRemove))
	e.Backend.RegisterRole(pkgenum.RoleSimulateUpdate, e.simulateHandler(transaction.IntentUpdate))

	e.Backend.RegisterRole(pkgenum.RoleGetFiles, e.handleGetFiles)
	e.Backend.RegisterRole(pkgenum.RoleGetRepoList, e.handleGetRepoList)
}

// handleGetFiles emits the on-disk paths for each requested package id
// by consulting the same MetaLookup the query engine uses for its
// ModeFile content match, rather than a second files collaborator.
func (e *Engine) handleGetFiles(ctx context.Context, j *job.Job) error {
	for _, param := range j.Parameters {
		id, ok := pkgid.Split(param)
		if !ok {
			return pkgerrors.New(pkgerrors.PackageIDInvalid, "malformed package id %q", param)
		}
		var files []string
		if e.Meta != nil {
			files = e.Meta(id).Files
		}
		j.EmitFiles(job.Files{ID: id, Files: files})
	}
	j.Finished(pkgenum.ExitSuccess)
	return nil
}

// handleGetRepoList reports every configured repo through the
// refresh scheduler's Lister, the same collaborator RoleRefreshCache
// uses to decide what's stale.
func (e *Engine) handleGetRepoList(ctx context.Context, j *job.Job) error {
	if e.Refresh == nil || e.Refresh.Lister == nil {
		return pkgerrors.New(pkgerrors.NotSupported, "no repo lister configured")
	}
	repos, err := e.Refresh.Lister.ListRepos(ctx)
	if err != nil {
		return err
	}
	for _, r := range repos {
		j.EmitRepoDetail(job.RepoDetail{ID: r.ID, Description: r.Description, Enabled: r.Enabled})
	}
	j.Finished(pkgenum.ExitSuccess)
	return nil
}

func (e *Engine) loadSack(ctx context.Context, j *job.Job) (*sack.Sack, error) {
	useCache := j.CacheAge != job.CacheAgeNoCache
	return e.Cache.GetOrBuild(ctx, j, e.ReleaseVer, e.SackFlags, useCache)
}

// searchHandler builds a RoleHandler that runs the query engine in the
// given Mode. j.Parameters[0] is the filter text (spec §6's
// text_to_filter convention, "none" for no filter); the rest are
// search terms.
func (e *Engine) searchHandler(mode query.Mode) backend.RoleHandler {
	return func(ctx context.Context, j *job.Job) error {
		s, err := e.loadSack(ctx, j)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.NoCache, err, "load sack")
		}
		filterText, terms := "", j.Parameters
		if len(j.Parameters) > 0 {
			filterText, terms = j.Parameters[0], j.Parameters[1:]
		}
		req := query.Request{
			Terms:        terms,
			Mode:         mode,
			Filters:      pkgenum.TextToFilter(filterText),
			NativeArches: e.NativeArches,
			Locale:       j.Locale,
			Meta:         e.Meta,
			Extras:       e.Extras,
		}
		results, err := query.Run(s, req)
		if err != nil {
			return err
		}
		j.RootState.SetAction("query", "")
		for _, p := range results {
			j.EmitPackage(p)
		}
		j.Finished(pkgenum.ExitSuccess)
		return nil
	}
}

func (e *Engine) handleGetUpdates(ctx context.Context, j *job.Job) error {
	s, err := e.loadSack(ctx, j)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.NoCache, err, "load sack")
	}
	req := query.Request{
		Mode:         query.ModeName,
		NativeArches: e.NativeArches,
		Locale:       j.Locale,
		Meta:         e.Meta,
		Extras:       e.Extras,
	}
	results, err := query.Run(s, req)
	if err != nil {
		return err
	}
	for _, p := range results {
		if !p.ID.IsInstalled() {
			j.EmitPackage(p)
		}
	}
	j.Finished(pkgenum.ExitSuccess)
	return nil
}

func (e *Engine) handleRefresh(ctx context.Context, j *job.Job) error {
	if e.Refresh == nil {
		return pkgerrors.New(pkgerrors.NotSupported, "no refresh scheduler configured")
	}
	force := false
	for _, p := range j.Parameters {
		if p == "force" {
			force = true
		}
	}
	e.Plugins.Run(ctx, plugin.PointPreTransaction, j)
	if err := e.Refresh.Run(ctx, j, force); err != nil {
		return err
	}
	e.Plugins.Run(ctx, plugin.PointPostRefresh, j)
	e.Cache.Invalidate("repo refresh")
	j.Finished(pkgenum.ExitSuccess)
	return nil
}

// transactionHandler builds a RoleHandler that parses j.Parameters as
// package ids, builds a transaction.Goal, and runs it through
// e.Transaction, bracketed by the plugin pre/post-transaction hooks.
func (e *Engine) transactionHandler(intent transaction.Intent) backend.RoleHandler {
	return func(ctx context.Context, j *job.Job) error {
		if e.Transaction == nil {
			return pkgerrors.New(pkgerrors.NotSupported, "no transaction planner configured")
		}
		targets := make([]pkgid.ID, 0, len(j.Parameters))
		for _, param := range j.Parameters {
			id, ok := pkgid.Split(param)
			if !ok {
				return pkgerrors.New(pkgerrors.PackageIDInvalid, "malformed package id %q", param)
			}
			targets = append(targets, id)
		}

		e.Plugins.Run(ctx, plugin.PointPreTransaction, j)
		err := e.Transaction.Run(ctx, j, transaction.Goal{Intent: intent, Targets: targets})
		if err != nil {
			return err
		}
		e.Plugins.Run(ctx, plugin.PointPostTransaction, j)

		if !j.TransactionFlags.Contains(pkgenum.TransactionFlagSimulate) {
			e.Cache.Invalidate("transaction committed")
			e.Backend.FireUpdatesChanged()
		}
		if !j.IsFinished() {
			j.Finished(pkgenum.ExitSuccess)
		}
		return nil
	}
}

// simulateHandler wraps transactionHandler forcing the Simulate flag,
// backing the three simulate-* roles (spec §4.I step 4) without
// duplicating the planner-invocation logic.
func (e *Engine) simulateHandler(intent transaction.Intent) backend.RoleHandler {
	inner := e.transactionHandler(intent)
	return func(ctx context.Context, j *job.Job) error {
		j.TransactionFlags = j.TransactionFlags.Add(pkgenum.TransactionFlagSimulate)
		return inner(ctx, j)
	}
}

// RunSynchronously dispatches j through the Engine's Backend on the
// current goroutine, returning once the handler completes. The direct
// CLI harness (spec §4.L) uses this instead of the Dispatcher's
// queueing so each command maps to exactly one synchronous job.
func (e *Engine) RunSynchronously(ctx context.Context, j *job.Job) error {
	ctx = backend.WithEngineThread(ctx)
	j.Start()
	e.Backend.StartJob(j)
	defer e.Backend.StopJob(j)

	dispatchErr := e.Backend.Dispatch(ctx, j)
	if j.HasErrorSet() && !j.IsFinished() {
		j.Finished(pkgenum.ExitFailed)
	}
	if dispatchErr != nil {
		return dispatchErr
	}
	if err := j.Error(); err != nil {
		return fmt.Errorf("%s", err.Error())
	}
	return nil
}
