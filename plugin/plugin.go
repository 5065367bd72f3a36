// Package plugin implements the best-effort pre/post-transaction hook
// points (spec §4.K): a plugin failure is logged as a warning and never
// aborts the transaction unless the plugin explicitly records an error
// on the Job itself.
package plugin

import (
	"context"

	"github.com/pkgkitd/pkgkitd/internal/pkglog"
	"github.com/pkgkitd/pkgkitd/job"
)

// Point identifies where in a transaction a set of hooks runs.
type Point string

const (
	PointPreTransaction  Point = "pre-transaction"
	PointPostTransaction Point = "post-transaction"
	PointPostRefresh     Point = "post-refresh"
)

// Hook is a single plugin callback. Returning an error only produces a
// warning log line; to fail the transaction a hook must call
// j.ErrorCode itself.
type Hook func(ctx context.Context, j *job.Job) error

// Registry holds the hooks registered at each Point, run in
// registration order.
type Registry struct {
	hooks map[Point][]namedHook
	Log   *pkglog.Logger
}

type namedHook struct {
	name string
	fn   Hook
}

// NewRegistry builds an empty Registry.
func NewRegistry(log *pkglog.Logger) *Registry {
	return &Registry{hooks: make(map[Point][]namedHook), Log: log}
}

// Register adds fn under name at point.
func (r *Registry) Register(point Point, name string, fn Hook) {
	r.hooks[point] = append(r.hooks[point], namedHook{name: name, fn: fn})
}

// Run executes every hook registered at point, in order. A hook's
// returned error is logged as a warning and does not stop the
// remaining hooks from running, matching spec §4.K's "must not abort
// the transaction" rule; a hook that wants to fail the transaction
// must call j.ErrorCode directly.
func (r *Registry) Run(ctx context.Context, point Point, j *job.Job) {
	for _, h := range r.hooks[point] {
		if err := h.fn(ctx, j); err != nil {
			if r.Log != nil {
				r.Log.Warnf("plugin: hook %q at %s failed: %v", h.name, point, err)
			}
		}
	}
}

// FirmwareQueue clears the transient firmware-request directory after
// a refresh, an external collaborator the post-refresh hook delegates
// to (spec §4.K's concrete example).
type FirmwareQueue interface {
	ClearRequests(ctx context.Context) error
}

// ClearFirmwareRequests builds the post-refresh hook spec §4.K names
// explicitly: "post-refresh must clear the transient firmware-request
// directory."
func ClearFirmwareRequests(q FirmwareQueue) Hook {
	return func(ctx context.Context, j *job.Job) error {
		return q.ClearRequests(ctx)
	}
}
