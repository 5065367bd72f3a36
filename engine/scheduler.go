package engine

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

// StartPeriodicRefresh schedules a background "is any repo due" check on
// the given cron expression (spec §4.H's periodic refresh), running a
// RoleRefreshCache job synchronously each time it fires. It returns the
// started cron.Cron so the caller can Stop it on shutdown.
func (e *Engine) StartPeriodicRefresh(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		j := job.NewJob(pkgenum.RoleRefreshCache, nil)
		if err := e.RunSynchronously(ctx, j); err != nil && e.Log != nil {
			e.Log.Warnf("engine: periodic refresh failed: %v", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
