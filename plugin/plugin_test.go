package plugin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

func TestRunContinuesAfterHookError(t *testing.T) {
	reg := NewRegistry(nil)
	var ranSecond bool
	reg.Register(PointPostRefresh, "broken", func(ctx context.Context, j *job.Job) error {
		return errors.New("boom")
	})
	reg.Register(PointPostRefresh, "second", func(ctx context.Context, j *job.Job) error {
		ranSecond = true
		return nil
	})

	j := job.NewJob(pkgenum.RoleRefreshCache, nil)
	reg.Run(context.Background(), PointPostRefresh, j)

	assert.True(t, ranSecond, "a failing hook must not prevent later hooks from running")
	assert.False(t, j.HasErrorSet(), "a hook error alone must not set a Job error")
}

func TestHookCanExplicitlyFailTheJob(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(PointPreTransaction, "guard", func(ctx context.Context, j *job.Job) error {
		j.ErrorCode(pkgerrors.NotAuthorized, "blocked by policy")
		return nil
	})

	j := job.NewJob(pkgenum.RoleInstallPackages, nil)
	reg.Run(context.Background(), PointPreTransaction, j)

	require.True(t, j.HasErrorSet())
}

type fakeFirmwareQueue struct{ cleared int }

func (f *fakeFirmwareQueue) ClearRequests(ctx context.Context) error {
	f.cleared++
	return nil
}

func TestClearFirmwareRequestsDelegatesToQueue(t *testing.T) {
	q := &fakeFirmwareQueue{}
	hook := ClearFirmwareRequests(q)
	err := hook(context.Background(), job.NewJob(pkgenum.RoleRefreshCache, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, q.cleared)
}
