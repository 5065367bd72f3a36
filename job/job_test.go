package job

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/internal/pkgmetrics"
	"github.com/pkgkitd/pkgkitd/pkgenum"
	"github.com/pkgkitd/pkgkitd/pkgid"
)

func TestFinishedIsIdempotent(t *testing.T) {
	j := NewJob(pkgenum.RoleSearchName, nil)
	var calls int32
	j.OnFinished(func(pkgenum.Exit) { atomic.AddInt32(&calls, 1) })

	j.Finished(pkgenum.ExitSuccess)
	j.Finished(pkgenum.ExitSuccess)

	assert.Equal(t, int32(1), calls)
	assert.True(t, j.IsFinished())
}

func TestEmitterAfterFinishedPanics(t *testing.T) {
	j := NewJob(pkgenum.RoleSearchName, nil)
	j.Finished(pkgenum.ExitSuccess)

	assert.Panics(t, func() {
		j.EmitPackage(Package{ID: pkgid.ID{Name: "foo"}})
	})
}

func TestFinishedRecordsJobMetrics(t *testing.T) {
	j := NewJob(pkgenum.RoleRefreshCache, nil)
	before := testutil.ToFloat64(pkgmetrics.JobsTotal.WithLabelValues(pkgenum.RoleRefreshCache.ToText(), pkgenum.ExitSuccess.ToText()))
	beforeSamples := testutil.CollectAndCount(pkgmetrics.JobDuration)

	j.Start()
	j.Finished(pkgenum.ExitSuccess)

	after := testutil.ToFloat64(pkgmetrics.JobsTotal.WithLabelValues(pkgenum.RoleRefreshCache.ToText(), pkgenum.ExitSuccess.ToText()))
	assert.Equal(t, before+1, after)
	assert.Greater(t, testutil.CollectAndCount(pkgmetrics.JobDuration), beforeSamples-1)
}

func TestFinishedRecordsMetricsEvenWithoutStart(t *testing.T) {
	j := NewJob(pkgenum.RoleSearchName, nil)
	before := testutil.ToFloat64(pkgmetrics.JobsTotal.WithLabelValues(pkgenum.RoleSearchName.ToText(), pkgenum.ExitFailed.ToText()))

	j.Finished(pkgenum.ExitFailed)

	after := testutil.ToFloat64(pkgmetrics.JobsTotal.WithLabelValues(pkgenum.RoleSearchName.ToText(), pkgenum.ExitFailed.ToText()))
	assert.Equal(t, before+1, after, "counter still increments when Start was never called")
}

func TestErrorCodeIsStickyFirstWins(t *testing.T) {
	j := NewJob(pkgenum.RoleInstallPackages, nil)
	var seen []*pkgerrors.JobError
	j.OnErrorCode(func(e *pkgerrors.JobError) { seen = append(seen, e) })

	j.ErrorCode(pkgerrors.PackageNotFound, "missing %s", "foo")
	j.ErrorCode(pkgerrors.InternalError, "should be ignored")

	require.True(t, j.HasErrorSet())
	require.Len(t, seen, 1)
	assert.Equal(t, pkgerrors.PackageNotFound, j.Error().Code)
}

func TestItemProgressRejectsOutOfRangePercent(t *testing.T) {
	j := NewJob(pkgenum.RoleInstallPackages, nil)
	err := j.EmitItemProgress(ItemProgress{Percent: 101})
	assert.Error(t, err)
}

func TestDispatcherSerializesWhenNotParallel(t *testing.T) {
	d := NewDispatcher(false)
	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 5; i++ {
		wg.Add(1)
		i := i
		d.Run(func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		})
	}
	wg.Wait()

	require.Len(t, order, 5)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestDispatcherRunsConcurrentlyWhenParallel(t *testing.T) {
	d := NewDispatcher(true)
	var wg sync.WaitGroup
	start := make(chan struct{})
	var running int32
	var maxRunning int32

	for i := 0; i < 4; i++ {
		wg.Add(1)
		d.Run(func() {
			defer wg.Done()
			<-start
			n := atomic.AddInt32(&running, 1)
			if n > maxRunning {
				atomic.StoreInt32(&maxRunning, n)
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&running, -1)
		})
	}
	close(start)
	wg.Wait()

	assert.Greater(t, int(maxRunning), 1)
}
