package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartPeriodicRefreshRunsOnSchedule(t *testing.T) {
	e := newTestEngine(t)

	c, err := e.StartPeriodicRefresh(context.Background(), "@every 10ms")
	require.NoError(t, err)
	defer c.Stop()

	assert.Eventually(t, func() bool {
		return len(c.Entries()) == 1 && !c.Entries()[0].Prev.IsZero()
	}, time.Second, 5*time.Millisecond)
}

func TestStartPeriodicRefreshRejectsInvalidSpec(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.StartPeriodicRefresh(context.Background(), "not a cron spec")
	assert.Error(t, err)
}
