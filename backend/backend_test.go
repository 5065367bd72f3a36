package backend

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/internal/pkgerrors"
	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

func TestDispatchUnregisteredRoleIsNotSupported(t *testing.T) {
	b := New("test", true)
	j := job.NewJob(pkgenum.RoleInstallPackages, nil)

	err := b.Dispatch(WithEngineThread(context.Background()), j)
	require.NoError(t, err)
	require.True(t, j.HasErrorSet())
	assert.Equal(t, pkgerrors.NotSupported, j.Error().Code)
}

func TestDispatchRecoversPanicAsInternalError(t *testing.T) {
	b := New("test", true)
	b.RegisterRole(pkgenum.RoleSearchName, func(ctx context.Context, j *job.Job) error {
		panic("boom")
	})
	j := job.NewJob(pkgenum.RoleSearchName, nil)

	err := b.Dispatch(context.Background(), j)
	require.Error(t, err)
	require.True(t, j.HasErrorSet())
	assert.Equal(t, pkgerrors.InternalError, j.Error().Code)
}

func TestDispatchRunsRegisteredHandler(t *testing.T) {
	b := New("test", true)
	called := false
	b.RegisterRole(pkgenum.RoleSearchName, func(ctx context.Context, j *job.Job) error {
		called = true
		return nil
	})
	j := job.NewJob(pkgenum.RoleSearchName, nil)

	err := b.Dispatch(context.Background(), j)
	require.NoError(t, err)
	assert.True(t, called)
	assert.False(t, j.HasErrorSet())
}

func TestEulaRegistryAcceptIsIdempotent(t *testing.T) {
	b := New("test", true)
	b.AcceptEula("eula-1")
	b.AcceptEula("eula-1")
	b.AcceptEula("eula-2")

	assert.True(t, b.IsEulaValid("eula-1"))
	assert.False(t, b.IsEulaValid("unknown"))
	assert.Equal(t, "eula-1;eula-2", b.GetAcceptedEulaString())
}

func TestConvertURIAddsSchemeAndTrailingSlash(t *testing.T) {
	assert.Equal(t, "http://proxy.example.com/", ConvertURI("proxy.example.com", false))
	assert.Equal(t, "socks://proxy.example.com/", ConvertURI("proxy.example.com", true))
	assert.Equal(t, "http://proxy.example.com:8080/path", ConvertURI("http://proxy.example.com:8080/path", false))
}

func TestAssertEngineThreadPanicsWithoutStamp(t *testing.T) {
	assert.Panics(t, func() {
		AssertEngineThread(context.Background())
	})
	assert.NotPanics(t, func() {
		AssertEngineThread(WithEngineThread(context.Background()))
	})
}

func TestInhibitorSuppressesWhileInhibitedAndDebouncesAfter(t *testing.T) {
	i := newInhibitor()
	fired := make(chan struct{}, 1)
	i.onChanged = func() { fired <- struct{}{} }

	i.start()
	i.installedDBChanged() // suppressed: still inhibited
	i.end()

	select {
	case <-fired:
		t.Fatal("onChanged fired while debounce window has not elapsed")
	case <-time.After(50 * time.Millisecond):
	}

	i.installedDBChanged() // restarts the debounce window post-inhibit
	select {
	case <-fired:
	case <-time.After(4 * time.Second):
		t.Fatal("onChanged never fired after the debounce window")
	}
}

func TestFileWatcherFiresOnMtimeChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backend.conf")
	require.NoError(t, os.WriteFile(path, []byte("a=1"), 0o644))

	b := New("test", true)
	changed := make(chan struct{}, 1)
	b.OnFileChanged(func() { changed <- struct{}{} })
	require.NoError(t, b.Load(path))
	defer b.Unload()

	time.Sleep(10 * time.Millisecond)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatal("file watcher never fired")
	}
}
