package spawn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

func newTestJob() *job.Job {
	return job.NewJob(pkgenum.RoleSearchName, nil)
}

func TestDispatchLinePackage(t *testing.T) {
	j := newTestJob()
	var got job.Package
	j.OnPackage(func(p job.Package) { got = p })

	err := dispatchLine(j, "package\tinstalled\tbash;5.2-1;x86_64;installed\tthe bourne shell")
	require.NoError(t, err)
	assert.Equal(t, "bash", got.ID.Name)
	assert.Equal(t, pkgenum.InfoInstalled, got.Info)
	assert.Equal(t, "the bourne shell", got.Summary)
}

func TestDispatchLineDetails(t *testing.T) {
	j := newTestJob()
	var got job.Details
	j.OnDetails(func(d job.Details) { got = d })

	err := dispatchLine(j, "details\tbash;5.2-1;x86_64;installed\tGPLv3+\tshells\tthe bourne shell\thttp://example.com/bash\t4096")
	require.NoError(t, err)
	assert.Equal(t, "bash", got.ID.Name)
	assert.Equal(t, "GPLv3+", got.License)
	assert.Equal(t, pkgenum.GroupFromText("shells"), got.Group)
	assert.Equal(t, "the bourne shell", got.Description)
	assert.Equal(t, "http://example.com/bash", got.URL)
	assert.Equal(t, uint64(4096), got.Size)
}

func TestDispatchLineDetailsRejectsTooFewFields(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "details\tbash;5.2-1;x86_64;installed\tGPLv3+\tshells\tdesc\thttp://example.com/bash")
	require.Error(t, err)
}

func TestDispatchLinePercentageRejectsOverRange(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "percentage\t150")
	assert.Error(t, err)
}

func TestDispatchLineFinishedMarksJobDone(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "finished")
	require.NoError(t, err)
	assert.True(t, j.IsFinished())
}

func TestDispatchLineErrorRecordsStickyError(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "error\tpackage-not-found\tno package matches$1")
	require.NoError(t, err)
	require.True(t, j.HasErrorSet())
	assert.Contains(t, j.Error().Error(), "no package matches%1", "% substitution must be reversed")
}

func TestDispatchLineCategoryRejectsPathIcon(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "category\tparent\tchild\tName\tSummary\t/usr/share/icons/foo.png")
	assert.Error(t, err)
}

func TestDispatchLineCategoryAcceptsNamedIcon(t *testing.T) {
	j := newTestJob()
	var got job.Category
	j.OnCategory(func(c job.Category) { got = c })
	err := dispatchLine(j, "category\tparent\tchild\tName\tSummary\tapplications-games")
	require.NoError(t, err)
	assert.Equal(t, "applications-games", got.Icon)
}

func TestDispatchLineUnrecognizedCommandIsAWarningNotFatal(t *testing.T) {
	j := newTestJob()
	err := dispatchLine(j, "some-future-command\tfoo\tbar")
	assert.Error(t, err, "unrecognized commands return an error to log, never panic")
}

func TestDispatchLineItemProgress(t *testing.T) {
	j := newTestJob()
	var got job.ItemProgress
	j.OnItemProgress(func(p job.ItemProgress) { got = p })
	err := dispatchLine(j, "item-progress\tbash;5.2-1;x86_64;fedora\tdownload\t42")
	require.NoError(t, err)
	assert.Equal(t, 42, got.Percent)
	assert.Equal(t, pkgenum.StatusDownload, got.Status)
}

func TestSanitizeEnvReplacesUnsafeCharacters(t *testing.T) {
	assert.Equal(t, "a_b_c", sanitizeEnv("a;b\tc"))
	assert.Equal(t, "plain", sanitizeEnv("plain"))
}

func TestEnvToEnvironSanitizesByDefault(t *testing.T) {
	e := Env{HTTPProxy: "http://proxy;evil", Lang: "en_US.UTF-8"}
	environ := e.toEnviron()
	found := false
	for _, kv := range environ {
		if kv == "http_proxy=http://proxy_evil" {
			found = true
		}
	}
	assert.True(t, found, "semicolons in proxy values must be sanitized")
}

func TestEnvToEnvironKeepsRawWhenConfigured(t *testing.T) {
	e := Env{HTTPProxy: "http://proxy;evil", KeepEnvironment: true}
	environ := e.toEnviron()
	found := false
	for _, kv := range environ {
		if kv == "http_proxy=http://proxy;evil" {
			found = true
		}
	}
	assert.True(t, found)
}
