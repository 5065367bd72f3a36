package pkgenum

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleFromTextUnknownIsNeverAnError(t *testing.T) {
	assert.Equal(t, RoleUnknown, RoleFromText("not-a-real-role"))
	assert.Equal(t, RoleInstallPackages, RoleFromText("install-packages"))
}

func TestBitfieldPriorityScenario(t *testing.T) {
	// Scenario 1 from spec §8.
	b := BitfieldFrom(RoleSearchDetails, RoleSearchGroup)

	assert.Equal(t, RoleUnknown, ContainsPriority(b, RoleUnknown, RoleSearchFile))
	assert.Equal(t, RoleSearchGroup, ContainsPriority(b, RoleUnknown, RoleSearchFile, RoleSearchGroup))
}

func TestFilterTextRoundTrip(t *testing.T) {
	// Scenario 2 from spec §8.
	f := TextToFilter("~devel;gui;newest")
	assert.True(t, f.Contains(FilterNotDevel))
	assert.True(t, f.Contains(FilterGUI))
	assert.True(t, f.Contains(FilterNewest))
	assert.Equal(t, "~devel;gui;newest", FilterToText(f))
}

func TestFilterNoneIsEmptySet(t *testing.T) {
	f := TextToFilter("none")
	assert.True(t, f.IsEmpty())
	assert.Equal(t, "none", FilterToText(f))
}

func TestFilterMutualExclusion(t *testing.T) {
	f := FilterSet(0).Add(FilterInstalled)
	require.True(t, f.Validate())
	f = f.Add(FilterNotInstalled)
	assert.False(t, f.Validate())
}

func TestBitfieldAddRemoveContains(t *testing.T) {
	for _, v := range []Filter{FilterDevel, FilterGUI, FilterNewest} {
		f := FilterSet(0).Add(v)
		require.True(t, f.Contains(v))
		f2 := f.Remove(v).Add(v)
		assert.True(t, f2.Contains(v))
	}
}

func TestFilterRoundTripAllNames(t *testing.T) {
	var all FilterSet
	for _, v := range filterOrder {
		all = all.Add(v)
	}
	// Installed/~Installed coexisting is only invalid per Validate, not
	// per the text codec itself — round trip must still hold.
	text := FilterToText(all)
	parsed := TextToFilter(text)
	assert.Equal(t, all, parsed)
}
