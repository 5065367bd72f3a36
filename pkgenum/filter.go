package pkgenum

// Filter is one member of the query filter bitfield (spec §3/§4.G).
// Installed and NotInstalled are mutually exclusive in any
// well-formed filter; FilterSet.Validate enforces that.
type Filter string

const (
	FilterInstalled      Filter = "installed"
	FilterNotInstalled   Filter = "~installed"
	FilterDevel          Filter = "devel"
	FilterNotDevel       Filter = "~devel"
	FilterGUI            Filter = "gui"
	FilterNotGUI         Filter = "~gui"
	FilterSupported      Filter = "supported"
	FilterNotSupported   Filter = "~supported"
	FilterVisible        Filter = "visible"
	FilterNotVisible     Filter = "~visible"
	FilterBasename       Filter = "basename"
	FilterNotBasename    Filter = "~basename"
	FilterNewest         Filter = "newest"
	FilterNotNewest      Filter = "~newest"
	FilterArch           Filter = "arch"
	FilterNotArch        Filter = "~arch"
	FilterSource         Filter = "source"
	FilterNotSource      Filter = "~source"
	FilterApplication    Filter = "application"
	FilterNotApplication Filter = "~application"
	FilterDownloaded     Filter = "downloaded"
	FilterFree           Filter = "free"
	FilterNotFree        Filter = "~free"
)

// filterOrder fixes bit position == declaration order, which is also
// the canonical text emission order (scenario 2 in spec §8 depends on
// this: "~devel;gui;newest" round-trips exactly).
var filterOrder = []Filter{
	FilterInstalled, FilterNotInstalled,
	FilterDevel, FilterNotDevel,
	FilterGUI, FilterNotGUI,
	FilterSupported, FilterNotSupported,
	FilterVisible, FilterNotVisible,
	FilterBasename, FilterNotBasename,
	FilterNewest, FilterNotNewest,
	FilterArch, FilterNotArch,
	FilterSource, FilterNotSource,
	FilterApplication, FilterNotApplication,
	FilterDownloaded,
	FilterFree, FilterNotFree,
}

var filterCodec = newCodec(filterOrder)

func (f Filter) Bit() uint { return filterCodec.bit(f) }

// FilterSet is a Bitfield specialized for Filter values.
type FilterSet Bitfield

// FilterToText renders a FilterSet in canonical order, or "none" when
// empty (meaning: no filter, pass everything).
func FilterToText(f FilterSet) string {
	return bitfieldToText(filterOrder, Bitfield(f))
}

// TextToFilter parses a ";"-separated filter expression.
func TextToFilter(s string) FilterSet {
	return FilterSet(bitfieldFromText(filterCodec.fromText, filterCodec.index, s))
}

func (f FilterSet) Contains(v Filter) bool {
	return Bitfield(f).Contains(v.Bit())
}

func (f FilterSet) Add(v Filter) FilterSet {
	return FilterSet(Bitfield(f).Add(v.Bit()))
}

func (f FilterSet) Remove(v Filter) FilterSet {
	return FilterSet(Bitfield(f).Remove(v.Bit()))
}

func (f FilterSet) IsEmpty() bool {
	return Bitfield(f).IsEmpty()
}

// Validate reports whether the set is well-formed: Installed and
// NotInstalled must not both be present.
func (f FilterSet) Validate() bool {
	return !(f.Contains(FilterInstalled) && f.Contains(FilterNotInstalled))
}

// RoleSet is a Bitfield specialized for Role values, used by a backend
// to advertise the roles it supports.
type RoleSet Bitfield

func RoleSetToText(r RoleSet) string {
	return bitfieldToText(roleNames.values, Bitfield(r))
}

func TextToRoleSet(s string) RoleSet {
	return RoleSet(bitfieldFromText(roleNames.fromText, roleNames.index, s))
}

func (r RoleSet) Contains(v Role) bool {
	return Bitfield(r).Contains(v.Bit())
}

func (r RoleSet) Add(v Role) RoleSet {
	return RoleSet(Bitfield(r).Add(v.Bit()))
}
