package pkgenum

import "strings"

// Bitfield is a set of enum values, one bit per ordinal position in
// that enum's declared constant list (spec §3/§4.A).
type Bitfield uint64

// Contains reports whether bit is set.
func (b Bitfield) Contains(bit uint) bool {
	return b&(1<<bit) != 0
}

// Add returns b with bit set.
func (b Bitfield) Add(bit uint) Bitfield {
	return b | (1 << bit)
}

// Remove returns b with bit cleared.
func (b Bitfield) Remove(bit uint) Bitfield {
	return b &^ (1 << bit)
}

// IsEmpty reports whether the bitfield has the "none" semantic: no
// filter, pass everything.
func (b Bitfield) IsEmpty() bool {
	return b == 0
}

// BitEnum is a closed enum type that additionally knows its own bit
// position within a Bitfield, for use by generic Bitfield helpers.
type BitEnum interface {
	~string
	Bit() uint
}

// ContainsPriority returns the first of values present in b, scanning
// the caller-supplied priority order left to right — not bitfield bit
// order. If none of values are present, unknown is returned. This
// mirrors pk_bitfield_contain_priority, adapted from C varargs
// (sentinel-terminated) to a Go variadic slice.
func ContainsPriority[T BitEnum](b Bitfield, unknown T, values ...T) T {
	for _, v := range values {
		if b.Contains(v.Bit()) {
			return v
		}
	}
	return unknown
}

// BitfieldFrom ORs the bit positions of values into a fresh Bitfield.
func BitfieldFrom[T BitEnum](values ...T) Bitfield {
	var b Bitfield
	for _, v := range values {
		b = b.Add(v.Bit())
	}
	return b
}

// bitfieldToText renders b as a ";"-joined list of names in ascending
// bit order, or the literal "none" for the empty set, using the given
// ordered value list (declaration order == bit order).
func bitfieldToText[T ~string](values []T, b Bitfield) string {
	if b.IsEmpty() {
		return "none"
	}
	var names []string
	for i, v := range values {
		if b.Contains(uint(i)) {
			names = append(names, string(v))
		}
	}
	return strings.Join(names, ";")
}

// bitfieldFromText parses a ";"-separated name list into a Bitfield.
// "none" (or an empty string) is the empty set. Unknown tokens are
// silently ignored — permissive parsing per spec §4.A; the caller may
// choose to treat a resulting gap as an error.
func bitfieldFromText[T ~string](fromText map[string]T, index map[T]uint, s string) Bitfield {
	s = strings.TrimSpace(s)
	if s == "" || s == "none" {
		return 0
	}
	var b Bitfield
	for _, tok := range strings.Split(s, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if v, ok := fromText[tok]; ok {
			b = b.Add(index[v])
		}
	}
	return b
}
