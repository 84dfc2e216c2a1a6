// Package intern provides the writer-session identifier and selector
// tables. Both map values to small sequential integer IDs assigned in
// first-seen order; neither ever evicts.
package intern

import (
	"encoding/binary"
	"sort"
)

// IdentifierTable interns strings to uint32 IDs. The empty string is
// always ID 0 and never enters the table; real identifiers are numbered
// sequentially from 1.
type IdentifierTable struct {
	ids   map[string]uint32
	names []string // names[i] is the string for ID i+1
}

// NewIdentifierTable creates an empty identifier table.
func NewIdentifierTable() *IdentifierTable {
	return &IdentifierTable{ids: make(map[string]uint32)}
}

// Intern returns the ID for name, assigning the next sequential ID on
// first sight. Interning is idempotent within a session.
func (t *IdentifierTable) Intern(name string) uint32 {
	if name == "" {
		return 0
	}
	if id, ok := t.ids[name]; ok {
		return id
	}
	id := uint32(len(t.names) + 1)
	t.ids[name] = id
	t.names = append(t.names, name)
	return id
}

// Len returns the number of interned identifiers, excluding the reserved
// empty identifier.
func (t *IdentifierTable) Len() int {
	return len(t.names)
}

// Name returns the string for a previously assigned ID. ID 0 is the empty
// identifier.
func (t *IdentifierTable) Name(id uint32) string {
	if id == 0 || int(id) > len(t.names) {
		return ""
	}
	return t.names[id-1]
}

// ForEachSorted visits every (name, ID) pair in lexicographic name order,
// for deterministic serialization.
func (t *IdentifierTable) ForEachSorted(fn func(name string, id uint32)) {
	names := make([]string, 0, len(t.ids))
	for name := range t.ids {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(name, t.ids[name])
	}
}

// StoredSelector is an interned multi-piece method selector: an explicit
// piece count plus the identifier IDs of its pieces.
type StoredSelector struct {
	NumPieces uint16
	PieceIDs  []uint32
}

// SelectorTable interns selectors to uint32 IDs, numbered sequentially
// from 0 in first-seen order, in an ID space independent of the
// identifier table.
type SelectorTable struct {
	ids       map[string]uint32
	selectors []StoredSelector
}

// NewSelectorTable creates an empty selector table.
func NewSelectorTable() *SelectorTable {
	return &SelectorTable{ids: make(map[string]uint32)}
}

// Intern returns the ID for the selector with the given piece count and
// piece identifier IDs. A zero piece count is normalized to one, so a
// zero-argument selector shares its encoding with a one-piece name.
func (t *SelectorTable) Intern(numPieces uint16, pieceIDs []uint32) uint32 {
	if numPieces == 0 {
		numPieces = 1
	}
	key := selectorKey(numPieces, pieceIDs)
	if id, ok := t.ids[key]; ok {
		return id
	}
	id := uint32(len(t.selectors))
	t.ids[key] = id
	stored := StoredSelector{NumPieces: numPieces, PieceIDs: append([]uint32(nil), pieceIDs...)}
	t.selectors = append(t.selectors, stored)
	return id
}

// Len returns the number of interned selectors.
func (t *SelectorTable) Len() int {
	return len(t.selectors)
}

// ForEach visits every stored selector with its ID, in ID order.
func (t *SelectorTable) ForEach(fn func(sel StoredSelector, id uint32)) {
	for i, sel := range t.selectors {
		fn(sel, uint32(i))
	}
}

// selectorKey builds the dedup key for a normalized selector.
func selectorKey(numPieces uint16, pieceIDs []uint32) string {
	buf := make([]byte, 2+4*len(pieceIDs))
	binary.LittleEndian.PutUint16(buf, numPieces)
	for i, id := range pieceIDs {
		binary.LittleEndian.PutUint32(buf[2+4*i:], id)
	}
	return string(buf)
}
