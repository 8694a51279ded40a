package interceptors

import "maps"

// Slot is the configured shape of the handlers for one phase and scope.
// The set of shapes is closed: Empty, Single, ByName, PatternList,
// PatternByKey and Chain. A nil Slot behaves like Empty.
type Slot interface {
	isSlot()
}

// Empty is a slot without handlers
type Empty struct{}

// Single applies one handler to every invocation reaching the slot
type Single struct {
	Handler Handler
}

// ByName dispatches on the exact method name. A value may be a Chain.
type ByName map[string]Handler

// PatternEntry pairs a method pattern with a handler
type PatternEntry struct {
	Pattern Pattern
	Handler Handler
}

// When builds a PatternEntry from a regular expression
func When(expr string, h Handler) PatternEntry {
	return PatternEntry{Pattern: Regexp(expr), Handler: h}
}

// PatternList fires every entry whose pattern matches, in declared order
type PatternList []PatternEntry

// PatternByKey fires every entry whose pattern matches, in ascending key order.
// Aspects authored independently can be merged into one map without their
// order depending on how the map was filled.
type PatternByKey map[string]PatternEntry

func (Empty) isSlot()        {}
func (Single) isSlot()       {}
func (ByName) isSlot()       {}
func (PatternList) isSlot()  {}
func (PatternByKey) isSlot() {}
func (Chain) isSlot()        {}

// CloneSlot copies the container of a slot so later changes to the original
// map or slice are not observed. Handlers themselves are shared.
func CloneSlot(s Slot) Slot {
	switch s := s.(type) {
	case ByName:
		return maps.Clone(s)
	case PatternByKey:
		return maps.Clone(s)
	case PatternList:
		return append(PatternList(nil), s...)
	case Chain:
		return append(Chain(nil), s...)
	default:
		return s
	}
}
