package interceptors

import "sort"

// Match returns the handlers of a name-keyed slot that apply to method.
//
// ByName yields the exact entry, PatternList every matching entry in declared
// order and PatternByKey every matching entry in ascending key order. Every
// other shape yields nothing.
func Match(slot Slot, method string) []Handler {
	switch s := slot.(type) {
	case ByName:
		if h, ok := s[method]; ok && h != nil {
			return []Handler{h}
		}
		return nil

	case PatternList:
		var matched []Handler
		for _, entry := range s {
			if entry.matches(method) {
				matched = append(matched, entry.Handler)
			}
		}
		return matched

	case PatternByKey:
		keys := make([]string, 0, len(s))
		for key := range s {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		var matched []Handler
		for _, key := range keys {
			if entry := s[key]; entry.matches(method) {
				matched = append(matched, entry.Handler)
			}
		}
		return matched

	default:
		return nil
	}
}

func (e PatternEntry) matches(method string) bool {
	return e.Pattern != nil && e.Handler != nil && e.Pattern.MatchString(method)
}

// Resolve produces the ordered handlers a slot contributes to an invocation of
// method. Chains are flattened in place, so the result never contains a Chain.
func Resolve(slot Slot, method string) []Handler {
	switch s := slot.(type) {
	case nil, Empty:
		return nil
	case Single:
		return flatten(nil, s.Handler)
	case Chain:
		return flatten(nil, s)
	case ByName, PatternList, PatternByKey:
		var resolved []Handler
		for _, h := range Match(s, method) {
			resolved = flatten(resolved, h)
		}
		return resolved
	default:
		return nil
	}
}

func flatten(dst []Handler, h Handler) []Handler {
	switch h := h.(type) {
	case nil:
		return dst
	case Chain:
		for _, inner := range h {
			dst = flatten(dst, inner)
		}
		return dst
	default:
		return append(dst, h)
	}
}
