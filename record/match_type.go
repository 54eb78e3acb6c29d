package record

import "reflect"

// MatchType reports whether value has the same structural shape as
// example at every level: same primitive type at every leaf, same
// sequence length and pairwise element types, and same key set at
// every map node. This is the mirror layer's sole gate on accepting a
// mutation against its immutable reference template.
func MatchType(value, example any) bool {
	if reflect.TypeOf(value) != reflect.TypeOf(example) {
		return false
	}

	switch ex := example.(type) {
	case map[string]any:
		val, ok := value.(map[string]any)
		if !ok || len(val) != len(ex) {
			return false
		}
		for key, exChild := range ex {
			valChild, ok := val[key]
			if !ok {
				return false
			}
			if !MatchType(valChild, exChild) {
				return false
			}
		}
		return true

	case []any:
		val, ok := value.([]any)
		if !ok || len(val) != len(ex) {
			return false
		}
		for i := range ex {
			if !MatchType(val[i], ex[i]) {
				return false
			}
		}
		return true

	default:
		// Primitive leaf: the reflect.TypeOf equality check above is
		// the whole story once we know neither side is a container.
		return true
	}
}
