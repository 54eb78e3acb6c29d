// Package record implements the nested-record data model of the mirror
// layer: a Path/Value flat-map bijection with a nested tree, and a
// structural type-matching check used to validate mutations against a
// fixed reference template.
//
// A Record tree's internal nodes are either map[string]any (keyed
// submaps) or []any (ordered sequences); leaves are primitives (bool,
// int64, float64, string). Sequence indices are encoded as stringified
// path components, mirroring the original host software's tuple-based
// path encoding (see original_source util_flat_dict.py).
package record

import "fmt"

// Path is an ordered tuple of keys (for map nodes) or stringified
// indices (for sequence nodes) from the root of a Record to one leaf.
type Path []string

// String renders Path as a dotted topic suffix, e.g. "comms.enable".
func (p Path) String() string {
	s := ""
	for i, k := range p {
		if i > 0 {
			s += "."
		}
		s += k
	}
	return s
}

// Append returns a new Path with key appended, never mutating p.
func (p Path) Append(key string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = key
	return out
}

// Equal reports whether two paths have identical components in order.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// FlatMap is a Path → Value bijection over a nested Record with no nil
// leaves, satisfying UnflattenTemplated(Flatten(x), x) == x for any
// record whose leaves are all non-nil; plain Unflatten reproduces x only
// when x holds no []any sequences.
type FlatMap map[string]any

// pathKey renders a Path to the map key FlatMap uses internally. Using
// the dotted string form (rather than a slice, which isn't a valid map
// key) keeps FlatMap a plain comparable map while preserving full
// round-trip fidelity, since no path component may itself contain '.'.
func pathKey(p Path) string { return p.String() }

// Flatten walks nested depth-first, turning every dict key into a path
// component and every sequence index into a stringified path
// component, producing one FlatMap entry per leaf.
func Flatten(nested map[string]any) FlatMap {
	flat := FlatMap{}
	flattenInto(nil, nested, flat)
	return flat
}

func flattenInto(prefix Path, node any, flat FlatMap) {
	switch v := node.(type) {
	case map[string]any:
		for key, child := range v {
			flattenInto(prefix.Append(key), child, flat)
		}
	case []any:
		for i, child := range v {
			flattenInto(prefix.Append(fmt.Sprintf("%d", i)), child, flat)
		}
	default:
		flat[pathKey(prefix)] = node
	}
}

// FlattenPaths is like Flatten but also returns the ordered list of
// Paths actually produced, useful for callers that need Path rather
// than its string-encoded form (e.g. to drive per-path subscriptions).
func FlattenPaths(nested map[string]any) (FlatMap, []Path) {
	flat := FlatMap{}
	var paths []Path
	var walk func(prefix Path, node any)
	walk = func(prefix Path, node any) {
		switch v := node.(type) {
		case map[string]any:
			for key, child := range v {
				walk(prefix.Append(key), child)
			}
		case []any:
			for i, child := range v {
				walk(prefix.Append(fmt.Sprintf("%d", i)), child)
			}
		default:
			p := make(Path, len(prefix))
			copy(p, prefix)
			paths = append(paths, p)
			flat[pathKey(p)] = node
		}
	}
	walk(nil, nested)
	return flat, paths
}

// Unflatten rebuilds a nested map[string]any from a FlatMap, creating
// missing intermediate maps along each path. The result always uses
// map[string]any nodes, even for paths that originated from a sequence
// in the source record — callers that need the original sequence shape
// back (satisfying unflatten(flatten(x)) == x for a record containing
// any []any field) must Unflatten against a reference template via
// UnflattenTemplated instead.
func Unflatten(flat FlatMap) map[string]any {
	root := map[string]any{}
	for key, value := range flat {
		path := splitPath(key)
		setWithPath(root, path, value)
	}
	return root
}

// UnflattenTemplated rebuilds a nested record from a FlatMap the same
// way Unflatten does, except it walks reference alongside the rebuild
// so every node that was a []any sequence in reference comes back as a
// []any of the same length, rather than a map keyed by stringified
// index. This is what makes unflatten(flatten(x)) == x hold for any
// reference-conforming record x (spec.md §8 invariant 4): callers that
// retain the record's own shape as reference (e.g. the mirror layer's
// template) get their sequences back intact.
//
// A path present in reference but missing from flat keeps reference's
// own value there, so a partial flat update can be unflattened against
// a full reference without losing untouched leaves.
func UnflattenTemplated(flat FlatMap, reference map[string]any) map[string]any {
	rebuilt := unflattenTemplatedNode(nil, reference, flat)
	nested, _ := rebuilt.(map[string]any)
	return nested
}

func unflattenTemplatedNode(prefix Path, node any, flat FlatMap) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = unflattenTemplatedNode(prefix.Append(key), child, flat)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = unflattenTemplatedNode(prefix.Append(fmt.Sprintf("%d", i)), child, flat)
		}
		return out
	default:
		if val, ok := flat[pathKey(prefix)]; ok {
			return val
		}
		return node
	}
}

// DeepCopy returns a structurally independent copy of a nested record.
// The mirror layer retains its reference template for the lifetime of
// a Mirror, so it must capture its own copy at construction rather than
// alias the caller's value.
func DeepCopy(nested map[string]any) map[string]any {
	copied := deepCopyNode(nested)
	out, _ := copied.(map[string]any)
	return out
}

func deepCopyNode(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, child := range v {
			out[key] = deepCopyNode(child)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, child := range v {
			out[i] = deepCopyNode(child)
		}
		return out
	default:
		return node
	}
}

func splitPath(key string) Path {
	if key == "" {
		return nil
	}
	var path Path
	start := 0
	for i := 0; i <= len(key); i++ {
		if i == len(key) || key[i] == '.' {
			path = append(path, key[start:i])
			start = i + 1
		}
	}
	return path
}

func setWithPath(nested map[string]any, path Path, value any) {
	d := nested
	for _, key := range path[:len(path)-1] {
		next, ok := d[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			d[key] = next
		}
		d = next
	}
	d[path[len(path)-1]] = value
}

// GetWithPath retrieves the value at path within nested, returning
// (nil, false) if any component along the way is missing.
func GetWithPath(nested map[string]any, path Path) (any, bool) {
	var cur any = nested
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// HasWithPath reports whether path resolves to a value within nested.
func HasWithPath(nested map[string]any, path Path) bool {
	_, ok := GetWithPath(nested, path)
	return ok
}

// DeleteWithPath removes the value at path from nested, if present.
func DeleteWithPath(nested map[string]any, path Path) {
	if len(path) == 0 {
		return
	}
	d := nested
	for _, key := range path[:len(path)-1] {
		next, ok := d[key].(map[string]any)
		if !ok {
			return
		}
		d = next
	}
	delete(d, path[len(path)-1])
}
