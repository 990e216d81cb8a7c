package value

import "strings"

// Path is a dotted field path such as "User.Address.City".
type Path string

// Segments splits a dotted path into its components.
func (p Path) Segments() []string {
	if p == "" {
		return nil
	}
	return strings.Split(string(p), ".")
}

// Get reads a (possibly nested) field from a root Map value. A missing
// intermediate segment yields absence (ok=false), never an error, per
// spec §4.A.
func Get(root Value, path Path) (Value, bool) {
	segs := path.Segments()
	cur := root
	for _, seg := range segs {
		if cur.kind != KindMap {
			return Value{}, false
		}
		next, ok := cur.m[seg]
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	if len(segs) == 0 {
		return Value{}, false
	}
	return cur, true
}

// Set writes a (possibly nested) field into a root Map value, creating
// missing intermediate maps as needed, and returns the updated root.
// Per spec §4.A/§3: dotted writes create intermediate mappings.
func Set(root Value, path Path, v Value) Value {
	segs := path.Segments()
	if len(segs) == 0 {
		return root
	}
	if root.kind != KindMap || root.m == nil {
		root = Map(map[string]Value{})
	} else {
		// copy-on-write at this level so callers holding the old root are unaffected
		cp := make(map[string]Value, len(root.m))
		for k, val := range root.m {
			cp[k] = val
		}
		root.m = cp
	}
	if len(segs) == 1 {
		root.m[segs[0]] = v
		return root
	}
	child, ok := root.m[segs[0]]
	if !ok || child.kind != KindMap {
		child = Map(map[string]Value{})
	}
	root.m[segs[0]] = Set(child, Path(strings.Join(segs[1:], ".")), v)
	return root
}
