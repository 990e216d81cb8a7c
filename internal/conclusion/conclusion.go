// Package conclusion implements spec §4.J: an index from a field path
// (as referenced by a rule's Set/Custom action) to the set of rule names
// that can set it. The forward engine fills it as rules are compiled.
// The backward engine does not query it: it finds candidate rules by
// scanning the rule base's Set actions itself.
//
// Grounded on _examples/smilemakc-mbflow's internal/node/registry.go
// (RWMutex-guarded map registry) for the lookup-table shape.
package conclusion

import "github.com/smilemakc/retecore/internal/rule"

// Index maps field paths to the rules that can set them.
type Index struct {
	byPath map[string]map[string]struct{} // path -> set of rule names
	byRule map[string][]string            // rule name -> paths it indexed, for RemoveRule
}

// NewIndex builds an empty conclusion index.
func NewIndex() *Index {
	return &Index{
		byPath: make(map[string]map[string]struct{}),
		byRule: make(map[string][]string),
	}
}

// IndexRule scans r's Set and Custom actions and records the field paths
// they can produce. Custom actions are indexed under a synthetic
// "custom:<name>" path since their write set isn't statically known.
func (idx *Index) IndexRule(r *rule.Rule) {
	idx.RemoveRule(r.Name)

	var paths []string
	for _, a := range r.Actions {
		switch a.Kind {
		case rule.ActSet:
			paths = append(paths, a.FieldPath)
		case rule.ActCustom:
			paths = append(paths, "custom:"+a.FunctionName)
		}
	}
	if len(paths) == 0 {
		return
	}

	idx.byRule[r.Name] = paths
	for _, p := range paths {
		set, ok := idx.byPath[p]
		if !ok {
			set = make(map[string]struct{})
			idx.byPath[p] = set
		}
		set[r.Name] = struct{}{}
	}
}

// CandidatesFor returns every rule name that can set path, in no
// particular order.
func (idx *Index) CandidatesFor(path string) []string {
	set, ok := idx.byPath[path]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	return out
}

// RemoveRule drops all index entries contributed by the named rule.
func (idx *Index) RemoveRule(name string) {
	paths, ok := idx.byRule[name]
	if !ok {
		return
	}
	for _, p := range paths {
		if set, ok := idx.byPath[p]; ok {
			delete(set, name)
			if len(set) == 0 {
				delete(idx.byPath, p)
			}
		}
	}
	delete(idx.byRule, name)
}
