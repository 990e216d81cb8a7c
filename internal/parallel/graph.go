package parallel

import "github.com/smilemakc/retecore/internal/rule"

// Batch is a set of rules that can fire concurrently because none of
// their read/write sets conflict (spec §4.K, §5 "disjoint write sets by
// construction").
type Batch []*rule.Rule

// ConflictGraph partitions rules into batches via dependency analysis
// (spec §4.K): an edge between two rules means one's write set
// intersects the other's read or write set. Batches are built by greedy
// graph coloring rather than literal connected components — a
// connected component can still contain a conflicting pair reachable
// only through an intermediate rule, which would violate §5's "no locks
// needed during a batch" invariant if fired concurrently. Coloring
// guarantees every pair within one Batch is conflict-free; the ordering
// a connected component would otherwise need is enforced by the barrier
// between Batches instead.
//
// When analysisOn is false, every rule is forced into one Batch (spec
// §4.K degenerate safe mode): the caller is expected to run it without
// parallelism in that case.
func ConflictGraph(rules []*rule.Rule, analysisOn bool) []Batch {
	if len(rules) == 0 {
		return nil
	}
	if !analysisOn {
		return []Batch{append(Batch(nil), rules...)}
	}

	an := Analyzer{}
	reads := make([]map[string]struct{}, len(rules))
	writes := make([]map[string]struct{}, len(rules))
	for i, r := range rules {
		reads[i] = an.ReadSet(r)
		writes[i] = an.WriteSet(r)
	}

	conflicts := func(i, j int) bool {
		return intersects(writes[i], writes[j]) ||
			intersects(writes[i], reads[j]) ||
			intersects(writes[j], reads[i])
	}

	var batchIdx [][]int // batches as index lists
	for i := range rules {
		placed := -1
		for b, members := range batchIdx {
			conflictsWithBatch := false
			for _, mi := range members {
				if conflicts(i, mi) {
					conflictsWithBatch = true
					break
				}
			}
			if !conflictsWithBatch {
				placed = b
				break
			}
		}
		if placed == -1 {
			batchIdx = append(batchIdx, []int{i})
		} else {
			batchIdx[placed] = append(batchIdx[placed], i)
		}
	}

	batches := make([]Batch, len(batchIdx))
	for b, members := range batchIdx {
		batch := make(Batch, 0, len(members))
		for _, i := range members {
			batch = append(batch, rules[i])
		}
		batches[b] = batch
	}
	return batches
}
