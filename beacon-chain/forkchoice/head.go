package forkchoice

import (
	"github.com/sigcore-labs/beacon-core/config/params"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

// Head computes the LMD-GHOST head: starting from the justified root, walk
// down child edges picking the child with maximal cumulative attester
// balance, with the proposer boost added to the boosted block for its slot
// only. balances is indexed by ValidatorIndex and is typically the
// justified state's effective balances.
func (s *Store) Head(justifiedRoot [32]byte, balances []ssztypes.Gwei) ([32]byte, error) {
	justified, ok := s.nodeByRoot[justifiedRoot]
	if !ok {
		return [32]byte{}, errUnknownJustifiedRoot
	}
	s.computeWeights(balances)

	n := justified
	for len(n.children) > 0 {
		best := n.children[0]
		for _, c := range n.children[1:] {
			if c.weight > best.weight ||
				(c.weight == best.weight && lexicographicallyGreater(c.root, best.root)) {
				best = c
			}
		}
		n.bestDescendant = best
		n = best
	}
	return n.root, nil
}

// computeWeights rebuilds every node's cumulative weight from the latest
// votes: each validator's balance lands on its vote target and is summed up
// the parent chain. The boost balance lands on the proposer boost root.
func (s *Store) computeWeights(balances []ssztypes.Gwei) {
	for _, n := range s.nodeByRoot {
		n.weight = 0
	}
	for i, v := range s.votes {
		if uint64(i) >= uint64(len(balances)) {
			continue
		}
		target, ok := s.nodeByRoot[v.Root]
		if !ok {
			continue
		}
		target.weight += uint64(balances[i])
	}
	if s.proposerBoostRoot != [32]byte{} {
		if boosted, ok := s.nodeByRoot[s.proposerBoostRoot]; ok {
			boosted.weight += s.boostAmount(balances)
		}
	}
	// Propagate leaf weights up the parent chain. Iterating nodeByRoot and
	// climbing per node would double count; instead accumulate bottom-up by
	// visiting in decreasing slot order via the child lists.
	s.accumulate(s.treeRoot)
}

// accumulate folds children's cumulative weights into n, depth first, and
// returns n's total.
func (s *Store) accumulate(n *Node) uint64 {
	total := n.weight
	for _, c := range n.children {
		total += s.accumulate(c)
	}
	n.weight = total
	return total
}

func (s *Store) boostAmount(balances []ssztypes.Gwei) uint64 {
	var committeeWeight uint64
	for _, b := range balances {
		committeeWeight += uint64(b)
	}
	committeeWeight /= uint64(params.BeaconConfig().SlotsPerEpoch)
	return committeeWeight * params.BeaconConfig().ProposerScoreBoost / 100
}

func lexicographicallyGreater(a, b [32]byte) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
