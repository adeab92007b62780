// Package transition implements the top-level state_transition contract:
// process_slots, process_block, verify_state_root, wired together with the
// fork-upgrade boundary crossing and the skip-slot cache.
package transition

// Flags gates which of the state transition's normally-mandatory checks
// are elided for a given call.
type Flags struct {
	// SkipBLS elides every BLS signature verification in the block: the
	// proposer signature, RANDAO reveal, attestations, sync aggregate,
	// voluntary exits. Used for blocks already verified by a batch
	// verifier ahead of the state transition.
	SkipBLS bool
	// SkipStateRoot elides the verify_state_root check at the end of
	// process_block, used when the caller will verify the root itself
	// (or the block is locally produced and trusted).
	SkipStateRoot bool
	// SkipLastStateRootCalc skips recomputing and backfilling the
	// pre-state root into LatestBlockHeader during the final
	// process_slot call before a block is applied, used when the caller
	// already knows that root (replay from a cached value).
	SkipLastStateRootCalc bool
	// SlotAlreadyProcessed indicates process_slots for the block's own
	// slot has already run (e.g. during a prior failed attempt), so the
	// caller only wants process_block run again.
	SlotAlreadyProcessed bool
}
