package state

// Field indices the per-state ssz.FieldCache is keyed on:
// mutating one of these invalidates exactly its own cached subtree. Callers
// that mutate a composite ancestor (e.g. the whole validator registry) must
// also invalidate FieldValidators themselves; the cache has no automatic
// ancestor propagation (see encoding/ssz.FieldCache's doc comment).
const (
	FieldSlot = iota
	FieldFork
	FieldLatestBlockHeader
	FieldBlockRoots
	FieldStateRoots
	FieldHistoricalRoots
	FieldEth1Data
	FieldEth1DataVotes
	FieldEth1DepositIndex
	FieldValidators
	FieldBalances
	FieldRandaoMixes
	FieldSlashings
	FieldPreviousEpochParticipation
	FieldCurrentEpochParticipation
	FieldInactivityScores
	FieldCurrentSyncCommittee
	FieldNextSyncCommittee
	FieldLatestExecutionPayloadHeader
	FieldJustificationCheckpoints
)
