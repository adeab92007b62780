package blocks

import (
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/config/params"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
	"github.com/sigcore-labs/beacon-core/beacon-chain/core/helpers"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
	"github.com/sigcore-labs/beacon-core/encoding/ssz"
)

// ProcessExecutionPayload validates a Bellatrix+ block's embedded
// execution payload against the state's view of the execution chain
// (parent hash, timestamp, prev-randao) and advances
// state.LatestExecutionPayloadHeader. It does NOT call the execution
// engine: that dispatch happens in the block processor, ahead of the state
// transition. A payload equal to ExecutionPayload{} is treated as
// vacuously valid and skipped entirely.
func ProcessExecutionPayload(st *state.BeaconState, payload *consensusblocks.ExecutionPayload) error {
	if payload.IsEmpty() {
		return nil
	}
	if st.Version() < state.Bellatrix {
		return errors.New("execution payload present before bellatrix activation")
	}
	if st.LatestExecutionPayloadHeader != nil && st.LatestExecutionPayloadHeader.BlockHash != [32]byte{} {
		if payload.ParentHash != st.LatestExecutionPayloadHeader.BlockHash {
			return errors.New("execution payload parent hash does not match latest header block hash")
		}
	}
	expectedRandao, err := helpers.RandaoMix(st, helpers.CurrentEpoch(st))
	if err != nil {
		return errors.Wrap(err, "could not compute expected randao mix")
	}
	if payload.PrevRandao != expectedRandao {
		return errors.New("execution payload prev randao does not match expected mix")
	}
	expectedTimestamp := computeTimestampAtSlot(st)
	if payload.Timestamp != expectedTimestamp {
		return errors.New("execution payload timestamp does not match expected slot time")
	}

	txRoot, err := transactionsRoot(payload.Transactions)
	if err != nil {
		return errors.Wrap(err, "could not compute transactions root")
	}
	st.LatestExecutionPayloadHeader = &state.ExecutionPayloadHeader{
		ParentHash:       payload.ParentHash,
		FeeRecipient:     payload.FeeRecipient,
		StateRoot:        payload.StateRoot,
		ReceiptsRoot:     payload.ReceiptsRoot,
		LogsBloom:        payload.LogsBloom,
		PrevRandao:       payload.PrevRandao,
		BlockNumber:      payload.BlockNumber,
		GasLimit:         payload.GasLimit,
		GasUsed:          payload.GasUsed,
		Timestamp:        payload.Timestamp,
		ExtraData:        append([]byte{}, payload.ExtraData...),
		BaseFeePerGas:    payload.BaseFeePerGas,
		BlockHash:        payload.BlockHash,
		TransactionsRoot: txRoot,
	}
	st.Cache().Invalidate(state.FieldLatestExecutionPayloadHeader)
	return nil
}

func computeTimestampAtSlot(st *state.BeaconState) uint64 {
	cfg := params.BeaconConfig()
	slotsSinceGenesis := uint64(st.Slot) * cfg.SecondsPerSlot
	return st.GenesisTime + slotsSinceGenesis
}

func transactionsRoot(txs [][]byte) ([32]byte, error) {
	limit := uint64(1048576)
	if uint64(len(txs)) > limit {
		return [32]byte{}, errors.New("too many transactions")
	}
	chunks := make([][32]byte, len(txs))
	for i, tx := range txs {
		chunks[i] = bytesutil.ToBytes32(tx)
	}
	return ssz.MerkleizeListSSZ(chunks, limit)
}
