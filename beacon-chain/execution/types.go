package execution

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/encoding/bytesutil"
)

// PayloadStatusState enumerates the engine API's newPayload /
// forkchoiceUpdated status strings.
type PayloadStatusState string

const (
	// StatusValid means the payload executed and is fully valid.
	StatusValid PayloadStatusState = "VALID"
	// StatusInvalid means the payload failed execution validation.
	StatusInvalid PayloadStatusState = "INVALID"
	// StatusInvalidBlockHash means the payload's declared block hash did
	// not match its contents.
	StatusInvalidBlockHash PayloadStatusState = "INVALID_BLOCK_HASH"
	// StatusInvalidTerminalBlock means the payload builds on a pre-merge
	// block that does not satisfy the terminal block conditions.
	StatusInvalidTerminalBlock PayloadStatusState = "INVALID_TERMINAL_BLOCK"
	// StatusSyncing means the engine lacks the data to validate the payload.
	StatusSyncing PayloadStatusState = "SYNCING"
	// StatusAccepted means the payload was well formed but built on an
	// unvalidated ancestor.
	StatusAccepted PayloadStatusState = "ACCEPTED"
)

// PayloadStatus is the engine's verdict on a submitted payload.
type PayloadStatus struct {
	Status          PayloadStatusState `json:"status"`
	LatestValidHash *common.Hash       `json:"latestValidHash"`
	ValidationError *string            `json:"validationError"`
}

// ForkchoiceState names the engine-side head/safe/finalized block hashes
// for engine_forkchoiceUpdatedV1.
type ForkchoiceState struct {
	HeadBlockHash      common.Hash `json:"headBlockHash"`
	SafeBlockHash      common.Hash `json:"safeBlockHash"`
	FinalizedBlockHash common.Hash `json:"finalizedBlockHash"`
}

// PayloadAttributes seeds a payload build job in the context of a
// forkchoiceUpdated call.
type PayloadAttributes struct {
	Timestamp             hexutil.Uint64 `json:"timestamp"`
	PrevRandao            hexutil.Bytes  `json:"prevRandao"`
	SuggestedFeeRecipient common.Address `json:"suggestedFeeRecipient"`
}

// PayloadIDBytes is the 8-byte handle a forkchoiceUpdated call returns for
// a started payload build.
type PayloadIDBytes [8]byte

// MarshalJSON renders the id as a 0x-prefixed hex string.
func (b PayloadIDBytes) MarshalJSON() ([]byte, error) {
	return []byte(`"` + hexutil.Encode(b[:]) + `"`), nil
}

// UnmarshalJSON parses a 0x-prefixed 8-byte hex string.
func (b *PayloadIDBytes) UnmarshalJSON(enc []byte) error {
	if len(enc) < 2 || enc[0] != '"' || enc[len(enc)-1] != '"' {
		return errors.New("payload id is not a JSON string")
	}
	decoded, err := hexutil.Decode(string(enc[1 : len(enc)-1]))
	if err != nil {
		return err
	}
	if len(decoded) != 8 {
		return errors.Errorf("payload id must be 8 bytes, got %d", len(decoded))
	}
	copy(b[:], decoded)
	return nil
}

// forkchoiceUpdatedResponse is the wire shape of engine_forkchoiceUpdatedV1.
type forkchoiceUpdatedResponse struct {
	Status    PayloadStatus   `json:"payloadStatus"`
	PayloadID *PayloadIDBytes `json:"payloadId"`
}

// executionPayloadJSON is the engine API wire form of an execution payload,
// hexutil-encoded the way geth's marshaling conventions expect.
type executionPayloadJSON struct {
	ParentHash    common.Hash     `json:"parentHash"`
	FeeRecipient  common.Address  `json:"feeRecipient"`
	StateRoot     common.Hash     `json:"stateRoot"`
	ReceiptsRoot  common.Hash     `json:"receiptsRoot"`
	LogsBloom     hexutil.Bytes   `json:"logsBloom"`
	PrevRandao    common.Hash     `json:"prevRandao"`
	BlockNumber   hexutil.Uint64  `json:"blockNumber"`
	GasLimit      hexutil.Uint64  `json:"gasLimit"`
	GasUsed       hexutil.Uint64  `json:"gasUsed"`
	Timestamp     hexutil.Uint64  `json:"timestamp"`
	ExtraData     hexutil.Bytes   `json:"extraData"`
	BaseFeePerGas *hexutil.Big    `json:"baseFeePerGas"`
	BlockHash     common.Hash     `json:"blockHash"`
	Transactions  []hexutil.Bytes `json:"transactions"`
}

// marshalPayload converts a consensus-side ExecutionPayload into its engine
// API JSON form. BaseFeePerGas is little-endian on the consensus side and a
// big-endian big integer on the wire; uint256 bridges the two.
func marshalPayload(p *consensusblocks.ExecutionPayload) *executionPayloadJSON {
	txs := make([]hexutil.Bytes, len(p.Transactions))
	for i, tx := range p.Transactions {
		txs[i] = tx
	}
	baseFee := new(uint256.Int).SetBytes(reverseBytes32(p.BaseFeePerGas))
	return &executionPayloadJSON{
		ParentHash:    common.Hash(p.ParentHash),
		FeeRecipient:  common.Address(p.FeeRecipient),
		StateRoot:     common.Hash(p.StateRoot),
		ReceiptsRoot:  common.Hash(p.ReceiptsRoot),
		LogsBloom:     p.LogsBloom[:],
		PrevRandao:    common.Hash(p.PrevRandao),
		BlockNumber:   hexutil.Uint64(p.BlockNumber),
		GasLimit:      hexutil.Uint64(p.GasLimit),
		GasUsed:       hexutil.Uint64(p.GasUsed),
		Timestamp:     hexutil.Uint64(p.Timestamp),
		ExtraData:     p.ExtraData,
		BaseFeePerGas: (*hexutil.Big)(baseFee.ToBig()),
		BlockHash:     common.Hash(p.BlockHash),
		Transactions:  txs,
	}
}

// unmarshalPayload converts an engine API payload back into the consensus
// representation, used by GetPayload.
func unmarshalPayload(j *executionPayloadJSON) *consensusblocks.ExecutionPayload {
	txs := make([][]byte, len(j.Transactions))
	for i, tx := range j.Transactions {
		txs[i] = tx
	}
	var baseFee [32]byte
	if j.BaseFeePerGas != nil {
		fee, overflow := uint256.FromBig(j.BaseFeePerGas.ToInt())
		if !overflow {
			copy(baseFee[:], reverseBytes32(fee.Bytes32()))
		}
	}
	var bloom [256]byte
	copy(bloom[:], j.LogsBloom)
	return &consensusblocks.ExecutionPayload{
		ParentHash:    [32]byte(j.ParentHash),
		FeeRecipient:  [20]byte(j.FeeRecipient),
		StateRoot:     [32]byte(j.StateRoot),
		ReceiptsRoot:  [32]byte(j.ReceiptsRoot),
		LogsBloom:     bloom,
		PrevRandao:    [32]byte(j.PrevRandao),
		BlockNumber:   uint64(j.BlockNumber),
		GasLimit:      uint64(j.GasLimit),
		GasUsed:       uint64(j.GasUsed),
		Timestamp:     uint64(j.Timestamp),
		ExtraData:     bytesutil.PadTo(j.ExtraData, len(j.ExtraData)),
		BaseFeePerGas: baseFee,
		BlockHash:     [32]byte(j.BlockHash),
		Transactions:  txs,
	}
}

func reverseBytes32(b [32]byte) []byte {
	out := make([]byte, 32)
	for i := range b {
		out[31-i] = b[i]
	}
	return out
}
