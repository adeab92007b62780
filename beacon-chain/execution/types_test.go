package execution

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
)

func TestPayloadIDBytesJSON(t *testing.T) {
	id := PayloadIDBytes{1, 2, 3, 4, 5, 6, 7, 8}
	enc, err := json.Marshal(id)
	require.NoError(t, err)
	assert.Equal(t, `"0x0102030405060708"`, string(enc))

	var dec PayloadIDBytes
	require.NoError(t, json.Unmarshal(enc, &dec))
	assert.Equal(t, id, dec)

	assert.Error(t, json.Unmarshal([]byte(`"0x01"`), &dec))
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		status PayloadStatusState
		want   error
	}{
		{StatusValid, nil},
		{StatusInvalid, ErrInvalidPayloadStatus},
		{StatusInvalidBlockHash, ErrInvalidBlockHashPayloadStatus},
		{StatusInvalidTerminalBlock, ErrInvalidTerminalBlockStatus},
		{StatusSyncing, ErrAcceptedSyncingPayloadStatus},
		{StatusAccepted, ErrAcceptedSyncingPayloadStatus},
	}
	for _, tc := range tests {
		t.Run(string(tc.status), func(t *testing.T) {
			err := StatusError(&PayloadStatus{Status: tc.status})
			if tc.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}
	assert.ErrorIs(t, StatusError(&PayloadStatus{Status: "BOGUS"}), ErrUnknownPayloadStatus)
}

func TestPayloadMarshalRoundTrip(t *testing.T) {
	p := &consensusblocks.ExecutionPayload{
		ParentHash:    [32]byte{0x01},
		FeeRecipient:  [20]byte{0x02},
		StateRoot:     [32]byte{0x03},
		ReceiptsRoot:  [32]byte{0x04},
		PrevRandao:    [32]byte{0x05},
		BlockNumber:   1234,
		GasLimit:      30_000_000,
		GasUsed:       21_000,
		Timestamp:     1_700_000_000,
		ExtraData:     []byte("extra"),
		BlockHash:     [32]byte{0x06},
		Transactions:  [][]byte{{0xaa}, {0xbb, 0xcc}},
	}
	// Base fee 1000 wei, little-endian on the consensus side.
	p.BaseFeePerGas[0] = 0xe8
	p.BaseFeePerGas[1] = 0x03

	j := marshalPayload(p)
	assert.Equal(t, "0x3e8", j.BaseFeePerGas.String())

	back := unmarshalPayload(j)
	assert.Equal(t, p.ParentHash, back.ParentHash)
	assert.Equal(t, p.BaseFeePerGas, back.BaseFeePerGas)
	assert.Equal(t, p.Transactions, back.Transactions)
	assert.Equal(t, p.BlockNumber, back.BlockNumber)
}

// stubRPC fails every call, standing in for an unreachable endpoint that
// was dialed once and then died.
type stubRPC struct{ err error }

func (s *stubRPC) CallContext(_ context.Context, _ interface{}, _ string, _ ...interface{}) error {
	return s.err
}

func TestTransportErrorsDegradeToSyncing(t *testing.T) {
	svc := NewWithClient(Config{Endpoint: "http://localhost:0"}, &stubRPC{err: assert.AnError})

	status, err := svc.NewPayload(context.Background(), &consensusblocks.ExecutionPayload{BlockNumber: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusSyncing, status.Status)

	_, status, err = svc.ForkchoiceUpdated(context.Background(), &ForkchoiceState{}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusSyncing, status.Status)

	// GetPayload is the one call whose transport failures are surfaced.
	_, err = svc.GetPayload(context.Background(), PayloadIDBytes{})
	assert.Error(t, err)
}
