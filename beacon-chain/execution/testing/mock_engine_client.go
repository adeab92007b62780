// Package testing provides a mock engine client for the block processor
// and consensus manager tests.
package testing

import (
	"context"

	"github.com/sigcore-labs/beacon-core/beacon-chain/execution"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
)

// EngineClient --
type EngineClient struct {
	NewPayloadStatus      *execution.PayloadStatus
	ErrNewPayload         error
	ForkchoiceStatus      *execution.PayloadStatus
	PayloadIDBytes        *execution.PayloadIDBytes
	ErrForkchoiceUpdated  error
	ExecutionPayload      *consensusblocks.ExecutionPayload
	ErrGetPayload         error

	// Recorded calls, inspected by tests asserting properties like "exactly
	// one forkchoiceUpdated per optimistic block".
	NewPayloadCalls        []*consensusblocks.ExecutionPayload
	ForkchoiceUpdatedCalls []*execution.ForkchoiceState
}

var _ execution.EngineCaller = (*EngineClient)(nil)

// NewPayload --
func (e *EngineClient) NewPayload(_ context.Context, payload *consensusblocks.ExecutionPayload) (*execution.PayloadStatus, error) {
	e.NewPayloadCalls = append(e.NewPayloadCalls, payload)
	if e.ErrNewPayload != nil {
		return nil, e.ErrNewPayload
	}
	if e.NewPayloadStatus == nil {
		return &execution.PayloadStatus{Status: execution.StatusValid}, nil
	}
	return e.NewPayloadStatus, nil
}

// ForkchoiceUpdated --
func (e *EngineClient) ForkchoiceUpdated(_ context.Context, fcs *execution.ForkchoiceState, _ *execution.PayloadAttributes) (*execution.PayloadIDBytes, *execution.PayloadStatus, error) {
	e.ForkchoiceUpdatedCalls = append(e.ForkchoiceUpdatedCalls, fcs)
	if e.ErrForkchoiceUpdated != nil {
		return nil, nil, e.ErrForkchoiceUpdated
	}
	status := e.ForkchoiceStatus
	if status == nil {
		status = &execution.PayloadStatus{Status: execution.StatusValid}
	}
	return e.PayloadIDBytes, status, nil
}

// GetPayload --
func (e *EngineClient) GetPayload(_ context.Context, _ execution.PayloadIDBytes) (*consensusblocks.ExecutionPayload, error) {
	return e.ExecutionPayload, e.ErrGetPayload
}
