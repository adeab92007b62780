package execution

import "github.com/pkg/errors"

var (
	// ErrAcceptedSyncingPayloadStatus is returned when the execution engine
	// answers ACCEPTED or SYNCING: the payload could not be fully validated
	// yet and the block must be treated optimistically.
	ErrAcceptedSyncingPayloadStatus = errors.New("payload status is SYNCING or ACCEPTED")
	// ErrInvalidPayloadStatus is returned when the engine answers INVALID.
	ErrInvalidPayloadStatus = errors.New("payload status is INVALID")
	// ErrInvalidBlockHashPayloadStatus is returned when the engine answers
	// INVALID_BLOCK_HASH.
	ErrInvalidBlockHashPayloadStatus = errors.New("payload status is INVALID_BLOCK_HASH")
	// ErrInvalidTerminalBlockStatus is returned when the engine answers
	// INVALID_TERMINAL_BLOCK.
	ErrInvalidTerminalBlockStatus = errors.New("payload status is INVALID_TERMINAL_BLOCK")
	// ErrUnknownPayloadStatus is returned for a status string outside the
	// engine API's defined set.
	ErrUnknownPayloadStatus = errors.New("unknown payload status")
	// ErrConfigMismatch is returned when the engine's chain configuration
	// does not match ours.
	ErrConfigMismatch = errors.New("execution client configuration mismatch")
	// ErrNotReachable is returned when the endpoint cannot be dialed.
	ErrNotReachable = errors.New("execution client is not reachable")
)
