package blockchain

import "github.com/pkg/errors"

var (
	// ErrInvalidPayload is returned when the execution engine judged the
	// block's payload INVALID.
	ErrInvalidPayload = errors.New("received an INVALID payload from execution engine")
	// ErrInvalidBlockHashPayloadStatus is returned when the engine judged
	// the payload's block hash inconsistent.
	ErrInvalidBlockHashPayloadStatus = errors.New("received an INVALID_BLOCK_HASH payload from execution engine")
	// ErrUndefinedExecutionEngineError is returned when the engine answered
	// outside its defined status set.
	ErrUndefinedExecutionEngineError = errors.New("received an undefined execution engine error")
	// errShuttingDown is returned on enqueue after shutdown began.
	errShuttingDown = errors.New("block processor is shutting down")
)

// Result is the verdict delivered through a block's result future. Every
// non-nil future resolves with exactly one of these.
type Result int

const (
	// ResultOk means the block was accepted: stored in the DAG, or, for an
	// optimistic-sync block, handed to the engine's fork choice without
	// being stored.
	ResultOk Result = iota
	// ResultInvalid means the block violates consensus rules; terminal.
	ResultInvalid
	// ResultMissingParent means the parent is unknown; the block was
	// quarantined or should be re-fetched with its ancestry.
	ResultMissingParent
	// ResultUnviableFork means the block descends from a branch that can
	// never be canonical.
	ResultUnviableFork
	// ResultDuplicate means the root was already in the DAG; idempotent
	// success.
	ResultDuplicate
	// ResultCancelled means the processor shut down before the block was
	// processed.
	ResultCancelled
)

func (r Result) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultInvalid:
		return "invalid"
	case ResultMissingParent:
		return "missing parent"
	case ResultUnviableFork:
		return "unviable fork"
	case ResultDuplicate:
		return "duplicate"
	case ResultCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// ResultFuture carries a block's single completion verdict back to the
// producer. Capacity one; the processor is the only sender.
type ResultFuture chan Result

// NewResultFuture returns a future ready to receive one Result.
func NewResultFuture() ResultFuture {
	return make(ResultFuture, 1)
}

func resolve(f ResultFuture, r Result) {
	if f == nil {
		return
	}
	select {
	case f <- r:
	default:
		// Already resolved; resolving twice would be a programmer error and
		// the first verdict wins.
		log.WithField("result", r).Error("Attempted to resolve block result future twice")
	}
}
