package forkchoice

import "github.com/pkg/errors"

var (
	errNilNode                  = errors.New("invalid nil or unknown node")
	errUnknownJustifiedRoot     = errors.New("unknown justified root")
	errUnknownFinalizedRoot     = errors.New("unknown finalized root")
	errInvalidProposerBoostRoot = errors.New("invalid proposer boost root")
	errInvalidBalance           = errors.New("invalid node balance")

	// ErrDuplicateNode is returned when inserting a root already present in
	// the store; callers treat it as idempotent success.
	ErrDuplicateNode = errors.New("duplicate node in fork choice store")
	// ErrMissingParent is returned when inserting a node whose parent root
	// is not in the store.
	ErrMissingParent = errors.New("unknown parent in fork choice store")
)
