package dag

import "github.com/pkg/errors"

var (
	// ErrDuplicate is returned when a block root is already present in the
	// DAG. Callers treat it as idempotent success.
	ErrDuplicate = errors.New("block already in dag")
	// ErrMissingParent is returned when a block's parent root is unknown;
	// the block belongs in the quarantine.
	ErrMissingParent = errors.New("parent block not in dag")
	// ErrUnviableFork is returned when a block descends from a branch that
	// can never become canonical (e.g. conflicts with finality).
	ErrUnviableFork = errors.New("block descends from unviable fork")
)

// invalidBlock marks a block that fails state transition or signature
// rules: terminal for that block, ancestors and descendants unaffected.
type invalidBlock struct {
	error
	root [32]byte
}

// NewInvalidBlock wraps err as an invalid-block error carrying root.
func NewInvalidBlock(err error, root [32]byte) error {
	return invalidBlock{error: err, root: root}
}

type invalidBlockError interface {
	Error() string
	BlockRoot() [32]byte
}

// BlockRoot returns the invalid block's root.
func (e invalidBlock) BlockRoot() [32]byte {
	return e.root
}

// IsInvalidBlock reports whether e (or anything it wraps) marks an
// invalid block.
func IsInvalidBlock(e error) bool {
	if e == nil {
		return false
	}
	if _, ok := e.(invalidBlockError); ok {
		return true
	}
	return IsInvalidBlock(errors.Unwrap(e))
}

// InvalidBlockRoot returns the root the invalid-block error carries, or the
// zero root when e is not an invalid-block error.
func InvalidBlockRoot(e error) [32]byte {
	if e == nil {
		return [32]byte{}
	}
	d, ok := e.(invalidBlockError)
	if !ok {
		return [32]byte{}
	}
	return d.BlockRoot()
}
