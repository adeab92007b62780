// Package kv is the in-memory reference implementation of iface.Database.
// Values are stored SSZ-serialized and Snappy-compressed, so swapping in a
// disk backend changes where bytes go, not what they are.
package kv

import (
	"sync"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"github.com/sigcore-labs/beacon-core/beacon-chain/db/iface"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	"github.com/sigcore-labs/beacon-core/consensus-types/state"
)

// ErrNotFound is returned when a root has no stored entry.
var ErrNotFound = errors.New("not found in db")

type versioned struct {
	version consensusblocks.Version
	data    []byte // snappy block-compressed SSZ
}

// Store holds blocks and states keyed by root. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	blocks map[[32]byte]versioned
	states map[[32]byte]versioned
}

var _ iface.Database = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		blocks: make(map[[32]byte]versioned),
		states: make(map[[32]byte]versioned),
	}
}

// SaveBlock serializes, compresses and stores blk under root.
func (s *Store) SaveBlock(root [32]byte, blk *consensusblocks.ForkedSignedBeaconBlock) error {
	enc, err := blk.Block().MarshalSSZ()
	if err != nil {
		return errors.Wrap(err, "could not serialize block")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocks[root] = versioned{version: blk.Version(), data: snappy.Encode(nil, enc)}
	return nil
}

// Block loads, decompresses and decodes the block stored under root.
func (s *Store) Block(root [32]byte) (*consensusblocks.ForkedSignedBeaconBlock, error) {
	s.mu.RLock()
	v, ok := s.blocks[root]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	dec, err := snappy.Decode(nil, v.data)
	if err != nil {
		return nil, errors.Wrap(err, "could not decompress block")
	}
	sb, err := consensusblocks.UnmarshalSignedBeaconBlockSSZ(dec, v.version)
	if err != nil {
		return nil, err
	}
	return consensusblocks.NewForkedSignedBeaconBlock(sb)
}

// HasBlock reports whether root has a stored block.
func (s *Store) HasBlock(root [32]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blocks[root]
	return ok
}

// SaveState serializes, compresses and stores st under root.
func (s *Store) SaveState(root [32]byte, st *state.BeaconState) error {
	enc, err := st.MarshalSSZ()
	if err != nil {
		return errors.Wrap(err, "could not serialize state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[root] = versioned{version: st.Version(), data: snappy.Encode(nil, enc)}
	return nil
}

// State loads, decompresses and decodes the state stored under root.
func (s *Store) State(root [32]byte) (*state.BeaconState, error) {
	s.mu.RLock()
	v, ok := s.states[root]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	dec, err := snappy.Decode(nil, v.data)
	if err != nil {
		return nil, errors.Wrap(err, "could not decompress state")
	}
	return state.UnmarshalBeaconStateSSZ(dec, v.version)
}

// StatePersister adapts a Database into the DAG's hot-state promotion
// hook (dag.SetHotStatePolicy).
func StatePersister(db iface.Database) func(root [32]byte, st *state.BeaconState) {
	return func(root [32]byte, st *state.BeaconState) {
		if err := db.SaveState(root, st); err != nil {
			log.WithError(err).Error("Could not persist hot state")
		}
	}
}
