package quarantine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	consensusblocks "github.com/sigcore-labs/beacon-core/consensus-types/blocks"
	ssztypes "github.com/sigcore-labs/beacon-core/consensus-types/primitives"
)

func testBlock(t *testing.T, slot ssztypes.Slot, parent [32]byte) *consensusblocks.ForkedSignedBeaconBlock {
	t.Helper()
	blk := &consensusblocks.SignedBeaconBlock{
		Block: &consensusblocks.BeaconBlock{
			Version:    consensusblocks.Phase0,
			Slot:       slot,
			ParentRoot: parent,
			Body:       &consensusblocks.BeaconBlockBody{},
		},
	}
	forked, err := consensusblocks.NewForkedSignedBeaconBlock(blk)
	require.NoError(t, err)
	return forked
}

func TestAddOrphanThenPop(t *testing.T) {
	q := New()
	parent := [32]byte{1}
	b1 := testBlock(t, 5, parent)
	b2 := testBlock(t, 6, parent)
	b3 := testBlock(t, 6, [32]byte{9})

	require.True(t, q.AddOrphan(0, [32]byte{0xb1}, b1))
	require.True(t, q.AddOrphan(0, [32]byte{0xb2}, b2))
	require.True(t, q.AddOrphan(0, [32]byte{0xb3}, b3))
	assert.Equal(t, 3, q.OrphanCount())

	popped := q.Pop(parent)
	assert.Len(t, popped, 2)
	assert.Equal(t, 1, q.OrphanCount())
	// Pop removes atomically: a second pop finds nothing.
	assert.Empty(t, q.Pop(parent))
}

func TestAddOrphanRefusesFinalized(t *testing.T) {
	q := New()
	b := testBlock(t, 5, [32]byte{1})
	assert.False(t, q.AddOrphan(10, [32]byte{0xb1}, b))
	assert.Equal(t, 0, q.OrphanCount())
}

func TestAddOrphanTracksMissingParent(t *testing.T) {
	q := New()
	parent := [32]byte{7}
	require.True(t, q.AddOrphan(0, [32]byte{0xb1}, testBlock(t, 5, parent)))
	assert.Contains(t, q.Missing(), parent)
}

func TestOrphanCapacityEvictsOldest(t *testing.T) {
	q := NewWithCapacity(2)
	require.True(t, q.AddOrphan(0, [32]byte{1}, testBlock(t, 5, [32]byte{0xa})))
	require.True(t, q.AddOrphan(0, [32]byte{2}, testBlock(t, 6, [32]byte{0xb})))
	require.True(t, q.AddOrphan(0, [32]byte{3}, testBlock(t, 7, [32]byte{0xc})))
	assert.Equal(t, 2, q.OrphanCount())
	assert.False(t, q.HasOrphan([32]byte{1}), "oldest entry should have been evicted")
	assert.True(t, q.HasOrphan([32]byte{2}))
	assert.True(t, q.HasOrphan([32]byte{3}))
}

func TestUnviableIsTransitive(t *testing.T) {
	q := New()
	r := [32]byte{0x51}
	// C's parent is R; D's parent is C. Both quarantined as orphans.
	c := [32]byte{0xc1}
	d := [32]byte{0xd1}
	require.True(t, q.AddOrphan(0, d, testBlock(t, 7, c)))
	require.True(t, q.AddOrphan(0, c, testBlock(t, 6, r)))

	q.AddUnviable(r)
	assert.True(t, q.IsUnviable(r))
	assert.True(t, q.IsUnviable(c), "orphan child of unviable root should become unviable")
	assert.True(t, q.IsUnviable(d), "unviability should close transitively over orphan chains")
	assert.False(t, q.HasOrphan(c))
	assert.False(t, q.HasOrphan(d))
}

func TestAddOrphanWithUnviableParent(t *testing.T) {
	q := New()
	r := [32]byte{0xaa}
	q.AddUnviable(r)
	c := [32]byte{0xcc}
	ok := q.AddOrphan(0, c, testBlock(t, 6, r))
	assert.False(t, ok)
	assert.True(t, q.IsUnviable(c))
	assert.False(t, q.HasOrphan(c), "descendant of unviable branch must not enter the orphan set")
}

func TestMissingSet(t *testing.T) {
	q := New()
	r := [32]byte{3}
	q.AddMissing(r)
	assert.Contains(t, q.Missing(), r)
	q.RemoveMissing(r)
	assert.Empty(t, q.Missing())

	// Unviable roots are never re-advertised as missing.
	q.AddUnviable(r)
	q.AddMissing(r)
	assert.Empty(t, q.Missing())
}
