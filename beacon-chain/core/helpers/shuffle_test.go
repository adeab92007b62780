package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sigcore-labs/beacon-core/config/params"
)

func TestShuffledIndexIsPermutation(t *testing.T) {
	params.UseMinimalConfig()
	seed := [32]byte{0x01, 0x02, 0x03}
	const listSize = 100

	seen := make(map[uint64]bool, listSize)
	for i := uint64(0); i < listSize; i++ {
		j, err := ShuffledIndex(i, listSize, seed)
		require.NoError(t, err)
		require.Less(t, j, uint64(listSize))
		assert.False(t, seen[j], "index %d mapped to already-used position %d", i, j)
		seen[j] = true
	}
}

func TestShuffledIndexDeterministic(t *testing.T) {
	params.UseMinimalConfig()
	seed := [32]byte{0xaa}
	a, err := ShuffledIndex(5, 64, seed)
	require.NoError(t, err)
	b, err := ShuffledIndex(5, 64, seed)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	other, err := ShuffledIndex(5, 64, [32]byte{0xbb})
	require.NoError(t, err)
	assert.NotEqual(t, a, other, "different seeds should shuffle differently")
}

func TestShuffledIndexBounds(t *testing.T) {
	params.UseMinimalConfig()
	_, err := ShuffledIndex(0, 0, [32]byte{})
	assert.Error(t, err)
	_, err = ShuffledIndex(10, 10, [32]byte{})
	assert.Error(t, err)
}
