package bitalloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindFirstUnset(t *testing.T) {
	words := []uint8{0b11100000, 0b11111111}
	load := func(w int) uint8 { return words[w] }

	assert.Equal(t, 3, findFirstUnset[uint8](0, 16, load))
	assert.Equal(t, 16, findFirstUnset[uint8](8, 16, load))
}

func TestFindFirstSet(t *testing.T) {
	words := []uint8{0b00000000, 0b00010000}
	load := func(w int) uint8 { return words[w] }

	assert.Equal(t, 11, findFirstSet[uint8](0, 16, load))
	assert.Equal(t, 8, findFirstSet[uint8](0, 8, load))
}

func TestFindUnsetRangeFirstFit(t *testing.T) {
	words := []uint8{0b11100000, 0b00000000}
	load := func(w int) uint8 { return words[w] }

	assert.Equal(t, 3, findUnsetRange[uint8](0, 16, 5, load))
}

func TestFindUnsetRangeNoFit(t *testing.T) {
	words := []uint8{0b11111111, 0b11111111}
	load := func(w int) uint8 { return words[w] }

	assert.Equal(t, 16, findUnsetRange[uint8](0, 16, 1, load))
}

func TestFindUnsetRangeSkipsFragment(t *testing.T) {
	// the single free bit at index 3 is too small for len=2 and must be
	// skipped in favor of the free run starting at word 1.
	words := []uint8{0b11101111, 0b00000000}
	load := func(w int) uint8 { return words[w] }

	require.Equal(t, 8, findUnsetRange[uint8](0, 16, 2, load))
}
