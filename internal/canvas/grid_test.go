package canvas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinateOf(t *testing.T) {
	_, ok := CoordinateOf(0)
	assert.False(t, ok)
	_, ok = CoordinateOf(MaxPainters + 1)
	assert.False(t, ok)

	pos, ok := CoordinateOf(1)
	require.True(t, ok)
	assert.Equal(t, Coord{0, 0}, pos)

	pos, ok = CoordinateOf(41)
	require.True(t, ok)
	assert.Equal(t, Coord{6, 4}, pos)

	pos, ok = CoordinateOf(64)
	require.True(t, ok)
	assert.Equal(t, Coord{7, 7}, pos)
}

func TestGridPositionsFitTheCanvas(t *testing.T) {
	seen := make(map[Coord]bool)
	for i := 1; i <= MaxPainters; i++ {
		pos, ok := CoordinateOf(i)
		require.True(t, ok)
		require.False(t, seen[pos], "slot %d reuses %v", i, pos)
		seen[pos] = true

		side := tilesPerSide(i)
		assert.Less(t, pos.Col, side, "slot %d", i)
		assert.Less(t, pos.Row, side, "slot %d", i)
	}
}
