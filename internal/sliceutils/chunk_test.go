package sliceutils_test

import (
	"testing"

	"github.com/habiliai/dataagent/internal/sliceutils"
	"github.com/stretchr/testify/assert"
)

func TestChunk(t *testing.T) {
	t.Run("Given seven elements, when chunking by three, then the last chunk holds the remainder", func(t *testing.T) {
		chunks := sliceutils.Chunk([]int{1, 2, 3, 4, 5, 6, 7}, 3)
		assert.Equal(t, [][]int{{1, 2, 3}, {4, 5, 6}, {7}}, chunks)
	})

	t.Run("Given an empty slice, when chunking, then nil is returned", func(t *testing.T) {
		assert.Nil(t, sliceutils.Chunk([]string{}, 4))
	})

	t.Run("Given a non-positive size, when chunking, then nil is returned", func(t *testing.T) {
		assert.Nil(t, sliceutils.Chunk([]int{1}, 0))
	})
}

func TestLast(t *testing.T) {
	assert.Equal(t, []int{4, 5}, sliceutils.Last([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, []int{1, 2}, sliceutils.Last([]int{1, 2}, 10))
	assert.Empty(t, sliceutils.Last([]int{1, 2}, 0))
}
