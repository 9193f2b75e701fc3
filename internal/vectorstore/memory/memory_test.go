package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIndex_RejectsBadDimension(t *testing.T) {
	_, err := NewIndex(0)
	assert.Error(t, err)
}

func TestUpsert_Validates(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)

	assert.Error(t, idx.Upsert([]int64{1}, nil))
	assert.Error(t, idx.Upsert([]int64{1}, [][]float64{{1, 0, 0}}))
	assert.Zero(t, idx.Len())
}

func TestSearch_OrdersByScore(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(
		[]int64{10, 20, 30},
		[][]float64{{0, 1}, {1, 0}, {0.6, 0.8}},
	))

	hits := idx.Search([]float64{1, 0}, 2)

	require.Len(t, hits, 2)
	assert.Equal(t, int64(20), hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, int64(30), hits[1].ID)
}

func TestSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx, err := NewIndex(1)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert([]int64{3, 1, 2}, [][]float64{{0}, {0}, {0}}))

	hits := idx.Search([]float64{1}, 10)

	require.Len(t, hits, 3)
	assert.Equal(t, []int64{3, 1, 2}, []int64{hits[0].ID, hits[1].ID, hits[2].ID})
}

func TestUpsert_ReplacesExistingID(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert([]int64{1, 2}, [][]float64{{1, 0}, {0, 1}}))
	require.NoError(t, idx.Upsert([]int64{1}, [][]float64{{0, 1}}))

	assert.Equal(t, 2, idx.Len())
	scores := idx.Scores([]float64{0, 1})
	assert.InDelta(t, 1.0, scores[1], 1e-9)
	assert.InDelta(t, 1.0, scores[2], 1e-9)
}

func TestSearch_WrongQueryDimension(t *testing.T) {
	idx, err := NewIndex(2)
	require.NoError(t, err)
	require.NoError(t, idx.Upsert([]int64{1}, [][]float64{{1, 0}}))

	assert.Nil(t, idx.Search([]float64{1}, 5))
	assert.Nil(t, idx.Search([]float64{1, 0}, 0))
}
