package ann

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryTopKRanksByCosineSimilarity(t *testing.T) {
	idx := New()
	idx.Upsert(1, []float32{1, 0})
	idx.Upsert(2, []float32{1, 0}) // identical to 1
	idx.Upsert(3, []float32{0, 1}) // orthogonal to 1
	idx.Upsert(4, []float32{-1, 0}) // opposite of 1

	neighbors := idx.QueryTopK(1, 3)
	require.Len(t, neighbors, 3)
	require.Equal(t, 2, neighbors[0].ID)
	require.InDelta(t, 1.0, neighbors[0].Similarity, 0.0001)
}

func TestQueryTopKExcludesSelf(t *testing.T) {
	idx := New()
	idx.Upsert(1, []float32{1, 0})
	idx.Upsert(2, []float32{0, 1})

	neighbors := idx.QueryTopK(1, 5)
	for _, n := range neighbors {
		require.NotEqual(t, 1, n.ID)
	}
}

func TestQueryTopKLimitsResults(t *testing.T) {
	idx := New()
	for i := 0; i < 10; i++ {
		idx.Upsert(i, []float32{float32(i), 1})
	}

	neighbors := idx.QueryTopK(0, 3)
	require.Len(t, neighbors, 3)
}

func TestQueryTopKUnknownIDReturnsNil(t *testing.T) {
	idx := New()
	idx.Upsert(1, []float32{1, 0})
	require.Nil(t, idx.QueryTopK(99, 5))
}

func TestUpsertReplacesVectorWithoutDuplicatingOrder(t *testing.T) {
	idx := New()
	idx.Upsert(1, []float32{1, 0})
	idx.Upsert(1, []float32{0, 1})
	require.Equal(t, 1, idx.Len())
}
