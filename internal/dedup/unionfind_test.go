package dedup

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnionFindGroupsConnectedItems(t *testing.T) {
	uf := newUnionFind([]int{1, 2, 3, 4, 5})
	uf.union(1, 2)
	uf.union(2, 3)
	uf.union(4, 5)

	groups := uf.components([]int{1, 2, 3, 4, 5})
	require.Len(t, groups, 2)

	var sizes []int
	for _, members := range groups {
		sizes = append(sizes, len(members))
	}
	require.ElementsMatch(t, []int{3, 2}, sizes)
}

func TestUnionFindSingletonsStayApart(t *testing.T) {
	uf := newUnionFind([]int{1, 2, 3})
	groups := uf.components([]int{1, 2, 3})
	require.Len(t, groups, 3)
}
