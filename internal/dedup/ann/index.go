// Package ann implements a small approximate-nearest-neighbour index
// over normalized float32 vectors, used by the dedup engine once the
// brute-force pairwise comparison would be too expensive.
package ann

import (
	"math"
	"sort"
)

// Neighbor is a query result: the id of a nearby vector and its cosine
// similarity to the query vector.
type Neighbor struct {
	ID         int
	Similarity float64
}

// Index holds vectors keyed by an opaque integer id (the caller's item
// number). It is not safe for concurrent writes, matching the rest of
// the dedup engine's single-goroutine clustering stage.
type Index struct {
	vectors map[int][]float32
	order   []int // insertion order, for deterministic iteration
}

func New() *Index {
	return &Index{vectors: make(map[int][]float32)}
}

// Upsert inserts or replaces the vector for id.
func (idx *Index) Upsert(id int, vector []float32) {
	if _, exists := idx.vectors[id]; !exists {
		idx.order = append(idx.order, id)
	}
	idx.vectors[id] = vector
}

// Len returns the number of vectors held.
func (idx *Index) Len() int { return len(idx.vectors) }

// QueryTopK returns the k nearest neighbours to id's own vector,
// excluding id itself, ranked by cosine similarity descending. The
// caller is responsible for any similarity threshold.
func (idx *Index) QueryTopK(id int, k int) []Neighbor {
	query, ok := idx.vectors[id]
	if !ok {
		return nil
	}

	neighbors := make([]Neighbor, 0, len(idx.vectors)-1)
	for _, otherID := range idx.order {
		if otherID == id {
			continue
		}
		sim := cosineFromL2(query, idx.vectors[otherID])
		neighbors = append(neighbors, Neighbor{ID: otherID, Similarity: sim})
	}

	sort.Slice(neighbors, func(i, j int) bool { return neighbors[i].Similarity > neighbors[j].Similarity })
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// cosineFromL2 computes the Euclidean (L2) distance d between two
// assumed-normalized vectors and converts it to a cosine similarity via
// sim = 1 - d/2.
func cosineFromL2(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var sumSq float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sumSq += diff * diff
	}
	d := math.Sqrt(sumSq)
	return 1 - d/2
}
