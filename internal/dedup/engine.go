// Package dedup finds clusters of duplicate pull requests and issues by
// embedding their title and body, comparing pairwise similarity (via
// brute force or an approximate nearest-neighbour index depending on
// scale), clustering with union-find, and optionally confirming each
// cluster with one LLM call.
package dedup

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/dedup/ann"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/mahsumaktas/treliq/internal/observability"
)

const (
	annNeighbors         = 20
	embedBatchSize       = 100
	maxConsecutiveFailures = 5
)

// Engine finds duplicate clusters among scored items.
type Engine struct {
	provider          llm.Adapter
	gate              *concurrency.Gate
	relatedThreshold  float64
	bruteForceCutover int
	verifyWithLLM     bool
	logger            observability.Logger
}

func New(provider llm.Adapter, gate *concurrency.Gate, relatedThreshold float64, bruteForceCutover int, verifyWithLLM bool, logger observability.Logger) *Engine {
	return &Engine{
		provider:          provider,
		gate:              gate,
		relatedThreshold:  relatedThreshold,
		bruteForceCutover: bruteForceCutover,
		verifyWithLLM:     verifyWithLLM,
		logger:            logger,
	}
}

// FindDuplicates embeds, clusters, and optionally LLM-verifies the given
// items, returning one DedupCluster per confirmed group and setting
// DuplicateGroup on every clustered item in place. On any stage failure
// it logs and returns an empty slice rather than propagating the error,
// since dedup failure must never block the rest of a scan.
func (e *Engine) FindDuplicates(ctx context.Context, items []domain.ScoredItem) []domain.DedupCluster {
	embedded, err := e.embedAll(ctx, items)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn(ctx, "dedup embedding stage aborted", "error", err)
		}
		return nil
	}
	if len(embedded) < 2 {
		return nil
	}

	pairs := e.similarPairs(embedded)
	clusters := clusterPairs(embedded, pairs)

	if e.verifyWithLLM && e.provider != nil {
		clusters = e.verifyClusters(ctx, embedded, clusters)
	}

	assignGroupIDs(items, clusters)
	return clusters
}

type embeddedItem struct {
	item   *domain.ScoredItem
	vector []float32
}

func (e *Engine) embedAll(ctx context.Context, items []domain.ScoredItem) ([]embeddedItem, error) {
	if e.provider == nil {
		return nil, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = itemText(item)
	}

	if batcher, ok := e.provider.(llm.BatchEmbedder); ok {
		embedded := make([]embeddedItem, 0, len(items))
		for start := 0; start < len(items); start += embedBatchSize {
			end := start + embedBatchSize
			if end > len(items) {
				end = len(items)
			}
			resps, err := batcher.GenerateEmbeddingBatch(ctx, texts[start:end])
			if err != nil {
				if e.logger != nil {
					e.logger.Warn(ctx, "batch embedding failed, falling back to per-item embedding", "error", err)
				}
				return e.embedOneByOne(ctx, items)
			}
			for i, resp := range resps {
				idx := start + i
				items[idx].Embedding = resp.Vector
				embedded = append(embedded, embeddedItem{item: &items[idx], vector: resp.Vector})
			}
		}
		return embedded, nil
	}

	return e.embedOneByOne(ctx, items)
}

func (e *Engine) embedOneByOne(ctx context.Context, items []domain.ScoredItem) ([]embeddedItem, error) {
	embedded := make([]embeddedItem, 0, len(items))
	var consecutiveFailures int32
	var mu sync.Mutex
	var wg sync.WaitGroup

	gate := e.gate
	if gate == nil {
		gate = concurrency.NewGate(4, 1)
	}

	for i := range items {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if atomic.LoadInt32(&consecutiveFailures) >= maxConsecutiveFailures {
				return
			}
			_ = gate.Do(ctx, func() error {
				resp, err := e.provider.GenerateEmbedding(ctx, itemText(items[i]))
				if err != nil {
					atomic.AddInt32(&consecutiveFailures, 1)
					return err
				}
				atomic.StoreInt32(&consecutiveFailures, 0)
				mu.Lock()
				items[i].Embedding = resp.Vector
				embedded = append(embedded, embeddedItem{item: &items[i], vector: resp.Vector})
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&consecutiveFailures) >= maxConsecutiveFailures {
		return nil, fmt.Errorf("dedup: %d consecutive embedding failures, aborting", maxConsecutiveFailures)
	}
	return embedded, nil
}

func itemText(item domain.ScoredItem) string {
	if item.PR != nil {
		return item.PR.Title + "\n" + item.PR.Body
	}
	if item.Issue != nil {
		return item.Issue.Title + "\n" + item.Issue.Body
	}
	return ""
}

type pair struct {
	a, b       int // item numbers
	similarity float64
}

func (e *Engine) similarPairs(embedded []embeddedItem) []pair {
	if len(embedded) <= 50 || e.bruteForceCutover <= 0 {
		return e.bruteForcePairs(embedded)
	}
	return e.annPairs(embedded)
}

func (e *Engine) bruteForcePairs(embedded []embeddedItem) []pair {
	var pairs []pair
	for i := 0; i < len(embedded); i++ {
		for j := i + 1; j < len(embedded); j++ {
			sim := cosineSimilarity(embedded[i].vector, embedded[j].vector)
			if sim >= e.relatedThreshold {
				pairs = append(pairs, canonicalPair(embedded[i].item.Number, embedded[j].item.Number, sim))
			}
		}
	}
	return dedupePairs(pairs)
}

func (e *Engine) annPairs(embedded []embeddedItem) []pair {
	index := ann.New()
	for _, e := range embedded {
		index.Upsert(e.item.Number, e.vector)
	}

	var pairs []pair
	for _, item := range embedded {
		neighbors := index.QueryTopK(item.item.Number, annNeighbors)
		for _, n := range neighbors {
			if n.Similarity >= e.relatedThreshold {
				pairs = append(pairs, canonicalPair(item.item.Number, n.ID, n.Similarity))
			}
		}
	}
	return dedupePairs(pairs)
}

func canonicalPair(a, b int, sim float64) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a: a, b: b, similarity: sim}
}

func dedupePairs(pairs []pair) []pair {
	seen := make(map[[2]int]bool, len(pairs))
	out := pairs[:0]
	for _, p := range pairs {
		key := [2]int{p.a, p.b}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func clusterPairs(embedded []embeddedItem, pairs []pair) []domain.DedupCluster {
	if len(pairs) == 0 {
		return nil
	}

	byNumber := make(map[int]*domain.ScoredItem, len(embedded))
	numbers := make([]int, 0, len(embedded))
	for _, e := range embedded {
		byNumber[e.item.Number] = e.item
		numbers = append(numbers, e.item.Number)
	}

	uf := newUnionFind(numbers)
	simSum := make(map[[2]int]float64)
	for _, p := range pairs {
		uf.union(p.a, p.b)
		simSum[[2]int{p.a, p.b}] = p.similarity
	}

	groups := uf.components(numbers)
	var clusters []domain.DedupCluster
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		sort.Ints(members)
		clusters = append(clusters, buildCluster(members, byNumber, simSum))
	}

	sort.Slice(clusters, func(i, j int) bool { return clusters[i].Members[0] < clusters[j].Members[0] })
	for i := range clusters {
		clusters[i].ID = i + 1
	}
	return clusters
}

func buildCluster(members []int, byNumber map[int]*domain.ScoredItem, simSum map[[2]int]float64) domain.DedupCluster {
	var best *domain.ScoredItem
	allPR, allIssue := true, true
	var simTotal float64
	var simCount int

	memberSet := make(map[int]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	for _, m := range members {
		item := byNumber[m]
		if item.Kind != "pr" {
			allPR = false
		}
		if item.Kind != "issue" {
			allIssue = false
		}
		if best == nil || item.TotalScore > best.TotalScore || (item.TotalScore == best.TotalScore && item.Number < best.Number) {
			best = item
		}
	}

	for key, sim := range simSum {
		if memberSet[key[0]] && memberSet[key[1]] {
			simTotal += sim
			simCount++
		}
	}

	clusterType := "mixed"
	switch {
	case allPR:
		clusterType = "pr"
	case allIssue:
		clusterType = "issue"
	}

	avgSim := 0.0
	if simCount > 0 {
		avgSim = simTotal / float64(simCount)
	}

	return domain.DedupCluster{
		Type:          clusterType,
		Members:       members,
		BestMember:    best.Number,
		AvgSimilarity: avgSim,
		Reason:        fmt.Sprintf("embedding similarity %.2f across %d item(s)", avgSim, len(members)),
	}
}

func assignGroupIDs(items []domain.ScoredItem, clusters []domain.DedupCluster) {
	byNumber := make(map[int]int, len(clusters))
	for _, c := range clusters {
		for _, m := range c.Members {
			byNumber[m] = c.ID
		}
	}
	for i := range items {
		if id, ok := byNumber[items[i].Number]; ok {
			items[i].DuplicateGroup = id
		}
	}
}

type verifyResponse struct {
	IsDuplicate bool    `json:"isDuplicate"`
	Reason      string  `json:"reason"`
	Subgroups   [][]int `json:"subgroups,omitempty"`
}

type bestPRResponse struct {
	BestPR int `json:"bestPR"`
}

func (e *Engine) verifyClusters(ctx context.Context, embedded []embeddedItem, clusters []domain.DedupCluster) []domain.DedupCluster {
	byNumber := make(map[int]*domain.ScoredItem, len(embedded))
	for _, e := range embedded {
		byNumber[e.item.Number] = e.item
	}

	var verified []domain.DedupCluster
	for _, cluster := range clusters {
		resp, err := e.provider.GenerateText(ctx, llm.TextRequest{Prompt: verifyPrompt(cluster, byNumber), Temperature: 0, MaxTokens: 300})
		if err != nil {
			if e.logger != nil {
				e.logger.Warn(ctx, "dedup cluster verification failed, retaining heuristic cluster", "error", err)
			}
			verified = append(verified, cluster)
			continue
		}

		var parsed verifyResponse
		if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
			verified = append(verified, cluster)
			continue
		}
		if !parsed.IsDuplicate {
			continue
		}

		if len(parsed.Subgroups) > 0 {
			for _, sub := range parsed.Subgroups {
				if len(sub) < 2 {
					continue
				}
				sort.Ints(sub)
				newCluster := domain.DedupCluster{Type: cluster.Type, Members: sub, Reason: parsed.Reason}
				newCluster.BestMember = e.pickBestPR(ctx, sub, byNumber)
				verified = append(verified, newCluster)
			}
			continue
		}

		cluster.BestMember = e.pickBestPR(ctx, cluster.Members, byNumber)
		cluster.Reason = parsed.Reason
		verified = append(verified, cluster)
	}

	for i := range verified {
		verified[i].ID = i + 1
	}
	return verified
}

func (e *Engine) pickBestPR(ctx context.Context, members []int, byNumber map[int]*domain.ScoredItem) int {
	resp, err := e.provider.GenerateText(ctx, llm.TextRequest{Prompt: bestPRPrompt(members, byNumber), Temperature: 0, MaxTokens: 100})
	if err == nil {
		var parsed bestPRResponse
		if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err == nil {
			for _, m := range members {
				if m == parsed.BestPR {
					return parsed.BestPR
				}
			}
		}
	}
	return scoreBasedBest(members, byNumber)
}

func scoreBasedBest(members []int, byNumber map[int]*domain.ScoredItem) int {
	best := members[0]
	bestScore := byNumber[best].TotalScore
	for _, m := range members[1:] {
		score := byNumber[m].TotalScore
		if score > bestScore || (score == bestScore && m < best) {
			best = m
			bestScore = score
		}
	}
	return best
}

func verifyPrompt(cluster domain.DedupCluster, byNumber map[int]*domain.ScoredItem) string {
	var b strings.Builder
	b.WriteString("Determine whether these items are true duplicates of one another.\n")
	for _, m := range cluster.Members {
		item := byNumber[m]
		b.WriteString(fmt.Sprintf("#%d: %s\n", m, itemText(*item)))
	}
	b.WriteString(`Respond with JSON only: {"isDuplicate": bool, "reason": string, "subgroups": [[number]] (optional, only if the items split into more than one real duplicate group)}.`)
	return b.String()
}

func bestPRPrompt(members []int, byNumber map[int]*domain.ScoredItem) string {
	var b strings.Builder
	b.WriteString("Given this cluster of duplicate items, pick the single best one to keep open.\n")
	for _, m := range members {
		item := byNumber[m]
		b.WriteString(fmt.Sprintf("#%d: %s (score %.1f)\n", m, itemText(*item), item.TotalScore))
	}
	b.WriteString(`Respond with JSON only: {"bestPR": number}.`)
	return b.String()
}

func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
