// Package action derives close/merge/label plans from scored items and
// executes them sequentially against the host, re-checking each
// target's live state immediately before acting.
package action

import (
	"fmt"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
)

// Config bounds what the planner is allowed to propose.
type Config struct {
	MergeThreshold float64
	Exclude        map[int]bool
	BatchLimit     int // 0 means unlimited
}

// Plan groups the four independent action lists a scan produces.
type Plan struct {
	CloseDuplicates []domain.ActionItem
	CloseSpam       []domain.ActionItem
	AutoMerge       []domain.ActionItem
	LabelIntent     []domain.ActionItem
}

// Planner builds a Plan from scored items and dedup clusters.
type Planner struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config, now func() time.Time) *Planner {
	if now == nil {
		now = time.Now
	}
	if cfg.Exclude == nil {
		cfg.Exclude = map[int]bool{}
	}
	return &Planner{cfg: cfg, now: now}
}

// Build derives all four plan lists. items must be keyed by number;
// clusters come from the dedup engine run over the same items.
func (p *Planner) Build(repo string, items []domain.ScoredItem, clusters []domain.DedupCluster) Plan {
	byNumber := make(map[int]domain.ScoredItem, len(items))
	for _, it := range items {
		byNumber[it.Number] = it
	}

	return Plan{
		CloseDuplicates: p.closeDuplicates(repo, byNumber, clusters),
		CloseSpam:       p.closeSpam(repo, items),
		AutoMerge:       p.autoMerge(repo, items),
		LabelIntent:     p.labelIntent(repo, items),
	}
}

func (p *Planner) closeDuplicates(repo string, byNumber map[int]domain.ScoredItem, clusters []domain.DedupCluster) []domain.ActionItem {
	var out []domain.ActionItem
	now := p.now()
	for _, cluster := range clusters {
		best, ok := byNumber[cluster.BestMember]
		_ = best
		for _, member := range cluster.Members {
			if member == cluster.BestMember {
				continue
			}
			if p.cfg.Exclude[member] {
				continue
			}
			reason := fmt.Sprintf("duplicate of #%d (%.0f%% similar)", cluster.BestMember, cluster.AvgSimilarity*100)
			comment := fmt.Sprintf("Closing as a duplicate of #%d (%.0f%% similar).", cluster.BestMember, cluster.AvgSimilarity*100)
			_ = ok
			out = append(out, domain.NewActionItem("close", repo, member, reason, comment, now))
			if p.limitReached(len(out)) {
				return out
			}
		}
	}
	return out
}

func (p *Planner) closeSpam(repo string, items []domain.ScoredItem) []domain.ActionItem {
	var out []domain.ActionItem
	now := p.now()
	for _, it := range items {
		if !it.IsSpam || p.cfg.Exclude[it.Number] {
			continue
		}
		reason := "flagged as spam"
		if len(it.SpamReasons) > 0 {
			reason = it.SpamReasons[0]
		}
		out = append(out, domain.NewActionItem("close", repo, it.Number, reason, "", now))
		if p.limitReached(len(out)) {
			return out
		}
	}
	return out
}

func (p *Planner) autoMerge(repo string, items []domain.ScoredItem) []domain.ActionItem {
	var out []domain.ActionItem
	now := p.now()
	for _, it := range items {
		if it.Kind != "pr" || it.PR == nil || p.cfg.Exclude[it.Number] {
			continue
		}
		if !p.mergeEligible(it) {
			continue
		}
		reason := fmt.Sprintf("score %.0f >= threshold %.0f, approved, CI green, mergeable", it.TotalScore, p.cfg.MergeThreshold)
		out = append(out, domain.NewActionItem("merge", repo, it.Number, reason, "squash", now))
		if p.limitReached(len(out)) {
			return out
		}
	}
	return out
}

// mergeEligible implements the auto-merge gate: totalScore >=
// mergeThreshold, mergeable, approved, CI success, risk not high, not
// a draft.
func (p *Planner) mergeEligible(it domain.ScoredItem) bool {
	pr := it.PR
	return it.TotalScore >= p.cfg.MergeThreshold &&
		pr.Mergeable == "MERGEABLE" &&
		pr.ReviewState == "approved" &&
		pr.CIStatus == "success" &&
		it.LLMRisk != "high" &&
		!pr.Draft
}

func (p *Planner) labelIntent(repo string, items []domain.ScoredItem) []domain.ActionItem {
	var out []domain.ActionItem
	now := p.now()
	for _, it := range items {
		if it.Intent == "" || p.cfg.Exclude[it.Number] {
			continue
		}
		label := "intent:" + it.Intent
		reason := fmt.Sprintf("classified intent %q", it.Intent)
		out = append(out, domain.NewActionItem("label", repo, it.Number, reason, label, now))
		if p.limitReached(len(out)) {
			return out
		}
	}
	return out
}

func (p *Planner) limitReached(n int) bool {
	return p.cfg.BatchLimit > 0 && n >= p.cfg.BatchLimit
}
