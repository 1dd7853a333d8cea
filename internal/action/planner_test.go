package action

import (
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }

func TestAutoMergeGateSelectsOnlyFullyEligiblePR(t *testing.T) {
	a := domain.ScoredItem{Kind: "pr", Number: 1, TotalScore: 95, LLMRisk: "low",
		PR: &domain.PRRecord{Mergeable: "MERGEABLE", ReviewState: "approved", CIStatus: "success", Draft: false}}
	b := domain.ScoredItem{Kind: "pr", Number: 2, TotalScore: 95, LLMRisk: "high",
		PR: &domain.PRRecord{Mergeable: "MERGEABLE", ReviewState: "approved", CIStatus: "success", Draft: false}}
	c := domain.ScoredItem{Kind: "pr", Number: 3, TotalScore: 95, LLMRisk: "low",
		PR: &domain.PRRecord{Mergeable: "MERGEABLE", ReviewState: "approved", CIStatus: "failure", Draft: false}}

	p := New(Config{MergeThreshold: 85}, fixedNow)
	plan := p.Build("o/r", []domain.ScoredItem{a, b, c}, nil)

	require.Len(t, plan.AutoMerge, 1)
	require.Equal(t, 1, plan.AutoMerge[0].Number)
}

func TestCloseSpamPlansEveryFlaggedItem(t *testing.T) {
	items := []domain.ScoredItem{
		{Kind: "issue", Number: 1, IsSpam: true, SpamReasons: []string{"tiny diff, no description"}},
		{Kind: "issue", Number: 2, IsSpam: false},
	}
	p := New(Config{}, fixedNow)
	plan := p.Build("o/r", items, nil)
	require.Len(t, plan.CloseSpam, 1)
	require.Equal(t, 1, plan.CloseSpam[0].Number)
}

func TestCloseDuplicatesSkipsBestMember(t *testing.T) {
	items := []domain.ScoredItem{
		{Kind: "pr", Number: 1, TotalScore: 70},
		{Kind: "pr", Number: 2, TotalScore: 60},
	}
	clusters := []domain.DedupCluster{{ID: 1, Type: "pr", Members: []int{1, 2}, BestMember: 1, AvgSimilarity: 0.92}}
	p := New(Config{}, fixedNow)
	plan := p.Build("o/r", items, clusters)
	require.Len(t, plan.CloseDuplicates, 1)
	require.Equal(t, 2, plan.CloseDuplicates[0].Number)
}

func TestLabelIntentOnlyForClassifiedItems(t *testing.T) {
	items := []domain.ScoredItem{
		{Kind: "pr", Number: 1, Intent: "bugfix"},
		{Kind: "pr", Number: 2, Intent: ""},
	}
	p := New(Config{}, fixedNow)
	plan := p.Build("o/r", items, nil)
	require.Len(t, plan.LabelIntent, 1)
	require.Equal(t, "intent:bugfix", plan.LabelIntent[0].Payload)
}

func TestExcludeSetAppliesToAllPlans(t *testing.T) {
	items := []domain.ScoredItem{
		{Kind: "issue", Number: 1, IsSpam: true},
	}
	p := New(Config{Exclude: map[int]bool{1: true}}, fixedNow)
	plan := p.Build("o/r", items, nil)
	require.Empty(t, plan.CloseSpam)
}

func TestBatchLimitCapsPlanSize(t *testing.T) {
	items := []domain.ScoredItem{
		{Kind: "issue", Number: 1, IsSpam: true},
		{Kind: "issue", Number: 2, IsSpam: true},
		{Kind: "issue", Number: 3, IsSpam: true},
	}
	p := New(Config{BatchLimit: 2}, fixedNow)
	plan := p.Build("o/r", items, nil)
	require.Len(t, plan.CloseSpam, 2)
}
