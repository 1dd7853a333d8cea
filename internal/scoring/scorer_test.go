package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm/static"
	"github.com/stretchr/testify/require"
)

type fakeClassifier struct {
	intent string
	err    error
}

func (f fakeClassifier) ClassifyPR(ctx context.Context, pr domain.PRRecord) (string, error) {
	return f.intent, f.err
}

func (f fakeClassifier) ClassifyIssue(ctx context.Context, issue domain.IssueRecord) (string, error) {
	return f.intent, f.err
}

func samplePR() domain.PRRecord {
	return domain.PRRecord{
		Number:       12,
		Repo:         "acme/widgets",
		Title:        "fix: correct off-by-one in parser",
		Body:         "Fixes a crash on empty input. Closes #8.",
		AuthorAssoc:  "CONTRIBUTOR",
		Author:       "jdoe",
		CreatedAt:    time.Now().Add(-48 * time.Hour),
		UpdatedAt:    time.Now().Add(-2 * time.Hour),
		Additions:    30,
		Deletions:    10,
		ChangedFiles: 2,
		CommitsCount: 1,
		FilePaths:    []string{"internal/parser/parser.go", "internal/parser/parser_test.go"},
		Mergeable:    "MERGEABLE",
		CIStatus:     "success",
		ReviewState:  "approved",
		ReviewCount:  2,
		Labels:       []string{"bug"},
		LinkedIssues: []int{8},
	}
}

func TestScorePRHeuristicOnly(t *testing.T) {
	s := New(nil, fakeClassifier{intent: "bugfix"}, false, nil, nil)
	item, err := s.ScorePR(context.Background(), samplePR())
	require.NoError(t, err)
	require.Equal(t, "bugfix", item.Intent)
	require.NotEmpty(t, item.Signals)
	require.GreaterOrEqual(t, item.TotalScore, 0.0)
	require.LessOrEqual(t, item.TotalScore, 100.0)
	require.False(t, item.IsSpam)
}

func TestScorePRBlendsLLM(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText(`{"score": 80, "risk": "low", "reason": "looks safe"}`)

	s := New(provider, fakeClassifier{intent: "bugfix"}, false, nil, nil)
	item, err := s.ScorePR(context.Background(), samplePR())
	require.NoError(t, err)
	require.Equal(t, 80.0, item.LLMScore)
	require.Equal(t, "low", item.LLMRisk)

	expected := heuristicBlendShare*item.HeuristicAggregate() + llmBlendShare*80.0
	require.InDelta(t, expected, item.TotalScore, 1.0)
}

func TestScorePRLLMFailureRetainsHeuristic(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText("not json at all")

	s := New(provider, fakeClassifier{intent: "bugfix"}, false, nil, nil)
	item, err := s.ScorePR(context.Background(), samplePR())
	require.NoError(t, err)
	require.Equal(t, 0.0, item.LLMScore)
	require.Equal(t, item.TotalScore, roundFor(item.HeuristicAggregate()))
}

func TestScoreSpamPR(t *testing.T) {
	pr := samplePR()
	pr.AuthorAssoc = "NONE"
	pr.Additions, pr.Deletions = 1, 0
	pr.Body = "x"
	pr.LinkedIssues = nil

	s := New(nil, nil, false, nil, nil)
	item, err := s.ScorePR(context.Background(), pr)
	require.NoError(t, err)
	require.True(t, item.IsSpam)
	require.NotEmpty(t, item.SpamReasons)
}

func TestScoreManyPRsExcludesNone(t *testing.T) {
	s := New(nil, fakeClassifier{intent: "feature"}, false, nil, nil)
	gate := concurrency.NewGate(4, 1)

	prs := []domain.PRRecord{samplePR(), samplePR(), samplePR()}
	prs[1].Number = 13
	prs[2].Number = 14

	items := s.ScoreManyPRs(context.Background(), prs, gate)
	require.Len(t, items, 3)
}

func TestSetReputationAffectsContributorSignal(t *testing.T) {
	s := New(nil, fakeClassifier{intent: "chore"}, false, nil, nil)
	s.SetReputation("jdoe", 10)

	pr := samplePR()
	item, err := s.ScorePR(context.Background(), pr)
	require.NoError(t, err)

	sig, ok := item.SignalByName("contributor")
	require.True(t, ok)
	require.Less(t, sig.Score, 70.0)
}

func roundFor(v float64) float64 {
	return float64(int(v + 0.5))
}
