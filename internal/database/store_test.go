package database

import (
	"context"
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertRepositoryIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	id1, err := s.UpsertRepository(ctx, "acme", "widgets", now)
	require.NoError(t, err)
	id2, err := s.UpsertRepository(ctx, "acme", "widgets", now.Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestSavePRResultPersistsSignals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()

	repoID, err := s.UpsertRepository(ctx, "acme", "widgets", now)
	require.NoError(t, err)

	pr := domain.PRRecord{Number: 42, Title: "fix crash", Author: "alice"}
	item := domain.ScoredItem{
		Kind: "pr", Number: 42, TotalScore: 87, Intent: "bugfix", PR: &pr,
		Signals: []domain.SignalScore{{Name: "ci_status", Score: 100, Weight: 0.15, Reason: "green"}},
	}

	require.NoError(t, s.SavePRResult(ctx, repoID, item, "cfg123", now))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scoring_signals`).Scan(&count))
	require.Equal(t, 1, count)

	var totalScore float64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT total_score FROM pull_requests WHERE repo_id = ? AND pr_number = ?`, repoID, 42).Scan(&totalScore))
	require.Equal(t, 87.0, totalScore)
}

func TestSavePRResultUpsertReplacesSignals(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	repoID, _ := s.UpsertRepository(ctx, "acme", "widgets", now)

	pr := domain.PRRecord{Number: 1, Title: "a", Author: "bob"}
	first := domain.ScoredItem{Kind: "pr", Number: 1, TotalScore: 50, PR: &pr,
		Signals: []domain.SignalScore{{Name: "ci_status", Score: 50, Weight: 0.15}}}
	require.NoError(t, s.SavePRResult(ctx, repoID, first, "cfg1", now))

	second := domain.ScoredItem{Kind: "pr", Number: 1, TotalScore: 90, PR: &pr,
		Signals: []domain.SignalScore{{Name: "ci_status", Score: 100, Weight: 0.15}, {Name: "spam", Score: 100, Weight: 0.12}}}
	require.NoError(t, s.SavePRResult(ctx, repoID, second, "cfg1", now))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scoring_signals`).Scan(&count))
	require.Equal(t, 2, count)
}

func TestAppendScanHistoryRecordsSummary(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	repoID, _ := s.UpsertRepository(ctx, "acme", "widgets", now)

	require.NoError(t, s.AppendScanHistory(ctx, repoID, now, 10, 2, 1, "cfg1"))

	var count int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scan_history WHERE repo_id = ?`, repoID).Scan(&count))
	require.Equal(t, 1, count)
}

func TestSavePRResultRejectsIssueKind(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now()
	repoID, _ := s.UpsertRepository(ctx, "acme", "widgets", now)

	err := s.SavePRResult(ctx, repoID, domain.ScoredItem{Kind: "issue", Number: 1}, "cfg1", now)
	require.Error(t, err)
}
