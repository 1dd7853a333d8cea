package scoring

import (
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCIStatusSignal(t *testing.T) {
	require.Equal(t, 100.0, ciStatusSignal("success").Score)
	require.Equal(t, 50.0, ciStatusSignal("pending").Score)
	require.Equal(t, 10.0, ciStatusSignal("failure").Score)
	require.Equal(t, 40.0, ciStatusSignal("none").Score)
}

func TestDiffSizeSignalBuckets(t *testing.T) {
	require.Equal(t, 20.0, diffSizeSignal(2).Score)
	require.Equal(t, 70.0, diffSizeSignal(40).Score)
	require.Equal(t, 100.0, diffSizeSignal(300).Score)
	require.Equal(t, 60.0, diffSizeSignal(1500).Score)
	require.Equal(t, 30.0, diffSizeSignal(5000).Score)
}

func TestContributorSignalBlendsReputation(t *testing.T) {
	rep := map[string]float64{"octocat": 20}
	got := contributorSignal("OWNER", "octocat", rep)
	require.InDelta(t, 0.7*100+0.3*20, got.Score, 0.001)
}

func TestSpamSignalTrustedExemption(t *testing.T) {
	pr := domain.PRRecord{AuthorAssoc: "MEMBER", Additions: 1, Deletions: 0}
	got := spamSignal(pr, true)
	require.Equal(t, 100.0, got.Score)
}

func TestSpamSignalPenalizesTinyUndocumentedDiff(t *testing.T) {
	pr := domain.PRRecord{AuthorAssoc: "NONE", Additions: 1, Deletions: 0, Body: "x"}
	got := spamSignal(pr, false)
	require.Less(t, got.Score, 50.0)
}

func TestTestCoverageSignal(t *testing.T) {
	require.Equal(t, 90.0, testCoverageSignal([]string{"pkg/foo_test.go"}).Score)
	require.Equal(t, 60.0, testCoverageSignal([]string{"docs/readme.md"}).Score)
	require.Equal(t, 20.0, testCoverageSignal([]string{"pkg/foo.go"}).Score)
}

func TestStalenessSignal(t *testing.T) {
	now := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	require.Equal(t, 100.0, stalenessSignal(now.Add(-1*24*time.Hour), now).Score)
	require.Equal(t, 70.0, stalenessSignal(now.Add(-20*24*time.Hour), now).Score)
	require.Equal(t, 40.0, stalenessSignal(now.Add(-60*24*time.Hour), now).Score)
	require.Equal(t, 15.0, stalenessSignal(now.Add(-200*24*time.Hour), now).Score)
}

func TestCodeownersSignal(t *testing.T) {
	require.Equal(t, 40.0, codeownersSignal("alice", nil, false).Score)
	require.Equal(t, 40.0, codeownersSignal("alice", nil, true).Score)
	require.Equal(t, 80.0, codeownersSignal("alice", []string{"@bob"}, true).Score)
	require.Equal(t, 95.0, codeownersSignal("alice", []string{"@alice"}, true).Score)
}

func TestWeightsForIntentRenormalizes(t *testing.T) {
	weights := weightsForIntent("bugfix")
	var total float64
	for _, w := range weights {
		total += w
	}
	require.InDelta(t, 1.0, total, 0.0001)
	require.Greater(t, weights["ci_status"], baselineWeights["ci_status"]/sumWeights(baselineWeights))
}

func sumWeights(m map[string]float64) float64 {
	var total float64
	for _, w := range m {
		total += w
	}
	return total
}
