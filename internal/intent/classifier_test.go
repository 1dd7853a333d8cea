package intent

import (
	"context"
	"testing"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm/static"
	"github.com/stretchr/testify/require"
)

func TestConventionalPrefixMapsToBugfix(t *testing.T) {
	c := New(nil)
	result := c.Classify(context.Background(), "fix: correct nil pointer", "", nil)
	require.Equal(t, "bugfix", result.Intent)
	require.Equal(t, 1.0, result.Confidence)
}

func TestConventionalChoreDepsScopeMapsToDependency(t *testing.T) {
	c := New(nil)
	result := c.Classify(context.Background(), "chore(deps): bump lodash to 4.17.21", "", nil)
	require.Equal(t, "dependency", result.Intent)
}

func TestConventionalBuildDependenciesScopeMapsToDependency(t *testing.T) {
	c := New(nil)
	result := c.Classify(context.Background(), "build(dependencies): update go.mod", "", nil)
	require.Equal(t, "dependency", result.Intent)
}

func TestConventionalTestDepsScopeStaysChore(t *testing.T) {
	// Only "chore" and "build" typed commits get the deps override; "test"
	// and "ci" also map to the chore intent but must not trigger it.
	c := New(nil)
	result := c.Classify(context.Background(), "test(deps): bump test fixture versions", "", nil)
	require.Equal(t, "chore", result.Intent)
}

func TestConventionalCIDepsScopeStaysChore(t *testing.T) {
	c := New(nil)
	result := c.Classify(context.Background(), "ci(deps): bump action versions", "", nil)
	require.Equal(t, "chore", result.Intent)
}

func TestConventionalFeatMapsToFeature(t *testing.T) {
	c := New(nil)
	result := c.Classify(context.Background(), "feat(api): add pagination", "", nil)
	require.Equal(t, "feature", result.Intent)
}

func TestLLMStageUsedWhenNoConventionalPrefix(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText(`{"intent":"refactor","confidence":0.9,"reason":"restructures package layout"}`)

	c := New(provider)
	result := c.Classify(context.Background(), "Reorganize internal packages", "moves files around", nil)
	require.Equal(t, "refactor", result.Intent)
	require.Equal(t, 0.9, result.Confidence)
}

func TestLLMStageSkippedOnInvalidIntent(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText(`{"intent":"not-a-real-intent","confidence":0.9,"reason":"bad"}`)

	c := New(provider)
	result := c.Classify(context.Background(), "Reorganize internal packages", "restructure the cleanup of old files", nil)
	require.Equal(t, "refactor", result.Intent)
	require.Less(t, result.Confidence, 1.0)
}

func TestKeywordFallbackDependency(t *testing.T) {
	c := New(nil)
	result := classifyByKeyword("Bump go.mod dependency versions", "", []string{"go.mod", "go.sum"})
	require.Equal(t, "dependency", result.Intent)
}

func TestKeywordFallbackDocsOnly(t *testing.T) {
	result := classifyByKeyword("Update readme", "typo fix", []string{"docs/guide.md"})
	require.Equal(t, "docs", result.Intent)
}

func TestKeywordFallbackBugfix(t *testing.T) {
	result := classifyByKeyword("Resolve crash on startup", "the app crashes", nil)
	require.Equal(t, "bugfix", result.Intent)
}

func TestKeywordFallbackDefaultFeature(t *testing.T) {
	result := classifyByKeyword("Add dark mode toggle", "users want a theme switch", nil)
	require.Equal(t, "feature", result.Intent)
}

func TestClassifyPRIntegration(t *testing.T) {
	c := New(nil)
	pr := domain.PRRecord{Title: "docs: update contributing guide", FilePaths: []string{"CONTRIBUTING.md"}}
	intent, err := c.ClassifyPR(context.Background(), pr)
	require.NoError(t, err)
	require.Equal(t, "docs", intent)
}

func TestClassifyIssueIntegration(t *testing.T) {
	c := New(nil)
	issue := domain.IssueRecord{Title: "Crash when opening settings", Body: "error on launch"}
	intent, err := c.ClassifyIssue(context.Background(), issue)
	require.NoError(t, err)
	require.Equal(t, "bugfix", intent)
}
