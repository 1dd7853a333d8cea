package github

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractIssueRefs(t *testing.T) {
	text := "This fixes #12 and also relates to #40. See #12 again."
	refs := ExtractIssueRefs(text)
	require.Equal(t, []int{12, 40}, refs)
}

func TestExtractIssueRefsNone(t *testing.T) {
	require.Empty(t, ExtractIssueRefs("no references here"))
}

func TestExtractIssueRefsFallsBackToBareNumbers(t *testing.T) {
	text := "See #12 and #40 for context, no keyword nearby."
	refs := ExtractIssueRefs(text)
	require.Equal(t, []int{12, 40}, refs)
}

func TestExtractIssueRefsBareFallbackAllowsDuplicates(t *testing.T) {
	text := "See #12, then #12 again."
	refs := ExtractIssueRefs(text)
	require.Equal(t, []int{12, 12}, refs)
}

func TestExtractIssueRefsBareNumberBoundsChecked(t *testing.T) {
	text := "See #123456 which is out of range, and #7 which is fine."
	refs := ExtractIssueRefs(text)
	require.Equal(t, []int{7}, refs)
}

func TestParseCodeownersAndOwnersFor(t *testing.T) {
	body := "# comment\n*.go @go-team\ninternal/host/* @host-team\ndocs/* @docs-team\n"
	rules := ParseCodeowners(body)
	require.Len(t, rules, 3)

	// "internal/host/github/client.go" matches both "*.go" and
	// "internal/host/*" — union, not "most specific rule wins".
	require.Equal(t, []string{"@go-team", "@host-team"}, OwnersFor(rules, "internal/host/github/client.go"))
	require.Equal(t, []string{"@docs-team"}, OwnersFor(rules, "docs/readme.md"))
	require.Equal(t, []string{"@go-team"}, OwnersFor(rules, "main.go"))
	require.Nil(t, OwnersFor(rules, "README"))
}

func TestOwnersForUnionOfAllMatchingRules(t *testing.T) {
	// Every rule whose pattern matches contributes its owners; there is
	// no "last match wins" precedence per spec.md's literal algorithm.
	body := "* @default-team\ninternal/* @internal-team\n"
	rules := ParseCodeowners(body)
	require.Equal(t, []string{"@default-team", "@internal-team"}, OwnersFor(rules, "internal/foo.go"))
}

func TestGlobToRegexCrossesDirectorySeparators(t *testing.T) {
	// Per spec.md, "*" -> ".*", which (unlike path.Match or filepath.Match)
	// matches across "/", so "src/*" matches nested paths too.
	body := "src/* @src-team\n"
	rules := ParseCodeowners(body)
	require.Equal(t, []string{"@src-team"}, OwnersFor(rules, "src/sub/file.go"))
}
