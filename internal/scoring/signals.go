package scoring

import (
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
)

var conventionalPrefix = regexp.MustCompile(`^(\w+)(\([^)]*\))?!?:`)

var testFilePattern = regexp.MustCompile(`(?i)(_test\.|/test[s]?/|\.test\.|spec\.)`)
var apiOrConfigPattern = regexp.MustCompile(`(?i)(api/|config/|\.ya?ml$|\.json$|openapi)`)
var priorityLabels = map[string]bool{
	"high-priority": true, "urgent": true, "critical": true,
	"p0": true, "p1": true, "security": true, "bug": true,
}

var spamPenaltyThreshold = 25.0

// signalPRs computes every applicable signal for a pull request.
func signalsForPR(pr domain.PRRecord, now time.Time, reputation map[string]float64, trustContributors bool) []domain.SignalScore {
	diffSize := pr.Additions + pr.Deletions

	out := []domain.SignalScore{
		ciStatusSignal(pr.CIStatus),
		diffSizeSignal(diffSize),
		commitQualitySignal(pr.Title),
		contributorSignal(pr.AuthorAssoc, pr.Author, reputation),
		issueRefSignal(len(pr.LinkedIssues) > 0),
		spamSignal(pr, trustContributors),
		testCoverageSignal(pr.FilePaths),
		stalenessSignal(pr.UpdatedAt, now),
		mergeabilitySignal(pr.Mergeable),
		reviewStatusSignal(pr.ReviewState, pr.ReviewCount),
		bodyQualitySignal(pr.Body),
		activitySignal(pr.CommentsCount),
		breakingChangeSignal(pr.Title, pr.Deletions, pr.FilePaths),
		draftStatusSignal(pr.Draft),
		milestoneSignal(pr.Milestone),
		labelPrioritySignal(pr.Labels),
		codeownersSignal(pr.Author, pr.MatchedOwners, pr.CodeownersConfigured),
		requestedReviewersSignal(pr.RequestedReviewers),
		scopeCoherenceSignal(pr.FilePaths),
		complexitySignal(pr.CommitsCount, pr.ChangedFiles),
	}
	return out
}

// signalsForIssue computes the subset of signals applicable to issues,
// which carry no diff, CI, review, or merge state. Inapplicable signals
// are omitted rather than stubbed with a neutral score, so weights
// renormalize over only what actually applies.
func signalsForIssue(issue domain.IssueRecord, now time.Time, reputation map[string]float64, trustContributors bool) []domain.SignalScore {
	return []domain.SignalScore{
		contributorSignal(issue.AuthorAssoc, issue.Author, reputation),
		spamSignalForIssue(issue, trustContributors),
		stalenessSignal(issue.UpdatedAt, now),
		bodyQualitySignal(issue.Body),
		activitySignal(issue.Comments),
		milestoneSignal(""),
		labelPrioritySignal(issue.Labels),
	}
}

func sig(name string, score float64, reason string) domain.SignalScore {
	return domain.SignalScore{Name: name, Score: score, Reason: reason}
}

func ciStatusSignal(status string) domain.SignalScore {
	switch status {
	case "success":
		return sig("ci_status", 100, "CI passed")
	case "pending":
		return sig("ci_status", 50, "CI pending")
	case "failure":
		return sig("ci_status", 10, "CI failed")
	default:
		return sig("ci_status", 40, "CI status unknown")
	}
}

func diffSizeSignal(total int) domain.SignalScore {
	switch {
	case total < 5:
		return sig("diff_size", 20, "trivial diff")
	case total < 50:
		return sig("diff_size", 70, "small diff")
	case total < 500:
		return sig("diff_size", 100, "well-scoped diff")
	case total < 2000:
		return sig("diff_size", 60, "large diff")
	default:
		return sig("diff_size", 30, "very large diff")
	}
}

func commitQualitySignal(title string) domain.SignalScore {
	if conventionalPrefix.MatchString(title) {
		return sig("commit_quality", 90, "conventional commit prefix")
	}
	return sig("commit_quality", 50, "no conventional commit prefix")
}

func contributorSignal(assoc, login string, reputation map[string]float64) domain.SignalScore {
	var base float64
	switch assoc {
	case "OWNER":
		base = 100
	case "MEMBER":
		base = 90
	case "COLLABORATOR":
		base = 85
	case "CONTRIBUTOR":
		base = 70
	case "FIRST_TIME_CONTRIBUTOR", "FIRST_TIMER":
		base = 40
	default:
		base = 30
	}
	if rep, ok := reputation[login]; ok {
		blended := 0.7*base + 0.3*rep
		return sig("contributor", blended, "association blended with reputation score")
	}
	return sig("contributor", base, "based on author association "+assoc)
}

func issueRefSignal(hasRef bool) domain.SignalScore {
	if hasRef {
		return sig("issue_ref", 90, "references a tracked issue")
	}
	return sig("issue_ref", 30, "no issue reference")
}

func spamSignal(pr domain.PRRecord, trustContributors bool) domain.SignalScore {
	if trustContributors && (pr.AuthorAssoc == "OWNER" || pr.AuthorAssoc == "MEMBER" || pr.AuthorAssoc == "COLLABORATOR") {
		return sig("spam", 100, "trusted contributor exemption")
	}

	var points float64
	var reasons []string
	total := pr.Additions + pr.Deletions
	if total < 3 {
		points += 2
		reasons = append(reasons, "diff under 3 lines")
	} else if total < 5 {
		points++
		reasons = append(reasons, "diff under 5 lines")
	}
	if len(pr.LinkedIssues) == 0 {
		points++
		reasons = append(reasons, "no issue reference")
	}
	if len(strings.TrimSpace(pr.Body)) < 20 {
		points++
		reasons = append(reasons, "body under 20 characters")
	}
	if isDocsOnly(pr.FilePaths) && total < 10 {
		points++
		reasons = append(reasons, "trivial docs-only change")
	}

	score := 100 - 25*points
	if score < 0 {
		score = 0
	}
	reason := "no spam indicators"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return sig("spam", score, reason)
}

func spamSignalForIssue(issue domain.IssueRecord, trustContributors bool) domain.SignalScore {
	if trustContributors && (issue.AuthorAssoc == "OWNER" || issue.AuthorAssoc == "MEMBER" || issue.AuthorAssoc == "COLLABORATOR") {
		return sig("spam", 100, "trusted contributor exemption")
	}
	var points float64
	var reasons []string
	if len(strings.TrimSpace(issue.Body)) < 20 {
		points++
		reasons = append(reasons, "body under 20 characters")
	}
	score := 100 - 25*points
	if score < 0 {
		score = 0
	}
	reason := "no spam indicators"
	if len(reasons) > 0 {
		reason = strings.Join(reasons, "; ")
	}
	return sig("spam", score, reason)
}

func isDocsOnly(paths []string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, p := range paths {
		lower := strings.ToLower(p)
		if !strings.HasSuffix(lower, ".md") && !strings.Contains(lower, "docs/") {
			return false
		}
	}
	return true
}

func testCoverageSignal(paths []string) domain.SignalScore {
	hasTest := false
	docsOrConfigOnly := true
	for _, p := range paths {
		if testFilePattern.MatchString(p) {
			hasTest = true
		}
		lower := strings.ToLower(p)
		if !strings.HasSuffix(lower, ".md") && !strings.Contains(lower, "docs/") && !apiOrConfigPattern.MatchString(lower) {
			docsOrConfigOnly = false
		}
	}
	switch {
	case hasTest:
		return sig("test_coverage", 90, "includes test file changes")
	case docsOrConfigOnly:
		return sig("test_coverage", 60, "docs or config only, tests not applicable")
	default:
		return sig("test_coverage", 20, "no test file changes")
	}
}

func stalenessSignal(updatedAt, now time.Time) domain.SignalScore {
	age := now.Sub(updatedAt)
	switch {
	case age < 7*24*time.Hour:
		return sig("staleness", 100, "updated within 7 days")
	case age <= 30*24*time.Hour:
		return sig("staleness", 70, "updated within 30 days")
	case age <= 90*24*time.Hour:
		return sig("staleness", 40, "updated within 90 days")
	default:
		return sig("staleness", 15, "stale for over 90 days")
	}
}

func mergeabilitySignal(state string) domain.SignalScore {
	switch state {
	case "MERGEABLE":
		return sig("mergeability", 100, "mergeable")
	case "CONFLICTING":
		return sig("mergeability", 10, "has merge conflicts")
	default:
		return sig("mergeability", 50, "mergeability unknown")
	}
}

func reviewStatusSignal(state string, reviewCount int) domain.SignalScore {
	var base float64
	switch state {
	case "approved":
		base = 100
	case "changes_requested":
		base = 30
	case "commented":
		base = 60
	default:
		base = 40
	}
	if reviewCount >= 2 {
		base += 10
	}
	if base > 100 {
		base = 100
	}
	return sig("review_status", base, "review state "+orDefault(state, "none"))
}

func bodyQualitySignal(body string) domain.SignalScore {
	length := len(body)
	var base float64
	switch {
	case length > 500:
		base = 90
	case length >= 200:
		base = 70
	case length >= 50:
		base = 50
	default:
		base = 20
	}
	if strings.Contains(body, "- [ ]") || strings.Contains(body, "- [x]") {
		base += 10
	}
	if strings.Contains(body, "![") {
		base += 10
	}
	if base > 100 {
		base = 100
	}
	return sig("body_quality", base, "body length and structure")
}

func activitySignal(comments int) domain.SignalScore {
	switch {
	case comments >= 5:
		return sig("activity", 90, "active discussion")
	case comments >= 2:
		return sig("activity", 70, "some discussion")
	case comments == 1:
		return sig("activity", 50, "one comment")
	default:
		return sig("activity", 30, "no discussion")
	}
}

func breakingChangeSignal(title string, deletions int, paths []string) domain.SignalScore {
	lower := strings.ToLower(title)
	breaks := strings.Contains(lower, "breaking") || strings.Contains(title, "!:") || deletions > 100
	if !breaks {
		for _, p := range paths {
			if apiOrConfigPattern.MatchString(strings.ToLower(p)) {
				breaks = true
				break
			}
		}
	}
	if breaks {
		return sig("breaking_change", 40, "touches API or config, or marked breaking")
	}
	return sig("breaking_change", 80, "no breaking indicators")
}

func draftStatusSignal(draft bool) domain.SignalScore {
	if draft {
		return sig("draft_status", 10, "draft")
	}
	return sig("draft_status", 90, "ready for review")
}

func milestoneSignal(milestone string) domain.SignalScore {
	if milestone != "" {
		return sig("milestone", 90, "milestone assigned")
	}
	return sig("milestone", 40, "no milestone")
}

func labelPrioritySignal(labels []string) domain.SignalScore {
	hasPriority := false
	for _, l := range labels {
		if priorityLabels[strings.ToLower(l)] {
			hasPriority = true
			break
		}
	}
	switch {
	case hasPriority:
		return sig("label_priority", 95, "carries a priority label")
	case len(labels) > 0:
		return sig("label_priority", 50, "labeled but no priority label")
	default:
		return sig("label_priority", 30, "unlabeled")
	}
}

func codeownersSignal(author string, matched []string, configured bool) domain.SignalScore {
	if !configured {
		return sig("codeowners", 40, "no CODEOWNERS file")
	}
	for _, owner := range matched {
		if strings.EqualFold(owner, author) || strings.EqualFold(owner, "@"+author) {
			return sig("codeowners", 95, "author is a matched code owner")
		}
	}
	if len(matched) > 0 {
		return sig("codeowners", 80, "changed files have matched owners")
	}
	return sig("codeowners", 40, "no CODEOWNERS match")
}

func requestedReviewersSignal(reviewers []string) domain.SignalScore {
	if len(reviewers) > 0 {
		return sig("requested_reviewers", 80, "reviewers requested")
	}
	return sig("requested_reviewers", 40, "no reviewers requested")
}

// scopeCoherenceSignal scores how concentrated the changed files are:
// all files sharing one top-level directory scores higher than files
// scattered across many unrelated directories.
func scopeCoherenceSignal(paths []string) domain.SignalScore {
	if len(paths) == 0 {
		return sig("scope_coherence", 50, "no file list available")
	}
	dirs := make(map[string]bool)
	for _, p := range paths {
		dirs[path.Dir(p)] = true
	}
	ratio := float64(len(dirs)) / float64(len(paths))
	score := 100 - ratio*70
	if score < 20 {
		score = 20
	}
	return sig("scope_coherence", score, "directory concentration of changed files")
}

func complexitySignal(commits, files int) domain.SignalScore {
	raw := commits*5 + files*3
	score := 100 - float64(raw)
	if score < 10 {
		score = 10
	}
	if score > 100 {
		score = 100
	}
	return sig("complexity", score, "scaled by commit and file count")
}

var intentScores = map[string]float64{
	"bugfix":     90,
	"feature":    85,
	"refactor":   60,
	"dependency": 35,
	"docs":       30,
	"chore":      25,
}

func intentSignal(intent string) domain.SignalScore {
	score, ok := intentScores[intent]
	if !ok {
		score = 50
	}
	return sig("intent", score, "classified intent "+orDefault(intent, "unknown"))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
