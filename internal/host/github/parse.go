package github

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// strongIssueRefPattern matches GitHub's conventional closing phrases
// ("fixes #12", "Closes: #7", "related to #3", "refs #9") immediately
// followed by an issue number, case-insensitively.
var strongIssueRefPattern = regexp.MustCompile(`(?i)\b(?:close[sd]?|fix(?:e[sd])?|resolve[sd]?|relate[sd]?\s+to|addresses|refs?)\b:?\s*#(\d+)\b`)

// bareIssueRefPattern matches any "#12"-shaped mention, used only as a
// fallback when no strong keyword match exists in the text.
var bareIssueRefPattern = regexp.MustCompile(`#(\d+)\b`)

// ExtractIssueRefs returns every issue number referenced in text. Strong
// keyword-prefixed mentions are tried first; only when none are found
// does it fall back to bare "#12" mentions anywhere in the text, which
// may yield duplicates (deliberate, per how often an issue is actually
// referenced). A number is only kept when 0 < n < 100000.
func ExtractIssueRefs(text string) []int {
	if refs := extractRefs(strongIssueRefPattern, text); len(refs) > 0 {
		return refs
	}
	return extractRefs(bareIssueRefPattern, text)
}

func extractRefs(pattern *regexp.Regexp, text string) []int {
	matches := pattern.FindAllStringSubmatch(text, -1)
	refs := make([]int, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 || n >= 100000 {
			continue
		}
		refs = append(refs, n)
	}
	return refs
}

// CodeownersRule is a single CODEOWNERS entry: a glob pattern mapped to
// its owning handles.
type CodeownersRule struct {
	Pattern string
	Owners  []string
}

// ParseCodeowners parses a CODEOWNERS file body into ordered rules.
func ParseCodeowners(body string) []CodeownersRule {
	var rules []CodeownersRule
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		rules = append(rules, CodeownersRule{Pattern: fields[0], Owners: fields[1:]})
	}
	return rules
}

// OwnersFor returns the union of owners from every rule whose pattern
// matches filePath, per spec.md's literal glob algorithm: there is no
// "most specific" or "last match wins" precedence among rules — every
// matching rule contributes its owners, deduplicated, in rule order.
func OwnersFor(rules []CodeownersRule, filePath string) []string {
	filePath = strings.TrimPrefix(filePath, "/")

	seen := make(map[string]bool)
	var owners []string
	for _, rule := range rules {
		re, err := globToRegex(rule.Pattern)
		if err != nil || !re.MatchString(filePath) {
			continue
		}
		for _, owner := range rule.Owners {
			if !seen[owner] {
				seen[owner] = true
				owners = append(owners, owner)
			}
		}
	}
	return owners
}

// globToRegex translates a CODEOWNERS glob pattern into an anchored
// regular expression using spec.md's literal substitution table:
// "*" becomes ".*", "?" becomes ".", "." becomes "\.". Every other
// character, including "/", is kept literal. A leading "/" anchoring
// the pattern to the repo root is stripped before translation, since
// changed-file paths never carry one.
func globToRegex(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimPrefix(pattern, "/")

	var sb strings.Builder
	sb.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteString(".")
		case '.':
			sb.WriteString(`\.`)
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteByte('$')
	return regexp.Compile(sb.String())
}
