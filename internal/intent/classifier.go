// Package intent classifies a pull request or issue into one of a
// closed set of intents (bugfix, feature, refactor, dependency, docs,
// chore), trying progressively fuzzier signals: a conventional commit
// prefix on the title, an LLM opinion, then a keyword heuristic.
package intent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm"
)

// Result is a classification with its confidence and the stage that
// produced it.
type Result struct {
	Intent     string
	Confidence float64
	Reason     string
}

var validIntents = map[string]bool{
	"bugfix": true, "feature": true, "refactor": true,
	"dependency": true, "docs": true, "chore": true,
}

var conventionalPrefix = regexp.MustCompile(`^(\w+)(\(([^)]*)\))?!?:`)

var conventionalTypeMap = map[string]string{
	"fix": "bugfix", "hotfix": "bugfix",
	"feat": "feature", "feature": "feature",
	"refactor": "refactor", "perf": "refactor",
	"docs": "docs", "doc": "docs",
	"ci": "chore", "build": "chore", "style": "chore", "test": "chore", "chore": "chore",
}

var dependencyScopePattern = regexp.MustCompile(`(?i)^(deps|dependencies)$`)

var dependencyKeywords = regexp.MustCompile(`(?i)\b(bump|upgrade|dependency|dependencies|package\.json|go\.mod|go\.sum|requirements\.txt|Gemfile)\b`)
var dependencyFilePattern = regexp.MustCompile(`(?i)(go\.mod|go\.sum|package\.json|package-lock\.json|yarn\.lock|requirements\.txt|Gemfile\.lock|Cargo\.lock)$`)
var bugKeywords = regexp.MustCompile(`(?i)\b(fix|bug|crash|error|issue|resolve|patch|hotfix)\b`)
var refactorKeywords = regexp.MustCompile(`(?i)\b(refactor|restructure|reorganize|cleanup|simplify|extract|move)\b`)

// Classifier runs the three-stage cascade. provider may be nil, in
// which case stage 2 is skipped and stage 3 decides.
type Classifier struct {
	provider llm.Adapter
}

func New(provider llm.Adapter) *Classifier {
	return &Classifier{provider: provider}
}

// ClassifyPR runs the cascade against a pull request's title, body, and
// changed file paths.
func (c *Classifier) ClassifyPR(ctx context.Context, pr domain.PRRecord) (string, error) {
	result := c.classify(ctx, pr.Title, pr.Body, pr.FilePaths)
	return result.Intent, nil
}

// ClassifyIssue runs the cascade against an issue's title and body.
// Issues carry no file list, so dependency-file detection is skipped.
func (c *Classifier) ClassifyIssue(ctx context.Context, issue domain.IssueRecord) (string, error) {
	result := c.classify(ctx, issue.Title, issue.Body, nil)
	return result.Intent, nil
}

// Classify runs the full cascade and returns the stage's confidence and
// reason alongside the intent, for callers that want the detail (the
// scoring.IntentClassifier port only needs the bare intent string).
func (c *Classifier) Classify(ctx context.Context, title, body string, filePaths []string) Result {
	return c.classify(ctx, title, body, filePaths)
}

func (c *Classifier) classify(ctx context.Context, title, body string, filePaths []string) Result {
	if rawType, intent, scope, ok := matchConventional(title); ok {
		// spec.md §4.6 scopes the deps override to literally "chore" or
		// "build" typed commits, not every type that maps to "chore"
		// (ci/style/test also do) — check the raw matched type, not
		// the post-mapping intent, so "test(deps): bump x" stays chore.
		if (rawType == "chore" || rawType == "build") && dependencyScopePattern.MatchString(scope) {
			intent = "dependency"
		}
		return Result{Intent: intent, Confidence: 1.0, Reason: "conventional commit prefix"}
	}

	if c.provider != nil {
		if result, ok := c.classifyWithLLM(ctx, title, body); ok {
			return result
		}
	}

	return classifyByKeyword(title, body, filePaths)
}

func matchConventional(title string) (rawType, intent, scope string, ok bool) {
	m := conventionalPrefix.FindStringSubmatch(strings.TrimSpace(title))
	if m == nil {
		return "", "", "", false
	}
	raw := strings.ToLower(m[1])
	mapped, known := conventionalTypeMap[raw]
	if !known {
		return "", "", "", false
	}
	return raw, mapped, m[3], true
}

type llmClassification struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

func (c *Classifier) classifyWithLLM(ctx context.Context, title, body string) (Result, bool) {
	prompt := classifyPrompt(title, body)
	resp, err := c.provider.GenerateText(ctx, llm.TextRequest{Prompt: prompt, Temperature: 0, MaxTokens: 200})
	if err != nil {
		return Result{}, false
	}

	var parsed llmClassification
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		return Result{}, false
	}
	if !validIntents[parsed.Intent] {
		return Result{}, false
	}

	confidence := parsed.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = 0.7
	}
	return Result{Intent: parsed.Intent, Confidence: confidence, Reason: parsed.Reason}, true
}

func classifyPrompt(title, body string) string {
	return "Classify this pull request's intent as exactly one of: bugfix, feature, refactor, dependency, docs, chore.\n" +
		"Title: " + title + "\nBody: " + truncate(body, 500) + "\n" +
		`Respond with JSON only: {"intent": string, "confidence": number 0-1, "reason": string}.`
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func classifyByKeyword(title, body string, filePaths []string) Result {
	combined := title + " " + body

	if dependencyKeywords.MatchString(combined) || hasDependencyFile(filePaths) {
		return Result{Intent: "dependency", Confidence: 0.6, Reason: "dependency keyword or manifest file touched"}
	}
	if len(filePaths) > 0 && allDocsFiles(filePaths) {
		return Result{Intent: "docs", Confidence: 0.7, Reason: "all changed files are documentation"}
	}
	if bugKeywords.MatchString(combined) {
		return Result{Intent: "bugfix", Confidence: 0.6, Reason: "bug-related keyword found"}
	}
	if refactorKeywords.MatchString(combined) {
		return Result{Intent: "refactor", Confidence: 0.5, Reason: "refactor-related keyword found"}
	}
	return Result{Intent: "feature", Confidence: 0.5, Reason: "no stronger signal found, defaulting to feature"}
}

func hasDependencyFile(paths []string) bool {
	for _, p := range paths {
		if dependencyFilePattern.MatchString(p) {
			return true
		}
	}
	return false
}

func allDocsFiles(paths []string) bool {
	for _, p := range paths {
		lower := strings.ToLower(p)
		if !strings.HasSuffix(lower, ".md") && !strings.Contains(lower, "docs/") {
			return false
		}
	}
	return true
}
