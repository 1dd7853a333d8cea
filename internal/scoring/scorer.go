// Package scoring implements the 20-signal weighted composite scorer:
// a baseline weight per signal, an intent-aware profile that re-weights
// and renormalizes them, and an optional LLM risk blend on top of the
// heuristic aggregate.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/mahsumaktas/treliq/internal/observability"
)

const (
	spamThreshold       = 25.0
	heuristicBlendShare = 0.4
	llmBlendShare       = 0.6
)

// IntentClassifier is the subset of internal/intent.Classifier the
// scorer depends on, kept narrow to avoid an import cycle.
type IntentClassifier interface {
	ClassifyPR(ctx context.Context, pr domain.PRRecord) (string, error)
	ClassifyIssue(ctx context.Context, issue domain.IssueRecord) (string, error)
}

// Scorer produces ScoredItems from raw PR and issue records.
type Scorer struct {
	provider          llm.Adapter // optional; nil disables LLM blending
	classifier        IntentClassifier
	trustContributors bool
	now               func() time.Time
	logger            observability.Logger
	metrics           *observability.Metrics

	mu         sync.RWMutex
	reputation map[string]float64
}

// New constructs a Scorer. provider and classifier may be nil to run
// heuristic-only; logger and metrics may be nil to silently discard.
func New(provider llm.Adapter, classifier IntentClassifier, trustContributors bool, logger observability.Logger, metrics *observability.Metrics) *Scorer {
	return &Scorer{
		provider:          provider,
		classifier:        classifier,
		trustContributors: trustContributors,
		now:               time.Now,
		logger:            logger,
		metrics:           metrics,
		reputation:        make(map[string]float64),
	}
}

// SetReputation pre-populates a per-login reputation score consulted
// only by the contributor signal.
func (s *Scorer) SetReputation(login string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reputation[login] = score
}

func (s *Scorer) reputationSnapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]float64, len(s.reputation))
	for k, v := range s.reputation {
		out[k] = v
	}
	return out
}

// ScorePR scores a single pull request.
func (s *Scorer) ScorePR(ctx context.Context, pr domain.PRRecord) (domain.ScoredItem, error) {
	intent := ""
	if s.classifier != nil {
		classified, err := s.classifier.ClassifyPR(ctx, pr)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn(ctx, "intent classification failed, scoring without intent weighting", "repo", pr.Repo, "number", pr.Number, "error", err)
			}
		} else {
			intent = classified
		}
	}

	signals := signalsForPR(pr, s.now(), s.reputationSnapshot(), s.trustContributors)
	signals = append(signals, intentSignal(intent))
	applyWeights(signals, intent)

	item := domain.ScoredItem{
		Kind:    "pr",
		Number:  pr.Number,
		Repo:    pr.Repo,
		Signals: signals,
		Intent:  intent,
		PR:      &pr,
	}
	s.finalizeSpam(&item)

	heuristic := item.HeuristicAggregate()
	item.TotalScore = math.Round(heuristic)

	if s.provider != nil {
		s.blendLLM(ctx, &item, heuristic, rubricForPR(pr, item))
	}

	return item, nil
}

// ScoreIssue scores a single issue.
func (s *Scorer) ScoreIssue(ctx context.Context, issue domain.IssueRecord) (domain.ScoredItem, error) {
	intent := ""
	if s.classifier != nil {
		classified, err := s.classifier.ClassifyIssue(ctx, issue)
		if err != nil {
			if s.logger != nil {
				s.logger.Warn(ctx, "intent classification failed, scoring without intent weighting", "repo", issue.Repo, "number", issue.Number, "error", err)
			}
		} else {
			intent = classified
		}
	}

	signals := signalsForIssue(issue, s.now(), s.reputationSnapshot(), s.trustContributors)
	signals = append(signals, intentSignal(intent))
	applyWeights(signals, intent)

	item := domain.ScoredItem{
		Kind:    "issue",
		Number:  issue.Number,
		Repo:    issue.Repo,
		Signals: signals,
		Intent:  intent,
		Issue:   &issue,
	}
	s.finalizeSpam(&item)

	heuristic := item.HeuristicAggregate()
	item.TotalScore = math.Round(heuristic)

	if s.provider != nil {
		s.blendLLM(ctx, &item, heuristic, rubricForIssue(issue, item))
	}

	return item, nil
}

func (s *Scorer) finalizeSpam(item *domain.ScoredItem) {
	spamSig, ok := item.SignalByName("spam")
	if !ok {
		return
	}
	item.IsSpam = spamSig.Score < spamThreshold
	if item.IsSpam {
		item.SpamReasons = strings.Split(spamSig.Reason, "; ")
	}
}

func applyWeights(signals []domain.SignalScore, intent string) {
	weights := weightsForIntent(intent)
	for i := range signals {
		signals[i].Weight = weights[signals[i].Name]
	}
}

// llmJudgment is the parsed shape of the LLM scoring rubric response.
type llmJudgment struct {
	Score  float64 `json:"score"`
	Risk   string  `json:"risk"`
	Reason string  `json:"reason"`
}

func (s *Scorer) blendLLM(ctx context.Context, item *domain.ScoredItem, heuristic float64, prompt string) {
	resp, err := s.provider.GenerateText(ctx, llm.TextRequest{Prompt: prompt, Temperature: 0, MaxTokens: 400})
	if err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, "llm score blend failed, retaining heuristic-only score", "repo", item.Repo, "number", item.Number, "error", err)
		}
		return
	}

	var judgment llmJudgment
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &judgment); err != nil {
		if s.logger != nil {
			s.logger.Warn(ctx, "llm score response unparsable, retaining heuristic-only score", "repo", item.Repo, "number", item.Number, "error", err)
		}
		return
	}

	judgment.Score = clamp(judgment.Score, 0, 100)
	if judgment.Risk != "low" && judgment.Risk != "medium" && judgment.Risk != "high" {
		judgment.Risk = "medium"
	}

	item.LLMScore = judgment.Score
	item.LLMRisk = judgment.Risk
	item.LLMReason = judgment.Reason
	item.TotalScore = math.Round(heuristicBlendShare*heuristic + llmBlendShare*judgment.Score)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// extractJSON trims a model response down to its outermost JSON object,
// tolerating surrounding prose or markdown code fences.
func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}

func rubricForPR(pr domain.PRRecord, item domain.ScoredItem) string {
	return fmt.Sprintf(
		"Assess the risk of merging this pull request. Title: %q. Additions: %d, Deletions: %d, Files: %d. Heuristic score so far: %.1f. "+
			`Respond with JSON only: {"score": number 0-100, "risk": "low"|"medium"|"high", "reason": string}.`,
		pr.Title, pr.Additions, pr.Deletions, pr.ChangedFiles, item.HeuristicAggregate(),
	)
}

func rubricForIssue(issue domain.IssueRecord, item domain.ScoredItem) string {
	return fmt.Sprintf(
		"Assess the priority of this issue for maintainers. Title: %q. Comments: %d. Heuristic score so far: %.1f. "+
			`Respond with JSON only: {"score": number 0-100, "risk": "low"|"medium"|"high", "reason": string}.`,
		issue.Title, issue.Comments, item.HeuristicAggregate(),
	)
}

// ScoreManyPRs scores a batch of PRs concurrently, bounded by gate.
// A per-item failure is logged and the item excluded from the result.
func (s *Scorer) ScoreManyPRs(ctx context.Context, prs []domain.PRRecord, gate *concurrency.Gate) []domain.ScoredItem {
	results := make([]domain.ScoredItem, len(prs))
	ok := make([]bool, len(prs))

	var wg sync.WaitGroup
	for i, pr := range prs {
		i, pr := i, pr
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(ctx, func() error {
				item, scoreErr := s.ScorePR(ctx, pr)
				if scoreErr != nil {
					return scoreErr
				}
				results[i] = item
				ok[i] = true
				return nil
			})
			if err != nil && s.logger != nil {
				s.logger.Warn(ctx, "scoring pull request failed, excluding from results", "repo", pr.Repo, "number", pr.Number, "error", err)
			}
		}()
	}
	wg.Wait()

	out := make([]domain.ScoredItem, 0, len(prs))
	for i, item := range results {
		if ok[i] {
			out = append(out, item)
		}
	}
	return out
}

// ScoreManyIssues is ScoreManyPRs' counterpart for issues.
func (s *Scorer) ScoreManyIssues(ctx context.Context, issues []domain.IssueRecord, gate *concurrency.Gate) []domain.ScoredItem {
	results := make([]domain.ScoredItem, len(issues))
	ok := make([]bool, len(issues))

	var wg sync.WaitGroup
	for i, issue := range issues {
		i, issue := i, issue
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := gate.Do(ctx, func() error {
				item, scoreErr := s.ScoreIssue(ctx, issue)
				if scoreErr != nil {
					return scoreErr
				}
				results[i] = item
				ok[i] = true
				return nil
			})
			if err != nil && s.logger != nil {
				s.logger.Warn(ctx, "scoring issue failed, excluding from results", "repo", issue.Repo, "number", issue.Number, "error", err)
			}
		}()
	}
	wg.Wait()

	out := make([]domain.ScoredItem, 0, len(issues))
	for i, item := range results {
		if ok[i] {
			out = append(out, item)
		}
	}
	return out
}
