// Package orchestrator drives a single repository scan end to end:
// cache load, codeowners assignment, reputation lookup, scoring,
// concurrent dedup and vision checks, ranking, and persistence.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mahsumaktas/treliq/internal/cache"
	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/database"
	"github.com/mahsumaktas/treliq/internal/dedup"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/host/github"
	"github.com/mahsumaktas/treliq/internal/observability"
	"github.com/mahsumaktas/treliq/internal/redaction"
	"github.com/mahsumaktas/treliq/internal/reputation"
	"github.com/mahsumaktas/treliq/internal/scoring"
	"github.com/mahsumaktas/treliq/internal/vision"
)

// HostPort is the subset of the GitHub client the orchestrator drives
// directly (reputation and action execution use their own narrower
// ports).
type HostPort interface {
	ListOpenPullRequestsLite(ctx context.Context, owner, repo string) ([]github.LightPR, error)
	ListOpenPullRequests(ctx context.Context, owner, repo string) ([]domain.PRRecord, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (domain.PRRecord, error)
	ListOpenIssues(ctx context.Context, owner, repo string) ([]domain.IssueRecord, error)
	GetCodeowners(ctx context.Context, owner, repo string) ([]github.CodeownersRule, error)
}

// Config bounds a single scan.
type Config struct {
	Owner             string
	Repo              string
	TrustContributors bool
	ProviderName      string
	CachePath         string
	UseCache          bool
	RelatedThreshold  float64
	BruteForceCutover int
	VerifyDupesWithLLM bool
}

// Result is what a scan produces for a single repository.
type Result struct {
	Repo              string
	ScannedAt         time.Time
	TotalPRs          int
	SpamCount         int
	DuplicateClusters []domain.DedupCluster
	RankedPRs         []domain.ScoredItem
	Summary           string
	ScanID            string
}

// Orchestrator wires the per-scan pipeline together.
type Orchestrator struct {
	host       HostPort
	scorer     *scoring.Scorer
	dedup      *dedup.Engine
	vision     *vision.Checker
	reputation *reputation.Probe
	cache      *cache.Cache
	db         *database.Store
	logger     observability.Logger
	gate       *concurrency.Gate
	now        func() time.Time
	redactor   *redaction.Engine
}

func New(
	host HostPort,
	scorer *scoring.Scorer,
	dedupEngine *dedup.Engine,
	visionChecker *vision.Checker,
	reputationProbe *reputation.Probe,
	cacheStore *cache.Cache,
	db *database.Store,
	logger observability.Logger,
	gate *concurrency.Gate,
) *Orchestrator {
	if gate == nil {
		gate = concurrency.NewGate(8, 2)
	}
	return &Orchestrator{
		host: host, scorer: scorer, dedup: dedupEngine, vision: visionChecker,
		reputation: reputationProbe, cache: cacheStore, db: db, logger: logger,
		gate: gate, now: time.Now, redactor: redaction.NewEngine(),
	}
}

// Scan runs the full nine-step pipeline for one repository.
func (o *Orchestrator) Scan(ctx context.Context, cfg Config) (Result, error) {
	repo := cfg.Owner + "/" + cfg.Repo
	scanID := uuid.NewString()
	fingerprint := domain.ConfigFingerprint(cfg.TrustContributors, cfg.ProviderName)

	var cached *cache.File
	if cfg.UseCache && o.cache != nil && cfg.CachePath != "" {
		cached = o.cache.Load(cfg.CachePath, repo, fingerprint)
	}

	codeowners, err := o.host.GetCodeowners(ctx, cfg.Owner, cfg.Repo)
	if err != nil && o.logger != nil {
		o.logger.Warn(ctx, "codeowners fetch failed, proceeding without ownership signals", "scan_id", scanID, "repo", repo, "error", err)
	}

	prs, cacheHits, err := o.fetchPRs(ctx, cfg, repo, scanID, cached)
	if err != nil {
		return Result{}, err
	}

	for i := range prs {
		assignCodeowners(&prs[i], codeowners)
	}

	issues, err := o.host.ListOpenIssues(ctx, cfg.Owner, cfg.Repo)
	if err != nil && o.logger != nil {
		o.logger.Warn(ctx, "issue fetch failed, scan will only cover PRs", "scan_id", scanID, "repo", repo, "error", err)
	}

	o.redactBodies(prs, issues)

	if o.reputation != nil && len(prs) > 0 {
		logins := uniqueAuthors(prs)
		reps := o.reputation.FetchMany(ctx, logins, o.gate)
		for login, score := range reps {
			o.scorer.SetReputation(login, score)
		}
	}

	scoredPRs := o.scorer.ScoreManyPRs(ctx, prs, o.gate)
	scoredIssues := o.scorer.ScoreManyIssues(ctx, issues, o.gate)

	items := append(scoredPRs, scoredIssues...)
	items = append(items, cacheHits...)

	clusters := o.runDedupAndVision(ctx, items)

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].TotalScore != items[j].TotalScore {
			return items[i].TotalScore > items[j].TotalScore
		}
		return items[i].Number < items[j].Number
	})

	spamCount := 0
	for _, it := range items {
		if it.IsSpam {
			spamCount++
		}
	}

	result := Result{
		Repo:              repo,
		ScannedAt:         o.now(),
		TotalPRs:          len(prs),
		SpamCount:         spamCount,
		DuplicateClusters: clusters,
		RankedPRs:         items,
		Summary:           summarize(len(items), spamCount, len(clusters)),
		ScanID:            scanID,
	}

	o.persist(ctx, cfg, repo, scanID, fingerprint, result)

	return result, nil
}

// fetchPRs implements step 3: on a cache hit, fetch the lightweight
// list and split into cached (reused verbatim) and to-fetch; otherwise
// fetch full PR details for everything.
func (o *Orchestrator) fetchPRs(ctx context.Context, cfg Config, repo, scanID string, cached *cache.File) ([]domain.PRRecord, []domain.ScoredItem, error) {
	if cached == nil {
		prs, err := o.host.ListOpenPullRequests(ctx, cfg.Owner, cfg.Repo)
		return prs, nil, err
	}

	lite, err := o.host.ListOpenPullRequestsLite(ctx, cfg.Owner, cfg.Repo)
	if err != nil {
		return nil, nil, err
	}

	var toFetch []int
	var cacheHits []domain.ScoredItem
	for _, l := range lite {
		if entry, ok := cached.Hit(l.Number, l.UpdatedAt, l.HeadSHA); ok {
			cacheHits = append(cacheHits, entry.Score)
			continue
		}
		toFetch = append(toFetch, l.Number)
	}

	prs := make([]domain.PRRecord, 0, len(toFetch))
	for _, number := range toFetch {
		pr, err := o.host.GetPullRequest(ctx, cfg.Owner, cfg.Repo, number)
		if err != nil {
			if o.logger != nil {
				o.logger.Warn(ctx, "full PR fetch failed, excluding from scan", "scan_id", scanID, "repo", repo, "number", number, "error", err)
			}
			continue
		}
		prs = append(prs, pr)
	}
	return prs, cacheHits, nil
}

// runDedupAndVision implements step 7: dedup and vision run
// concurrently; dedup operates on every scored item, vision only on
// those still unchecked.
func (o *Orchestrator) runDedupAndVision(ctx context.Context, items []domain.ScoredItem) []domain.DedupCluster {
	var (
		wg       sync.WaitGroup
		clusters []domain.DedupCluster
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		if o.dedup == nil {
			return
		}
		clusters = o.dedup.FindDuplicates(ctx, items)
	}()
	go func() {
		defer wg.Done()
		if o.vision == nil {
			return
		}
		o.vision.CheckMany(ctx, items, o.gate)
	}()
	wg.Wait()

	return clusters
}

func (o *Orchestrator) persist(ctx context.Context, cfg Config, repo, scanID, fingerprint string, result Result) {
	if o.cache != nil && cfg.UseCache && cfg.CachePath != "" {
		entries := make(map[int]domain.CacheEntry, len(result.RankedPRs))
		for _, item := range result.RankedPRs {
			updatedAt := updatedAtOf(item)
			headSHA := headSHAOf(item)
			entries[item.Number] = domain.CacheEntry{
				Number: item.Number, HeadSHA: headSHA, UpdatedAt: updatedAt,
				ConfigFingerprint: fingerprint, Score: item, Embedding: item.Embedding,
			}
		}
		file := cache.File{Repo: repo, LastScan: result.ScannedAt.Format(time.RFC3339), ConfigFingerprint: fingerprint, Items: entries}
		if err := o.cache.Save(cfg.CachePath, file); err != nil && o.logger != nil {
			o.logger.Warn(ctx, "cache save failed", "scan_id", scanID, "repo", repo, "error", err)
		}
	}

	if o.db == nil {
		return
	}
	repoID, err := o.db.UpsertRepository(ctx, cfg.Owner, cfg.Repo, result.ScannedAt)
	if err != nil {
		if o.logger != nil {
			o.logger.Warn(ctx, "db repository upsert failed, result still returned", "scan_id", scanID, "repo", repo, "error", err)
		}
		return
	}
	for _, item := range result.RankedPRs {
		if item.Kind != "pr" {
			continue
		}
		if err := o.db.SavePRResult(ctx, repoID, item, fingerprint, result.ScannedAt); err != nil && o.logger != nil {
			o.logger.Warn(ctx, "db pr upsert failed", "scan_id", scanID, "repo", repo, "number", item.Number, "error", err)
		}
	}
	if err := o.db.AppendScanHistory(ctx, repoID, result.ScannedAt, result.TotalPRs, result.SpamCount, len(result.DuplicateClusters), fingerprint); err != nil && o.logger != nil {
		o.logger.Warn(ctx, "db scan history append failed", "scan_id", scanID, "repo", repo, "error", err)
	}
}

func assignCodeowners(pr *domain.PRRecord, rules []github.CodeownersRule) {
	pr.CodeownersConfigured = len(rules) > 0
	if len(rules) == 0 {
		return
	}
	seen := map[string]bool{}
	var owners []string
	for _, path := range pr.FilePaths {
		for _, owner := range github.OwnersFor(rules, path) {
			if !seen[owner] {
				seen[owner] = true
				owners = append(owners, owner)
			}
		}
	}
	pr.MatchedOwners = owners
}

// redactBodies scrubs tokens and credentials out of PR and issue bodies
// in place, before that text reaches the scorer, classifier, vision
// checker, or dedup engine's prompts.
func (o *Orchestrator) redactBodies(prs []domain.PRRecord, issues []domain.IssueRecord) {
	if o.redactor == nil {
		return
	}
	for i := range prs {
		if clean, err := o.redactor.Redact(prs[i].Body); err == nil {
			prs[i].Body = clean
		}
	}
	for i := range issues {
		if clean, err := o.redactor.Redact(issues[i].Body); err == nil {
			issues[i].Body = clean
		}
	}
}

func uniqueAuthors(prs []domain.PRRecord) []string {
	seen := map[string]bool{}
	var out []string
	for _, pr := range prs {
		if pr.Author == "" || seen[pr.Author] {
			continue
		}
		seen[pr.Author] = true
		out = append(out, pr.Author)
	}
	return out
}

func updatedAtOf(item domain.ScoredItem) time.Time {
	if item.PR != nil {
		return item.PR.UpdatedAt
	}
	if item.Issue != nil {
		return item.Issue.UpdatedAt
	}
	return time.Time{}
}

func headSHAOf(item domain.ScoredItem) string {
	if item.PR != nil {
		return item.PR.HeadSHA
	}
	return ""
}

func summarize(total, spam, clusters int) string {
	if total == 0 {
		return "no open items to triage"
	}
	return fmt.Sprintf("%d items scanned, %d flagged as spam, %d duplicate cluster(s)", total, spam, clusters)
}
