package cliapp

import (
	"fmt"

	"github.com/mahsumaktas/treliq/internal/action"
	"github.com/mahsumaktas/treliq/internal/cache"
	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/config"
	"github.com/mahsumaktas/treliq/internal/database"
	"github.com/mahsumaktas/treliq/internal/dedup"
	"github.com/mahsumaktas/treliq/internal/host/github"
	"github.com/mahsumaktas/treliq/internal/host/ratelimit"
	"github.com/mahsumaktas/treliq/internal/intent"
	"github.com/mahsumaktas/treliq/internal/observability"
	"github.com/mahsumaktas/treliq/internal/orchestrator"
	"github.com/mahsumaktas/treliq/internal/reputation"
	"github.com/mahsumaktas/treliq/internal/scoring"
	"github.com/mahsumaktas/treliq/internal/vision"
)

// Overrides carries the per-invocation flag values a command may use to
// adjust the loaded Config without mutating it.
type Overrides struct {
	Token             string
	Provider          string
	Model             string
	VisionText        string
	CachePath         string
	NoCache           bool
	DBPath            string
	TrustContributors bool
}

// Components bundles every collaborator a scan or action command needs,
// assembled once per invocation from Config plus CLI overrides.
type Components struct {
	Host         *github.Client
	Scorer       *scoring.Scorer
	Classifier   *intent.Classifier
	Dedup        *dedup.Engine
	Vision       *vision.Checker
	Reputation   *reputation.Probe
	Cache        *cache.Cache
	DB           *database.Store
	Gate         *concurrency.Gate
	Orchestrator *orchestrator.Orchestrator
	Planner      *action.Planner
	Executor     *action.Executor
	ProviderName string
	CachePath    string
	UseCache     bool

	closeDB func() error
}

// Close releases any resource Components opened (currently just the
// database connection, when one was built).
func (c *Components) Close() error {
	if c.closeDB != nil {
		return c.closeDB()
	}
	return nil
}

// Build assembles the full pipeline for one command invocation.
func Build(cfg config.Config, overrides Overrides, logger observability.Logger, metrics *observability.Metrics) (*Components, error) {
	token := overrides.Token
	if token == "" {
		token = cfg.Host.Token
	}
	if token == "" {
		return nil, fmt.Errorf("no host token configured: set host.token, TRELIQ_HOST_TOKEN, or --token")
	}

	providerName := overrides.Provider
	if providerName == "" {
		providerName = cfg.Scoring.Provider
	}

	providersCfg := cloneProviderConfigs(cfg.Providers)
	if overrides.Model != "" {
		p := providersCfg[providerName]
		p.Enabled = true
		p.Model = overrides.Model
		providersCfg[providerName] = p
	}

	gate := concurrency.NewGate(cfg.Concurrency.MaxInFlight, cfg.Concurrency.MinInFlight)

	// A missing entry leaves activeProvider nil, which every downstream
	// collaborator treats as heuristic-only / keyword-fallback mode.
	providers := buildProviders(providersCfg, gate)
	activeProvider := providers[providerName]

	gov := ratelimit.NewGovernor()
	host := github.New(token, cfg.Host.BaseURL, gov)

	classifier := intent.New(activeProvider)
	scorer := scoring.New(activeProvider, classifier, overrides.TrustContributors || cfg.Host.TrustContributors, logger, metrics)

	dedupEngine := dedup.New(activeProvider, gate, cfg.Dedup.SimilarityThreshold, cfg.Dedup.ANNBruteForceCutover, cfg.Dedup.VerifyWithLLM, logger)

	var visionChecker *vision.Checker
	if overrides.VisionText != "" {
		visionChecker = vision.New(activeProvider, overrides.VisionText, logger)
	}

	reputationProbe := reputation.New(host, logger)

	cachePath := cfg.Cache.Path
	if overrides.CachePath != "" {
		cachePath = overrides.CachePath
	}
	cacheStore := cache.New(cfg.Cache.PersistEmbeddings)

	var db *database.Store
	var closeDB func() error
	dbPath := cfg.Store.Path
	if overrides.DBPath != "" {
		dbPath = overrides.DBPath
	}
	if cfg.Store.Enabled {
		var err error
		db, err = database.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		closeDB = db.Close
	}

	orch := orchestrator.New(host, scorer, dedupEngine, visionChecker, reputationProbe, cacheStore, db, logger, gate)

	planner := action.New(action.Config{
		MergeThreshold: cfg.Action.AutoMergeAbove,
		BatchLimit:     0,
	}, nil)
	executor := action.NewExecutor(host, logger)

	return &Components{
		Host: host, Scorer: scorer, Classifier: classifier, Dedup: dedupEngine,
		Vision: visionChecker, Reputation: reputationProbe, Cache: cacheStore, DB: db,
		Gate: gate, Orchestrator: orch, Planner: planner, Executor: executor,
		ProviderName: providerName, CachePath: cachePath, UseCache: !overrides.NoCache,
		closeDB: closeDB,
	}, nil
}

func cloneProviderConfigs(in map[string]config.ProviderConfig) map[string]config.ProviderConfig {
	out := make(map[string]config.ProviderConfig, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
