// Package cliapp wires the scan/score/compare/dedup/action verbs and
// the webhook server into a single Cobra command tree, the way the
// teacher's adapter/cli package wires branch review.
package cliapp

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mahsumaktas/treliq/internal/config"
	"github.com/mahsumaktas/treliq/internal/observability"
	"github.com/mahsumaktas/treliq/internal/orchestrator"
)

// Dependencies bundles the collaborators NewRootCommand needs that are
// not derivable from flags alone: the loaded configuration and the
// shared observability instances built once at process startup.
type Dependencies struct {
	Config  config.Config
	Logger  observability.Logger
	Metrics *observability.Metrics
	Version string
}

// NewRootCommand builds the treliq command tree.
func NewRootCommand(deps Dependencies) *cobra.Command {
	version := deps.Version
	if version == "" {
		version = "v0.0.0"
	}

	root := &cobra.Command{
		Use:     "treliq",
		Short:   "Triage pull requests and issues on a git-hosting API",
		Version: version,
	}
	root.SilenceUsage = true
	root.SilenceErrors = true

	var flagToken, flagProvider, flagModel, flagVisionPath, flagCachePath, flagDBPath string
	var flagNoCache, flagTrustContributors bool

	root.PersistentFlags().StringVar(&flagToken, "token", "", "host API token (overrides config/env)")
	root.PersistentFlags().StringVar(&flagProvider, "provider", "", "scoring/LLM provider name (overrides config)")
	root.PersistentFlags().StringVar(&flagModel, "model", "", "model name for the active provider")
	root.PersistentFlags().StringVar(&flagCachePath, "cache", "", "cache file path (overrides config)")
	root.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false, "disable the incremental cache for this run")
	root.PersistentFlags().StringVar(&flagDBPath, "db", "", "database file path (overrides config)")
	root.PersistentFlags().BoolVar(&flagTrustContributors, "trust-contributors", false, "treat non-member authors as trusted for scoring")

	overrides := func() Overrides {
		visionText := ""
		if flagVisionPath != "" {
			content, err := os.ReadFile(flagVisionPath)
			if err == nil {
				visionText = string(content)
			}
		}
		return Overrides{
			Token: flagToken, Provider: flagProvider, Model: flagModel,
			VisionText: visionText, CachePath: flagCachePath, NoCache: flagNoCache,
			DBPath: flagDBPath, TrustContributors: flagTrustContributors,
		}
	}

	root.AddCommand(scanCommand(&deps, overrides, &flagVisionPath))
	root.AddCommand(scoreCommand(&deps, overrides))
	root.AddCommand(compareCommand(&deps, overrides))
	root.AddCommand(dedupCommand(&deps, overrides))
	root.AddCommand(closeSpamCommand(&deps, overrides))
	root.AddCommand(labelByScoreCommand(&deps, overrides))
	root.AddCommand(serverCommand(&deps, overrides))

	return root
}

func splitOwnerRepo(repo string) (string, string, error) {
	parts := strings.SplitN(repo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("--repo must be in owner/repo form, got %q", repo)
	}
	return parts[0], parts[1], nil
}

func scanCommand(deps *Dependencies, overrides func() Overrides, visionPath *string) *cobra.Command {
	var repo, format string
	var maxResults int
	var comment bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the full triage pipeline over a repository's open PRs and issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitOwnerRepo(repo)
			if err != nil {
				return err
			}

			ov := overrides()
			comps, err := Build(deps.Config, ov, deps.Logger, deps.Metrics)
			if err != nil {
				return err
			}
			defer comps.Close()

			result, err := comps.Orchestrator.Scan(cmd.Context(), orchestrator.Config{
				Owner: owner, Repo: name,
				TrustContributors:  ov.TrustContributors,
				ProviderName:       comps.ProviderName,
				CachePath:          comps.CachePath,
				UseCache:           comps.UseCache,
				RelatedThreshold:   deps.Config.Dedup.SimilarityThreshold,
				BruteForceCutover:  deps.Config.Dedup.ANNBruteForceCutover,
				VerifyDupesWithLLM: deps.Config.Dedup.VerifyWithLLM,
			})
			if err != nil {
				return fmt.Errorf("scan %s/%s: %w", owner, name, err)
			}

			if maxResults > 0 && len(result.RankedPRs) > maxResults {
				result.RankedPRs = result.RankedPRs[:maxResults]
			}

			if comment {
				fmt.Fprintln(cmd.ErrOrStderr(), "note: --comment is not yet wired to post triage summaries back to the host")
			}

			return Render(cmd.OutOrStdout(), format, result)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo to scan (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().StringVar(visionPath, "vision", "", "path to a vision/roadmap document for alignment checks")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, markdown")
	cmd.Flags().IntVar(&maxResults, "max", 0, "cap the number of ranked items printed (0 = unlimited)")
	cmd.Flags().BoolVar(&comment, "comment", false, "post the triage summary as a comment (reserved)")
	return cmd
}

func scoreCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var repo, format string
	var number int

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a single pull request",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitOwnerRepo(repo)
			if err != nil {
				return err
			}
			if number <= 0 {
				return fmt.Errorf("--pr is required")
			}

			comps, err := Build(deps.Config, overrides(), deps.Logger, deps.Metrics)
			if err != nil {
				return err
			}
			defer comps.Close()

			pr, err := comps.Host.GetPullRequest(cmd.Context(), owner, name, number)
			if err != nil {
				return fmt.Errorf("fetch %s/%s#%d: %w", owner, name, number, err)
			}
			item, err := comps.Scorer.ScorePR(cmd.Context(), pr)
			if err != nil {
				return fmt.Errorf("score %s/%s#%d: %w", owner, name, number, err)
			}

			return Render(cmd.OutOrStdout(), format, singleItemResult(owner+"/"+name, item))
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().IntVar(&number, "pr", 0, "pull request number (required)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, markdown")
	return cmd
}

func compareCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var repo, format string
	var numbers []string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Cluster a given set of pull requests for duplication",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitOwnerRepo(repo)
			if err != nil {
				return err
			}

			comps, err := Build(deps.Config, overrides(), deps.Logger, deps.Metrics)
			if err != nil {
				return err
			}
			defer comps.Close()

			items, err := scoreExplicitPRs(cmd.Context(), comps, owner, name, numbers)
			if err != nil {
				return err
			}

			clusters := comps.Dedup.FindDuplicates(cmd.Context(), items)
			return Render(cmd.OutOrStdout(), format, orchestrator.Result{
				Repo: owner + "/" + name, TotalPRs: len(items), RankedPRs: items,
				DuplicateClusters: clusters,
				Summary:           fmt.Sprintf("%d item(s) compared, %d cluster(s)", len(items), len(clusters)),
			})
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().StringSliceVar(&numbers, "pr", nil, "pull request numbers to compare (repeatable)")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, markdown")
	return cmd
}

func dedupCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var repo, format string

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Run scoring and dedup only, printing duplicate clusters",
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, name, err := splitOwnerRepo(repo)
			if err != nil {
				return err
			}

			comps, err := Build(deps.Config, overrides(), deps.Logger, deps.Metrics)
			if err != nil {
				return err
			}
			defer comps.Close()

			result, err := comps.Orchestrator.Scan(cmd.Context(), orchestrator.Config{
				Owner: owner, Repo: name, ProviderName: comps.ProviderName,
				RelatedThreshold:  deps.Config.Dedup.SimilarityThreshold,
				BruteForceCutover: deps.Config.Dedup.ANNBruteForceCutover,
			})
			if err != nil {
				return err
			}
			result.RankedPRs = nil
			return Render(cmd.OutOrStdout(), format, result)
		},
	}

	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().StringVar(&format, "format", "table", "output format: table, json, markdown")
	return cmd
}

func closeSpamCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var repo string
	var confirm bool

	cmd := &cobra.Command{
		Use:   "close-spam",
		Short: "Close every item flagged as spam by a fresh scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActionVerb(cmd, deps, overrides, repo, confirm, func(f *actionPlanFilter) {
				f.onlySpam = true
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "actually execute the plan instead of printing it")
	return cmd
}

func labelByScoreCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var repo string
	var confirm bool

	cmd := &cobra.Command{
		Use:   "label-by-score",
		Short: "Apply intent labels derived from a fresh scan's classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runActionVerb(cmd, deps, overrides, repo, confirm, func(f *actionPlanFilter) {
				f.onlyLabels = true
			})
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "owner/repo (required)")
	cmd.MarkFlagRequired("repo")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "actually execute the plan instead of printing it")
	return cmd
}

func serverCommand(deps *Dependencies, overrides func() Overrides) *cobra.Command {
	var port int
	var webhookSecret string
	var schedule string
	var repos []string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the long-lived webhook and scheduled-scan server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), deps, overrides, port, webhookSecret, schedule, repos)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8090, "listen port")
	cmd.Flags().StringVar(&webhookSecret, "webhook-secret", "", "HMAC secret for inbound webhook verification")
	cmd.Flags().StringVar(&schedule, "schedule", "", "scan interval as a Go duration (e.g. 1h); empty disables scheduled scans")
	cmd.Flags().StringSliceVar(&repos, "repos", nil, "owner/repo list to scan on schedule")
	return cmd
}
