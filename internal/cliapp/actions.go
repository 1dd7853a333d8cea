package cliapp

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/mahsumaktas/treliq/internal/action"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/orchestrator"
)

// singleItemResult wraps one scored item in an orchestrator.Result so
// score can reuse Render instead of a bespoke single-item printer.
func singleItemResult(repo string, item domain.ScoredItem) orchestrator.Result {
	return orchestrator.Result{
		Repo: repo, TotalPRs: 1, RankedPRs: []domain.ScoredItem{item},
		Summary: fmt.Sprintf("1 item scored: #%d = %.0f", item.Number, item.TotalScore),
	}
}

// scoreExplicitPRs fetches and scores exactly the PR numbers named,
// ignoring everything else in the repository.
func scoreExplicitPRs(ctx context.Context, comps *Components, owner, repo string, numbers []string) ([]domain.ScoredItem, error) {
	items := make([]domain.ScoredItem, 0, len(numbers))
	for _, raw := range numbers {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid --pr value %q: %w", raw, err)
		}
		pr, err := comps.Host.GetPullRequest(ctx, owner, repo, n)
		if err != nil {
			return nil, fmt.Errorf("fetch %s/%s#%d: %w", owner, repo, n, err)
		}
		item, err := comps.Scorer.ScorePR(ctx, pr)
		if err != nil {
			return nil, fmt.Errorf("score %s/%s#%d: %w", owner, repo, n, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// actionPlanFilter narrows a built Plan down to the action lists a
// single-purpose verb like close-spam is allowed to touch.
type actionPlanFilter struct {
	onlySpam   bool
	onlyLabels bool
}

func (f *actionPlanFilter) apply(plan action.Plan) action.Plan {
	switch {
	case f.onlySpam:
		plan.CloseDuplicates = nil
		plan.AutoMerge = nil
		plan.LabelIntent = nil
	case f.onlyLabels:
		plan.CloseDuplicates = nil
		plan.CloseSpam = nil
		plan.AutoMerge = nil
	}
	return plan
}

func runActionVerb(cmd *cobra.Command, deps *Dependencies, overrides func() Overrides, repo string, confirm bool, selectKind func(*actionPlanFilter)) error {
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
		CachePath: comps.CachePath, UseCache: comps.UseCache,
	})
	if err != nil {
		return fmt.Errorf("scan before acting: %w", err)
	}

	filter := &actionPlanFilter{}
	selectKind(filter)

	plan := filter.apply(comps.Planner.Build(owner+"/"+name, result.RankedPRs, result.DuplicateClusters))

	if !confirm {
		printPlan(cmd.OutOrStdout(), plan)
		fmt.Fprintln(cmd.OutOrStdout(), "\n(dry run, pass --confirm to execute)")
		return nil
	}

	executed := comps.Executor.Execute(cmd.Context(), owner, name, plan)
	printPlan(cmd.OutOrStdout(), executed)
	return nil
}

func printPlan(w interface{ Write([]byte) (int, error) }, plan action.Plan) {
	printSection(w, "close duplicates", plan.CloseDuplicates)
	printSection(w, "close spam", plan.CloseSpam)
	printSection(w, "auto-merge", plan.AutoMerge)
	printSection(w, "label intent", plan.LabelIntent)
}

func printSection(w interface{ Write([]byte) (int, error) }, title string, items []domain.ActionItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n", title)
	for _, it := range items {
		fmt.Fprintf(w, "  #%d %s (%s): %s\n", it.Number, it.Kind, it.Outcome, it.Reason)
	}
}
