package action

import (
	"context"
	"fmt"
	"strings"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/host/github"
	"github.com/mahsumaktas/treliq/internal/observability"
)

// HostClient is the subset of the host port the executor needs to act
// on and re-check the live state of a PR or issue.
type HostClient interface {
	GetItemState(ctx context.Context, owner, repo string, number int) (github.ItemState, error)
	CloseIssue(ctx context.Context, owner, repo string, number int, comment string) error
	AddLabel(ctx context.Context, owner, repo string, number int, label string) error
	MergePullRequest(ctx context.Context, owner, repo string, number int, method string) error
}

// Executor dispatches a Plan's actions sequentially, re-fetching each
// target's live state first so a retried run never double-acts.
type Executor struct {
	client HostClient
	logger observability.Logger
}

func NewExecutor(client HostClient, logger observability.Logger) *Executor {
	return &Executor{client: client, logger: logger}
}

// Execute runs every action in the plan in a fixed, readable order:
// close-duplicates, close-spam, auto-merge, label-intent. Each item's
// Outcome is mutated to executed, skipped, or failed.
func (e *Executor) Execute(ctx context.Context, owner, repo string, plan Plan) Plan {
	e.runAll(ctx, owner, repo, plan.CloseDuplicates)
	e.runAll(ctx, owner, repo, plan.CloseSpam)
	e.runAll(ctx, owner, repo, plan.AutoMerge)
	e.runAll(ctx, owner, repo, plan.LabelIntent)
	return plan
}

func (e *Executor) runAll(ctx context.Context, owner, repo string, items []domain.ActionItem) {
	for i := range items {
		e.runOne(ctx, owner, repo, &items[i])
	}
}

func (e *Executor) runOne(ctx context.Context, owner, repo string, item *domain.ActionItem) {
	if e.alreadyDone(ctx, owner, repo, item) {
		item.Outcome = "skipped"
		item.Detail = "target already closed or merged"
		return
	}

	var err error
	switch item.Kind {
	case "close":
		err = e.client.CloseIssue(ctx, owner, repo, item.Number, item.Payload)
	case "merge":
		err = e.client.MergePullRequest(ctx, owner, repo, item.Number, item.Payload)
	case "label":
		err = e.client.AddLabel(ctx, owner, repo, item.Number, item.Payload)
	default:
		err = fmt.Errorf("unknown action kind %q", item.Kind)
	}

	if err != nil {
		item.Outcome = "failed"
		item.Detail = err.Error()
		if e.logger != nil {
			e.logger.Warn(ctx, "action failed", "kind", item.Kind, "repo", repo, "number", item.Number, "error", err)
		}
		return
	}
	item.Outcome = "executed"
}

// alreadyDone re-fetches live state before acting; if the fetch itself
// errors, it proceeds and lets the action surface any real failure.
func (e *Executor) alreadyDone(ctx context.Context, owner, repo string, item *domain.ActionItem) bool {
	state, err := e.client.GetItemState(ctx, owner, repo, item.Number)
	if err != nil {
		if e.logger != nil {
			e.logger.Warn(ctx, "live state check failed, proceeding with action", "repo", repo, "number", item.Number, "error", err)
		}
		return false
	}
	if strings.EqualFold(state.State, "closed") {
		return true
	}
	if item.Kind == "merge" && state.Merged {
		return true
	}
	return false
}
