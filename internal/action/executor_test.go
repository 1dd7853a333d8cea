package action

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/host/github"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	states      map[int]github.ItemState
	stateErr    map[int]error
	closeCalls  []int
	mergeCalls  []int
	labelCalls  []int
	closeErr    error
	mergeErr    error
	labelErr    error
}

func newFakeHost() *fakeHost {
	return &fakeHost{states: map[int]github.ItemState{}, stateErr: map[int]error{}}
}

func (f *fakeHost) GetItemState(ctx context.Context, owner, repo string, number int) (github.ItemState, error) {
	if err, ok := f.stateErr[number]; ok {
		return github.ItemState{}, err
	}
	return f.states[number], nil
}

func (f *fakeHost) CloseIssue(ctx context.Context, owner, repo string, number int, comment string) error {
	f.closeCalls = append(f.closeCalls, number)
	return f.closeErr
}

func (f *fakeHost) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	f.labelCalls = append(f.labelCalls, number)
	return f.labelErr
}

func (f *fakeHost) MergePullRequest(ctx context.Context, owner, repo string, number int, method string) error {
	f.mergeCalls = append(f.mergeCalls, number)
	return f.mergeErr
}

func TestExecutorExecutesCloseAction(t *testing.T) {
	host := newFakeHost()
	host.states[1] = github.ItemState{State: "open"}
	e := NewExecutor(host, nil)

	plan := Plan{CloseSpam: []domain.ActionItem{domain.NewActionItem("close", "o/r", 1, "spam", "", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "executed", result.CloseSpam[0].Outcome)
	require.Equal(t, []int{1}, host.closeCalls)
}

func TestExecutorSkipsAlreadyClosedTarget(t *testing.T) {
	host := newFakeHost()
	host.states[1] = github.ItemState{State: "closed"}
	e := NewExecutor(host, nil)

	plan := Plan{CloseSpam: []domain.ActionItem{domain.NewActionItem("close", "o/r", 1, "spam", "", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "skipped", result.CloseSpam[0].Outcome)
	require.Empty(t, host.closeCalls)
}

func TestExecutorSkipsAlreadyMergedPR(t *testing.T) {
	host := newFakeHost()
	host.states[1] = github.ItemState{State: "closed", Merged: true}
	e := NewExecutor(host, nil)

	plan := Plan{AutoMerge: []domain.ActionItem{domain.NewActionItem("merge", "o/r", 1, "eligible", "squash", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "skipped", result.AutoMerge[0].Outcome)
	require.Empty(t, host.mergeCalls)
}

func TestExecutorProceedsWhenStateFetchErrors(t *testing.T) {
	host := newFakeHost()
	host.stateErr[1] = errors.New("rate limited")
	e := NewExecutor(host, nil)

	plan := Plan{CloseSpam: []domain.ActionItem{domain.NewActionItem("close", "o/r", 1, "spam", "", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "executed", result.CloseSpam[0].Outcome)
	require.Equal(t, []int{1}, host.closeCalls)
}

func TestExecutorRecordsFailedOutcome(t *testing.T) {
	host := newFakeHost()
	host.states[1] = github.ItemState{State: "open"}
	host.closeErr = errors.New("forbidden")
	e := NewExecutor(host, nil)

	plan := Plan{CloseSpam: []domain.ActionItem{domain.NewActionItem("close", "o/r", 1, "spam", "", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "failed", result.CloseSpam[0].Outcome)
	require.Contains(t, result.CloseSpam[0].Detail, "forbidden")
}

func TestExecutorLabelAction(t *testing.T) {
	host := newFakeHost()
	host.states[1] = github.ItemState{State: "open"}
	e := NewExecutor(host, nil)

	plan := Plan{LabelIntent: []domain.ActionItem{domain.NewActionItem("label", "o/r", 1, "intent bugfix", "intent:bugfix", time.Now())}}
	result := e.Execute(context.Background(), "o", "r", plan)

	require.Equal(t, "executed", result.LabelIntent[0].Outcome)
	require.Equal(t, []int{1}, host.labelCalls)
}
