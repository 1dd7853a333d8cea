package cliapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mahsumaktas/treliq/internal/action"
	"github.com/mahsumaktas/treliq/internal/domain"
)

func TestSplitOwnerRepo(t *testing.T) {
	owner, repo, err := splitOwnerRepo("acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "widgets", repo)

	_, _, err = splitOwnerRepo("widgets")
	assert.Error(t, err)

	_, _, err = splitOwnerRepo("/widgets")
	assert.Error(t, err)
}

func TestActionPlanFilterOnlySpam(t *testing.T) {
	plan := action.Plan{
		CloseDuplicates: []domain.ActionItem{{Kind: "close"}},
		CloseSpam:       []domain.ActionItem{{Kind: "close"}},
		AutoMerge:       []domain.ActionItem{{Kind: "merge"}},
		LabelIntent:     []domain.ActionItem{{Kind: "label"}},
	}

	filtered := (&actionPlanFilter{onlySpam: true}).apply(plan)
	assert.Nil(t, filtered.CloseDuplicates)
	assert.Nil(t, filtered.AutoMerge)
	assert.Nil(t, filtered.LabelIntent)
	assert.Len(t, filtered.CloseSpam, 1)
}

func TestActionPlanFilterOnlyLabels(t *testing.T) {
	plan := action.Plan{
		CloseDuplicates: []domain.ActionItem{{Kind: "close"}},
		CloseSpam:       []domain.ActionItem{{Kind: "close"}},
		AutoMerge:       []domain.ActionItem{{Kind: "merge"}},
		LabelIntent:     []domain.ActionItem{{Kind: "label"}},
	}

	filtered := (&actionPlanFilter{onlyLabels: true}).apply(plan)
	assert.Nil(t, filtered.CloseDuplicates)
	assert.Nil(t, filtered.CloseSpam)
	assert.Nil(t, filtered.AutoMerge)
	assert.Len(t, filtered.LabelIntent, 1)
}

func TestNewRootCommandRegistersVerbs(t *testing.T) {
	root := NewRootCommand(Dependencies{})
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"scan", "score", "compare", "dedup", "close-spam", "label-by-score", "server"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
