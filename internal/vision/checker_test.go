package vision

import (
	"context"
	"testing"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm/static"
	"github.com/stretchr/testify/require"
)

func TestCheckManySetsAlignment(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText(`{"alignment":"aligned","score":85,"reason":"matches the roadmap goal"}`)

	c := New(provider, "Focus on performance and reliability this quarter.", nil)
	pr := domain.PRRecord{Title: "Speed up the scan loop", Body: "reduces latency"}
	items := []domain.ScoredItem{{Kind: "pr", Number: 1, VisionAlignment: domain.VisionUnchecked, PR: &pr}}

	c.CheckMany(context.Background(), items, concurrency.NewGate(4, 1))
	require.Equal(t, domain.VisionAligned, items[0].VisionAlignment)
	require.Equal(t, 85.0, items[0].VisionScore)
}

func TestCheckManySkipsAlreadyChecked(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText(`{"alignment":"off-roadmap","score":10,"reason":"unrelated"}`)

	c := New(provider, "vision text", nil)
	pr := domain.PRRecord{Title: "x"}
	items := []domain.ScoredItem{{Kind: "pr", Number: 1, VisionAlignment: domain.VisionAligned, VisionScore: 90, PR: &pr}}

	c.CheckMany(context.Background(), items, concurrency.NewGate(4, 1))
	require.Equal(t, domain.VisionAligned, items[0].VisionAlignment)
	require.Equal(t, 90.0, items[0].VisionScore)
}

func TestCheckManyNoProviderLeavesUnchecked(t *testing.T) {
	c := New(nil, "", nil)
	pr := domain.PRRecord{Title: "x"}
	items := []domain.ScoredItem{{Kind: "pr", Number: 1, VisionAlignment: domain.VisionUnchecked, PR: &pr}}
	c.CheckMany(context.Background(), items, nil)
	require.Equal(t, domain.VisionUnchecked, items[0].VisionAlignment)
}

func TestCheckManyUnparsableResponseLeavesUnchecked(t *testing.T) {
	provider := static.New("static-v1", "")
	provider.SetFixedText("not json")

	c := New(provider, "vision text", nil)
	pr := domain.PRRecord{Title: "x"}
	items := []domain.ScoredItem{{Kind: "pr", Number: 1, VisionAlignment: domain.VisionUnchecked, PR: &pr}}

	c.CheckMany(context.Background(), items, concurrency.NewGate(4, 1))
	require.Equal(t, domain.VisionUnchecked, items[0].VisionAlignment)
}
