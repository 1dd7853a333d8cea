// Package vision scores how well a pull request or issue aligns with a
// project's stated direction, described in a free-form vision document
// supplied by the operator (a roadmap file, a CONTRIBUTING section, or
// similar). It only ever judges items whose alignment is unchecked.
package vision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mahsumaktas/treliq/internal/concurrency"
	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm"
	"github.com/mahsumaktas/treliq/internal/observability"
)

// Checker judges vision alignment via an LLM call per item.
type Checker struct {
	provider    llm.Adapter
	visionText  string
	logger      observability.Logger
}

func New(provider llm.Adapter, visionText string, logger observability.Logger) *Checker {
	return &Checker{provider: provider, visionText: visionText, logger: logger}
}

type judgment struct {
	Alignment string  `json:"alignment"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
}

var validAlignments = map[string]domain.VisionAlignment{
	"aligned":     domain.VisionAligned,
	"tangential":  domain.VisionTangential,
	"off-roadmap": domain.VisionOffRoadmap,
}

// CheckMany judges every item whose VisionAlignment is unchecked,
// mutating items in place. A per-item failure leaves the alignment as
// unchecked rather than failing the whole batch. If no provider or
// vision document is configured, every item is left unchecked.
func (c *Checker) CheckMany(ctx context.Context, items []domain.ScoredItem, gate *concurrency.Gate) {
	if c.provider == nil || strings.TrimSpace(c.visionText) == "" {
		return
	}
	if gate == nil {
		gate = concurrency.NewGate(4, 1)
	}

	var wg sync.WaitGroup
	for i := range items {
		if items[i].VisionAlignment != domain.VisionUnchecked && items[i].VisionAlignment != "" {
			continue
		}
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do(ctx, func() error {
				c.checkOne(ctx, &items[i])
				return nil
			})
		}()
	}
	wg.Wait()
}

func (c *Checker) checkOne(ctx context.Context, item *domain.ScoredItem) {
	resp, err := c.provider.GenerateText(ctx, llm.TextRequest{Prompt: c.prompt(*item), Temperature: 0, MaxTokens: 200})
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, "vision check failed, leaving alignment unchecked", "repo", item.Repo, "number", item.Number, "error", err)
		}
		return
	}

	var parsed judgment
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		if c.logger != nil {
			c.logger.Warn(ctx, "vision check response unparsable, leaving alignment unchecked", "repo", item.Repo, "number", item.Number, "error", err)
		}
		return
	}

	alignment, ok := validAlignments[parsed.Alignment]
	if !ok {
		return
	}

	item.VisionAlignment = alignment
	item.VisionScore = clamp(parsed.Score, 0, 100)
}

func (c *Checker) prompt(item domain.ScoredItem) string {
	title, body := "", ""
	if item.PR != nil {
		title, body = item.PR.Title, item.PR.Body
	} else if item.Issue != nil {
		title, body = item.Issue.Title, item.Issue.Body
	}
	return fmt.Sprintf(
		"Project vision document:\n%s\n\nDoes this contribution align with the vision above?\nTitle: %s\nBody: %s\n"+
			`Respond with JSON only: {"alignment": "aligned"|"tangential"|"off-roadmap", "score": number 0-100, "reason": string}.`,
		c.visionText, title, body,
	)
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

func extractJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end == -1 || end < start {
		return text
	}
	return text[start : end+1]
}
