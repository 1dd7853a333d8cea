// Package cliapp wires the scan/score/compare/dedup/action verbs and
// the webhook server into a single Cobra command tree, the way the
// teacher's adapter/cli package wires branch review.
package cliapp

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/orchestrator"
)

var titleCaser = cases.Title(language.English)

const (
	ansiRed   = "\033[31m"
	ansiGreen = "\033[32m"
	ansiReset = "\033[0m"
)

// Render writes a scan Result to w in the requested format: "table"
// (default), "json", or "markdown".
func Render(w io.Writer, format string, result orchestrator.Result) error {
	switch format {
	case "json":
		return renderJSON(w, result)
	case "markdown":
		return renderMarkdown(w, result)
	default:
		return renderTable(w, result)
	}
}

func renderJSON(w io.Writer, result orchestrator.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func renderTable(w io.Writer, result orchestrator.Result) error {
	color := isOutputTerminal(w)
	fmt.Fprintf(w, "%s — %s\n\n", result.Repo, result.Summary)
	if len(result.RankedPRs) == 0 {
		return nil
	}

	fmt.Fprintf(w, "%-6s %-5s %-7s %-8s %-14s %-8s %s\n", "NUM", "KIND", "SCORE", "SPAM", "INTENT", "VISION", "TITLE")
	for _, item := range result.RankedPRs {
		title := titleOf(item)
		row := fmt.Sprintf("%-6d %-5s %-7.0f %-8v %-14s %-8s %s",
			item.Number, titleCaser.String(item.Kind), item.TotalScore, item.IsSpam,
			titleCaser.String(orEmpty(item.Intent, "-")), titleCaser.String(string(item.VisionAlignment)), truncate(title, 50))
		if color {
			switch {
			case item.IsSpam:
				row = ansiRed + row + ansiReset
			case item.TotalScore >= 85:
				row = ansiGreen + row + ansiReset
			}
		}
		fmt.Fprintln(w, row)
	}

	if len(result.DuplicateClusters) > 0 {
		fmt.Fprintf(w, "\nDuplicate clusters:\n")
		for _, c := range result.DuplicateClusters {
			members := make([]string, len(c.Members))
			for i, m := range c.Members {
				members[i] = fmt.Sprintf("#%d", m)
			}
			fmt.Fprintf(w, "  cluster %d (%s, best #%d, avg sim %.0f%%): %s\n",
				c.ID, c.Type, c.BestMember, c.AvgSimilarity*100, strings.Join(members, ", "))
		}
	}
	return nil
}

func renderMarkdown(w io.Writer, result orchestrator.Result) error {
	fmt.Fprintf(w, "# Triage: %s\n\n%s\n\n", result.Repo, result.Summary)
	if len(result.RankedPRs) == 0 {
		return nil
	}

	fmt.Fprintf(w, "| # | Kind | Score | Spam | Intent | Vision | Title |\n")
	fmt.Fprintf(w, "|---|------|-------|------|--------|--------|-------|\n")
	for _, item := range result.RankedPRs {
		fmt.Fprintf(w, "| #%d | %s | %.0f | %v | %s | %s | %s |\n",
			item.Number, titleCaser.String(item.Kind), item.TotalScore, item.IsSpam,
			titleCaser.String(orEmpty(item.Intent, "-")), titleCaser.String(string(item.VisionAlignment)), titleOf(item))
	}

	if len(result.DuplicateClusters) > 0 {
		fmt.Fprintf(w, "\n## Duplicate clusters\n\n")
		for _, c := range result.DuplicateClusters {
			members := make([]string, len(c.Members))
			for i, m := range c.Members {
				members[i] = fmt.Sprintf("#%d", m)
			}
			sort.Strings(members)
			fmt.Fprintf(w, "- Cluster %d (%s, best #%d, avg similarity %.0f%%): %s\n",
				c.ID, c.Type, c.BestMember, c.AvgSimilarity*100, strings.Join(members, ", "))
		}
	}
	return nil
}

func titleOf(item domain.ScoredItem) string {
	if item.PR != nil {
		return item.PR.Title
	}
	if item.Issue != nil {
		return item.Issue.Title
	}
	return ""
}

func orEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
