// Package domain holds the plain data types shared by every Treliq
// component: the records fetched from the host, the signals and scores
// produced while triaging them, and the clusters and actions derived
// from those scores.
package domain

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// PRRecord is a pull request as fetched from the host, normalized to the
// fields the scoring pipeline needs.
type PRRecord struct {
	Number              int       `json:"number"`
	Repo                string    `json:"repo"`
	Title               string    `json:"title"`
	Body                string    `json:"body"`
	Author              string    `json:"author"`
	AuthorAssoc         string    `json:"authorAssociation"` // OWNER, MEMBER, CONTRIBUTOR, FIRST_TIME_CONTRIBUTOR, NONE
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
	HeadSHA             string    `json:"headSha"`
	BaseBranch          string    `json:"baseBranch"`
	Additions           int       `json:"additions"`
	Deletions           int       `json:"deletions"`
	ChangedFiles        int       `json:"changedFiles"`
	CommitsCount        int       `json:"commitsCount"`
	FilePaths           []string  `json:"filePaths"`
	Draft               bool      `json:"draft"`
	Mergeable           string    `json:"mergeable"` // MERGEABLE, CONFLICTING, UNKNOWN
	CIStatus            string    `json:"ciStatus"`   // success, failure, pending, none
	ReviewState          string   `json:"reviewState"`
	ReviewCount          int      `json:"reviewCount"`
	Labels               []string `json:"labels"`
	Milestone            string   `json:"milestone,omitempty"`
	RequestedReviewers    []string `json:"requestedReviewers,omitempty"`
	MatchedOwners        []string `json:"matchedOwners,omitempty"`
	CodeownersConfigured bool     `json:"codeownersConfigured"`
	LinkedIssues         []int    `json:"linkedIssues"`
	CommentsCount        int      `json:"commentsCount"`
	ReviewComments       int      `json:"reviewComments"`
}

// IssueRecord is an open issue as fetched from the host.
type IssueRecord struct {
	Number      int       `json:"number"`
	Repo        string    `json:"repo"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Author      string    `json:"author"`
	AuthorAssoc string    `json:"authorAssociation"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Labels      []string  `json:"labels"`
	Comments    int       `json:"comments"`
	Reactions   int       `json:"reactions"`
}

// SignalScore is one named signal's contribution to a composite score.
type SignalScore struct {
	Name   string  `json:"name"`
	Score  float64 `json:"score"`  // in [0,100]
	Weight float64 `json:"weight"` // in (0,1], renormalized for the active intent profile
	Reason string  `json:"reason"`
}

// VisionAlignment classifies how well an item matches a project's stated
// roadmap or direction, as judged by VisionChecker.
type VisionAlignment string

const (
	VisionAligned    VisionAlignment = "aligned"
	VisionTangential VisionAlignment = "tangential"
	VisionOffRoadmap VisionAlignment = "off-roadmap"
	VisionUnchecked  VisionAlignment = "unchecked"
)

// ScoredItem is a PR or issue after scoring, carrying its signal
// breakdown, classified intent, dedup cluster assignment, and vision
// alignment.
type ScoredItem struct {
	Kind            string          `json:"kind"` // "pr" or "issue"
	Number          int             `json:"number"`
	Repo            string          `json:"repo"`
	TotalScore      float64         `json:"totalScore"`
	Signals         []SignalScore   `json:"signals"`
	Embedding       []float32       `json:"-"`
	VisionAlignment VisionAlignment `json:"visionAlignment"`
	VisionScore     float64         `json:"visionScore,omitempty"`
	LLMScore        float64         `json:"llmScore,omitempty"`
	LLMRisk         string          `json:"llmRisk,omitempty"` // low, medium, high
	LLMReason       string          `json:"llmReason,omitempty"`
	Intent          string          `json:"intent,omitempty"`
	DuplicateGroup  int             `json:"duplicateGroup,omitempty"`
	IsSpam          bool            `json:"isSpam"`
	SpamReasons     []string        `json:"spamReasons,omitempty"`

	PR    *PRRecord    `json:"-"`
	Issue *IssueRecord `json:"-"`
}

// HeuristicAggregate returns the weighted mean of the item's signals:
// Σ(score·weight) / Σweight.
func (s ScoredItem) HeuristicAggregate() float64 {
	var weighted, totalWeight float64
	for _, sig := range s.Signals {
		weighted += sig.Score * sig.Weight
		totalWeight += sig.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return weighted / totalWeight
}

// SignalByName returns the named signal and whether it was found.
func (s ScoredItem) SignalByName(name string) (SignalScore, bool) {
	for _, sig := range s.Signals {
		if sig.Name == name {
			return sig, true
		}
	}
	return SignalScore{}, false
}

// DedupCluster groups items judged to be duplicates of one another.
type DedupCluster struct {
	ID            int     `json:"id"`
	Type          string  `json:"type"` // "pr", "issue", or "mixed"
	Members       []int   `json:"members"`
	BestMember    int     `json:"bestMember"`
	AvgSimilarity float64 `json:"avgSimilarity"`
	Reason        string  `json:"reason,omitempty"`
}

// CacheEntry is one item's persisted scoring state, keyed by item number,
// used to skip unchanged items on the next scan.
type CacheEntry struct {
	Number           int       `json:"number"`
	HeadSHA          string    `json:"headSha,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
	ConfigFingerprint string   `json:"configFingerprint"`
	Score            ScoredItem `json:"score"`
	Embedding        []float32  `json:"embedding,omitempty"`
}

// ActionItem is a single planned or executed action against an item.
type ActionItem struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"` // "close", "merge", "label", "comment"
	Number    int        `json:"number"`
	Repo      string     `json:"repo"`
	Reason    string     `json:"reason"`
	Payload   string     `json:"payload,omitempty"` // label name, merge method, comment body
	Outcome   string     `json:"outcome"`           // "planned", "executed", "skipped", "failed"
	Detail    string     `json:"detail,omitempty"`
	PlannedAt time.Time  `json:"plannedAt"`
}

// NewActionItem constructs an ActionItem with a deterministic ID, so a
// retried Execute over the same plan does not double-record the outcome.
func NewActionItem(kind string, repo string, number int, reason, payload string, plannedAt time.Time) ActionItem {
	return ActionItem{
		ID:        hashAction(kind, repo, number, reason, payload),
		Kind:      kind,
		Number:    number,
		Repo:      repo,
		Reason:    reason,
		Payload:   payload,
		Outcome:   "planned",
		PlannedAt: plannedAt,
	}
}

func hashAction(kind, repo string, number int, reason, payload string) string {
	payloadStr := fmt.Sprintf("%s|%s|%d|%s|%s", kind, repo, number, reason, payload)
	sum := sha256.Sum256([]byte(payloadStr))
	return hex.EncodeToString(sum[:16])
}

// ConfigFingerprint returns a short stable hash over the parts of
// configuration that invalidate a cache entry when changed: whether
// unknown contributors are trusted, and which scoring provider is
// active. The model name is deliberately excluded — see DESIGN.md.
func ConfigFingerprint(trustContributors bool, providerName string) string {
	payload := fmt.Sprintf("%t|%s", trustContributors, providerName)
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])[:8]
}
