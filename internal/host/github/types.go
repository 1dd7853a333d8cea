package github

import (
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
)

type userResponse struct {
	Login string `json:"login"`
}

type labelResponse struct {
	Name string `json:"name"`
}

type pullResponse struct {
	Number             int             `json:"number"`
	Title              string          `json:"title"`
	Body               string          `json:"body"`
	User               userResponse    `json:"user"`
	AuthorAssociation  string          `json:"author_association"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	Draft              bool            `json:"draft"`
	Additions          int             `json:"additions"`
	Deletions          int             `json:"deletions"`
	ChangedFiles       int             `json:"changed_files"`
	Comments           int             `json:"comments"`
	ReviewComments     int             `json:"review_comments"`
	Labels             []labelResponse `json:"labels"`
	Mergeable          *bool           `json:"mergeable"`
	MergeableState     string          `json:"mergeable_state"`
	Base               refResponse     `json:"base"`
	Head               refResponse     `json:"head"`
}

type refResponse struct {
	Ref string `json:"ref"`
	SHA string `json:"sha"`
}

func (p pullResponse) toRecord(repo string) domain.PRRecord {
	labels := make([]string, 0, len(p.Labels))
	for _, l := range p.Labels {
		labels = append(labels, l.Name)
	}

	return domain.PRRecord{
		Number:         p.Number,
		Repo:           repo,
		Title:          p.Title,
		Body:           p.Body,
		Author:         p.User.Login,
		AuthorAssoc:    p.AuthorAssociation,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
		HeadSHA:        p.Head.SHA,
		BaseBranch:     p.Base.Ref,
		Additions:      p.Additions,
		Deletions:      p.Deletions,
		ChangedFiles:   p.ChangedFiles,
		Draft:          p.Draft,
		Mergeable:      mergeableFromState(p.MergeableState),
		Labels:         labels,
		LinkedIssues:   ExtractIssueRefs(p.Title + "\n" + p.Body),
		CommentsCount:  p.Comments,
		ReviewComments: p.ReviewComments,
	}
}

type issueResponse struct {
	Number            int             `json:"number"`
	Title             string          `json:"title"`
	Body              string          `json:"body"`
	User              userResponse    `json:"user"`
	AuthorAssociation string          `json:"author_association"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	Comments          int             `json:"comments"`
	Labels            []labelResponse `json:"labels"`
	Reactions         reactionsResponse `json:"reactions"`
	PullRequest       *struct{}       `json:"pull_request,omitempty"`
}

type reactionsResponse struct {
	TotalCount int `json:"total_count"`
}

// UserProfile holds the public account fields the reputation probe
// uses to compute a trust score.
type UserProfile struct {
	Login       string    `json:"login"`
	CreatedAt   time.Time `json:"createdAt"`
	PublicRepos int       `json:"publicRepos"`
	Followers   int       `json:"followers"`
}

type userProfileResponse struct {
	Login       string    `json:"login"`
	CreatedAt   time.Time `json:"created_at"`
	PublicRepos int       `json:"public_repos"`
	Followers   int       `json:"followers"`
}

func (u userProfileResponse) toProfile() UserProfile {
	return UserProfile{Login: u.Login, CreatedAt: u.CreatedAt, PublicRepos: u.PublicRepos, Followers: u.Followers}
}

// ItemState is the minimal live state the executor checks before
// acting on a PR or issue, to avoid double-closing or double-merging.
type ItemState struct {
	State  string // "open" or "closed"
	Merged bool
}

type itemStateResponse struct {
	State       string `json:"state"`
	PullRequest *struct {
		MergedAt *time.Time `json:"merged_at"`
	} `json:"pull_request,omitempty"`
}

func (it itemStateResponse) toState() ItemState {
	merged := it.PullRequest != nil && it.PullRequest.MergedAt != nil
	return ItemState{State: it.State, Merged: merged}
}

type fileResponse struct {
	Filename string `json:"filename"`
}

// mergeableFromState maps GitHub's mergeable_state field per the
// documented cascade: clean/unstable/blocked settle to mergeable,
// dirty means real conflicts, anything else (including GitHub still
// computing it) is unknown.
func mergeableFromState(state string) string {
	switch state {
	case "clean", "unstable", "blocked":
		return "MERGEABLE"
	case "dirty":
		return "CONFLICTING"
	default:
		return "UNKNOWN"
	}
}

func (it issueResponse) toRecord(repo string) domain.IssueRecord {
	labels := make([]string, 0, len(it.Labels))
	for _, l := range it.Labels {
		labels = append(labels, l.Name)
	}

	return domain.IssueRecord{
		Number:      it.Number,
		Repo:        repo,
		Title:       it.Title,
		Body:        it.Body,
		Author:      it.User.Login,
		AuthorAssoc: it.AuthorAssociation,
		CreatedAt:   it.CreatedAt,
		UpdatedAt:   it.UpdatedAt,
		Labels:      labels,
		Comments:    it.Comments,
		Reactions:   it.Reactions.TotalCount,
	}
}
