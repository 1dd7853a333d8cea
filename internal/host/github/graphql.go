package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/llm/retry"
)

// pullRequestsGraphQLQuery fetches every field ListOpenPullRequests'
// REST fallback otherwise needs four separate calls per PR to gather:
// details, changed files, the commit's check-run rollup, and reviews.
const pullRequestsGraphQLQuery = `query($owner: String!, $name: String!, $after: String) {
  repository(owner: $owner, name: $name) {
    pullRequests(states: OPEN, first: 100, after: $after) {
      nodes {
        number title body authorAssociation createdAt updatedAt
        additions deletions changedFiles isDraft mergeStateStatus
        headRefOid baseRefName
        author { login }
        comments { totalCount }
        labels(first: 20) { nodes { name } }
        files(first: 100) { nodes { path } }
        reviews(first: 50) { nodes { state } }
        commits(last: 1) { nodes { commit { statusCheckRollup { state } } } }
      }
      pageInfo { hasNextPage endCursor }
    }
  }
}`

const pullRequestGraphQLQuery = `query($owner: String!, $name: String!, $number: Int!) {
  repository(owner: $owner, name: $name) {
    pullRequest(number: $number) {
      number title body authorAssociation createdAt updatedAt
      additions deletions changedFiles isDraft mergeStateStatus
      headRefOid baseRefName
      author { login }
      comments { totalCount }
      labels(first: 20) { nodes { name } }
      files(first: 100) { nodes { path } }
      reviews(first: 50) { nodes { state } }
      commits(last: 1) { nodes { commit { statusCheckRollup { state } } } }
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
}

type graphqlPRNode struct {
	Number            int    `json:"number"`
	Title             string `json:"title"`
	Body              string `json:"body"`
	AuthorAssociation string `json:"authorAssociation"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Additions         int    `json:"additions"`
	Deletions         int    `json:"deletions"`
	ChangedFiles      int    `json:"changedFiles"`
	IsDraft           bool   `json:"isDraft"`
	MergeStateStatus  string `json:"mergeStateStatus"`
	HeadRefOid        string `json:"headRefOid"`
	BaseRefName       string `json:"baseRefName"`
	Author            struct {
		Login string `json:"login"`
	} `json:"author"`
	Comments struct {
		TotalCount int `json:"totalCount"`
	} `json:"comments"`
	Labels struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"labels"`
	Files struct {
		Nodes []struct {
			Path string `json:"path"`
		} `json:"nodes"`
	} `json:"files"`
	Reviews struct {
		Nodes []struct {
			State string `json:"state"`
		} `json:"nodes"`
	} `json:"reviews"`
	Commits struct {
		Nodes []struct {
			Commit struct {
				StatusCheckRollup *struct {
					State string `json:"state"`
				} `json:"statusCheckRollup"`
			} `json:"commit"`
		} `json:"nodes"`
	} `json:"commits"`
}

func (n graphqlPRNode) toRecord(repo string) domain.PRRecord {
	labels := make([]string, 0, len(n.Labels.Nodes))
	for _, l := range n.Labels.Nodes {
		labels = append(labels, l.Name)
	}
	files := make([]string, 0, len(n.Files.Nodes))
	for _, f := range n.Files.Nodes {
		files = append(files, f.Path)
	}
	reviewStates := make([]string, 0, len(n.Reviews.Nodes))
	for _, r := range n.Reviews.Nodes {
		reviewStates = append(reviewStates, r.State)
	}

	ciStatus := "none"
	if len(n.Commits.Nodes) > 0 {
		rollup := n.Commits.Nodes[0].Commit.StatusCheckRollup
		if rollup != nil {
			ciStatus = ciStatusFromRollupState(rollup.State)
		}
	}

	return domain.PRRecord{
		Number:        n.Number,
		Repo:          repo,
		Title:         n.Title,
		Body:          n.Body,
		Author:        n.Author.Login,
		AuthorAssoc:   n.AuthorAssociation,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
		HeadSHA:       n.HeadRefOid,
		BaseBranch:    n.BaseRefName,
		Additions:     n.Additions,
		Deletions:     n.Deletions,
		ChangedFiles:  n.ChangedFiles,
		Draft:         n.IsDraft,
		Mergeable:     mergeableFromState(strings.ToLower(n.MergeStateStatus)),
		FilePaths:     files,
		CIStatus:      ciStatus,
		ReviewState:   reviewStateFrom(reviewStates),
		ReviewCount:   len(reviewStates),
		Labels:        labels,
		LinkedIssues:  ExtractIssueRefs(n.Title + "\n" + n.Body),
		CommentsCount: n.Comments.TotalCount,
	}
}

type graphqlPullRequestsResponse struct {
	Data struct {
		Repository struct {
			PullRequests struct {
				Nodes    []graphqlPRNode `json:"nodes"`
				PageInfo struct {
					HasNextPage bool   `json:"hasNextPage"`
					EndCursor   string `json:"endCursor"`
				} `json:"pageInfo"`
			} `json:"pullRequests"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

type graphqlPullRequestResponse struct {
	Data struct {
		Repository struct {
			PullRequest *graphqlPRNode `json:"pullRequest"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// graphqlListOpenPullRequests is the primary path for fetching every
// open PR: a single paginated query carries details, files, CI rollup,
// and reviews together, which REST can only do with four calls per PR.
func (c *Client) graphqlListOpenPullRequests(ctx context.Context, owner, repo string) ([]domain.PRRecord, error) {
	var all []domain.PRRecord
	after := ""
	for {
		variables := map[string]any{"owner": owner, "name": repo}
		if after != "" {
			variables["after"] = after
		}

		var resp graphqlPullRequestsResponse
		if err := c.postGraphQL(ctx, pullRequestsGraphQLQuery, variables, &resp); err != nil {
			return nil, err
		}
		if len(resp.Errors) > 0 {
			return nil, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
		}

		repoSlug := owner + "/" + repo
		for _, node := range resp.Data.Repository.PullRequests.Nodes {
			all = append(all, node.toRecord(repoSlug))
		}

		page := resp.Data.Repository.PullRequests.PageInfo
		if !page.HasNextPage {
			break
		}
		after = page.EndCursor
	}
	return all, nil
}

// graphqlPullRequest is the primary path for fetching a single open
// PR.
func (c *Client) graphqlPullRequest(ctx context.Context, owner, repo string, number int) (domain.PRRecord, error) {
	variables := map[string]any{"owner": owner, "name": repo, "number": number}

	var resp graphqlPullRequestResponse
	if err := c.postGraphQL(ctx, pullRequestGraphQLQuery, variables, &resp); err != nil {
		return domain.PRRecord{}, err
	}
	if len(resp.Errors) > 0 {
		return domain.PRRecord{}, fmt.Errorf("graphql: %s", resp.Errors[0].Message)
	}
	if resp.Data.Repository.PullRequest == nil {
		return domain.PRRecord{}, fmt.Errorf("graphql: pull request %d not found", number)
	}
	return resp.Data.Repository.PullRequest.toRecord(owner + "/" + repo), nil
}

// postGraphQL issues a single GraphQL POST, sharing the REST client's
// retry, rate-limit-probe, and error-mapping plumbing.
func (c *Client) postGraphQL(ctx context.Context, query string, variables map[string]any, out any) error {
	jsonBody, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}
	apiURL := c.baseURL + "/graphql"

	return retry.Do(ctx, func(ctx context.Context) error {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(jsonBody))
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: "host"}
		}
		c.setHeaders(req)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.NewTimeoutError("host", err.Error())
		}
		defer resp.Body.Close()
		c.observeRateLimit(resp)

		body, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, body, resp.Header.Get("Retry-After"))
		}
		if readErr != nil {
			return fmt.Errorf("read graphql response: %w", readErr)
		}
		return json.Unmarshal(body, out)
	}, c.retryConf)
}

// ciStatusFromRollupState maps GraphQL's StatusCheckRollupState enum
// onto the same success/failure/pending/none vocabulary the REST path
// derives from check runs and combined status.
func ciStatusFromRollupState(state string) string {
	switch state {
	case "SUCCESS":
		return "success"
	case "FAILURE", "ERROR":
		return "failure"
	case "PENDING", "EXPECTED":
		return "pending"
	default:
		return "none"
	}
}
