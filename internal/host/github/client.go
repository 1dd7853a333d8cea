// Package github implements the HostClient port against the GitHub REST
// and GraphQL APIs: fetching open PRs/issues, their diffs and check
// status, and posting triage actions back.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mahsumaktas/treliq/internal/domain"
	"github.com/mahsumaktas/treliq/internal/host/ratelimit"
	"github.com/mahsumaktas/treliq/internal/llm/retry"
)

// restFallbackConcurrency bounds how many PRs the REST fallback fetches
// in flight at once, since each one costs four parallel calls of its
// own (details, files, checks, reviews).
const restFallbackConcurrency = 8

const (
	defaultBaseURL    = "https://api.github.com"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
)

// Client is the HostClient implementation backed by GitHub.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	retryConf  retry.Config
	governor   *ratelimit.Governor
}

// New constructs a Client. baseURL is typically
// "https://api.github.com"; pass a GitHub Enterprise URL to target a
// self-hosted instance.
func New(token, baseURL string, governor *ratelimit.Governor) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		token:      token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		retryConf: retry.Config{
			MaxRetries:     defaultMaxRetries,
			InitialBackoff: 2 * time.Second,
			MaxBackoff:     32 * time.Second,
			Multiplier:     2.0,
		},
		governor: governor,
	}
}

// SetHTTPClient overrides the transport, used by tests to point at an
// httptest.Server.
func (c *Client) SetHTTPClient(hc *http.Client) { c.httpClient = hc }

// LightPR is the minimal shape fetched on a cache hit: just enough to
// decide, per PR, whether it needs re-scoring.
type LightPR struct {
	Number    int
	UpdatedAt string
	HeadSHA   string
}

// ListOpenPullRequestsLite fetches number/updatedAt/headSha for every
// open PR, used on a cache hit to split the queue into cached and
// to-fetch without paying for the full PR payload.
func (c *Client) ListOpenPullRequestsLite(ctx context.Context, owner, repo string) ([]LightPR, error) {
	var all []LightPR
	page := 1
	for {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open&per_page=100&page=%d",
			c.baseURL, url.PathEscape(owner), url.PathEscape(repo), page)

		var pulls []pullResponse
		if err := c.getJSON(ctx, apiURL, &pulls); err != nil {
			return nil, err
		}
		if len(pulls) == 0 {
			break
		}
		for _, p := range pulls {
			all = append(all, LightPR{Number: p.Number, UpdatedAt: p.UpdatedAt.Format(time.RFC3339), HeadSHA: p.Head.SHA})
		}
		if len(pulls) < 100 {
			break
		}
		page++
	}
	return all, nil
}

// GetPullRequest fetches the full record for a single open PR, trying
// the GraphQL primary path first and falling back to REST (four
// parallel calls: details, files, check runs, reviews) on any error.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (domain.PRRecord, error) {
	if record, err := c.graphqlPullRequest(ctx, owner, repo, number); err == nil {
		return record, nil
	}
	return c.getPullRequestREST(ctx, owner, repo, number)
}

// getPullRequestREST is the documented REST fallback for GetPullRequest.
// It fetches the PR's own details first (mergeable state and the head
// SHA checks are keyed off live there), then fans the remaining three
// calls out in parallel.
func (c *Client) getPullRequestREST(ctx context.Context, owner, repo string, number int) (domain.PRRecord, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	var p pullResponse
	if err := c.getJSON(ctx, apiURL, &p); err != nil {
		return domain.PRRecord{}, err
	}
	record := p.toRecord(fmt.Sprintf("%s/%s", owner, repo))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		files, err := c.GetPRFiles(gctx, owner, repo, number)
		if err == nil {
			record.FilePaths = files
		}
		return nil
	})
	g.Go(func() error {
		conclusions, combined, err := c.getCheckStatus(gctx, owner, repo, p.Head.SHA)
		if err == nil {
			record.CIStatus = ciStatusFromChecks(conclusions, combined)
		}
		return nil
	})
	g.Go(func() error {
		states, err := c.getReviewStates(gctx, owner, repo, number)
		if err == nil {
			record.ReviewState = reviewStateFrom(states)
			record.ReviewCount = len(states)
		}
		return nil
	})
	_ = g.Wait() // each sub-fetch degrades its own field on error rather than failing the PR

	return record, nil
}

// getCheckStatus returns per-check-run conclusions for sha, falling
// back to the combined commit status when the repo has no check runs
// configured (older CI setups that only post commit statuses).
func (c *Client) getCheckStatus(ctx context.Context, owner, repo, sha string) (conclusions []string, combinedState string, err error) {
	if sha == "" {
		return nil, "", nil
	}

	apiURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s/check-runs", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), sha)
	var checkResp checkRunsResponse
	if err := c.getJSON(ctx, apiURL, &checkResp); err != nil {
		return nil, "", err
	}
	if len(checkResp.CheckRuns) > 0 {
		out := make([]string, 0, len(checkResp.CheckRuns))
		for _, r := range checkResp.CheckRuns {
			out = append(out, r.Conclusion)
		}
		return out, "", nil
	}

	statusURL := fmt.Sprintf("%s/repos/%s/%s/commits/%s/status", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), sha)
	var statusResp combinedStatusResponse
	if err := c.getJSON(ctx, statusURL, &statusResp); err != nil {
		return nil, "", err
	}
	return nil, statusResp.State, nil
}

// getReviewStates returns the state of every submitted review on a PR,
// in submission order, for reviewStateFrom to fold into one verdict.
func (c *Client) getReviewStates(ctx context.Context, owner, repo string, number int) ([]string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/reviews?per_page=100", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	var reviews []reviewResponse
	if err := c.getJSON(ctx, apiURL, &reviews); err != nil {
		return nil, err
	}
	states := make([]string, 0, len(reviews))
	for _, r := range reviews {
		states = append(states, r.State)
	}
	return states, nil
}

// ciStatusFromChecks folds check-run conclusions (preferred) or a
// combined commit status (fallback) into one verdict: any failure
// fails the PR, all-success passes it, anything else is still pending.
func ciStatusFromChecks(conclusions []string, combinedState string) string {
	if len(conclusions) > 0 {
		hasFailure := false
		allSuccess := true
		for _, c := range conclusions {
			c = strings.ToLower(c)
			if c == "failure" || c == "timed_out" || c == "cancelled" || c == "action_required" {
				hasFailure = true
			}
			if c != "success" {
				allSuccess = false
			}
		}
		switch {
		case hasFailure:
			return "failure"
		case allSuccess:
			return "success"
		default:
			return "pending"
		}
	}
	switch strings.ToLower(combinedState) {
	case "success":
		return "success"
	case "failure", "error":
		return "failure"
	case "pending":
		return "pending"
	default:
		return "none"
	}
}

// reviewStateFrom folds individual review submissions into a single
// verdict: an approval wins outright, otherwise outstanding change
// requests win over mere comments.
func reviewStateFrom(states []string) string {
	seen := make(map[string]bool, len(states))
	for _, s := range states {
		seen[strings.ToUpper(s)] = true
	}
	switch {
	case seen["APPROVED"]:
		return "approved"
	case seen["CHANGES_REQUESTED"]:
		return "changes_requested"
	case seen["COMMENTED"]:
		return "commented"
	default:
		return "none"
	}
}

// GetPRFiles returns the changed file paths for a PR.
func (c *Client) GetPRFiles(ctx context.Context, owner, repo string, number int) ([]string, error) {
	var all []string
	page := 1
	for {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=100&page=%d",
			c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number, page)

		var files []fileResponse
		if err := c.getJSON(ctx, apiURL, &files); err != nil {
			return nil, err
		}
		if len(files) == 0 {
			break
		}
		for _, f := range files {
			all = append(all, f.Filename)
		}
		if len(files) < 100 {
			break
		}
		page++
	}
	return all, nil
}

// GetCodeowners fetches and parses the repository's CODEOWNERS file,
// trying the conventional locations in order. Returns nil rules (not
// an error) if none of them exist, since most repositories have none.
func (c *Client) GetCodeowners(ctx context.Context, owner, repo string) ([]CodeownersRule, error) {
	for _, candidate := range []string{".github/CODEOWNERS", "CODEOWNERS", "docs/CODEOWNERS"} {
		body, err := c.getRawFile(ctx, owner, repo, candidate)
		if err != nil {
			continue
		}
		return ParseCodeowners(body), nil
	}
	return nil, nil
}

func (c *Client) getRawFile(ctx context.Context, owner, repo, path string) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), path)

	var body []byte
	err := retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: "host"}
		}
		c.setHeaders(req)
		req.Header.Set("Accept", "application/vnd.github.raw")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.NewTimeoutError("host", err.Error())
		}
		defer resp.Body.Close()
		c.observeRateLimit(resp)

		b, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, b, resp.Header.Get("Retry-After"))
		}
		if readErr != nil {
			return fmt.Errorf("read file body: %w", readErr)
		}
		body = b
		return nil
	}, c.retryConf)

	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ListOpenPullRequests fetches every open PR for owner/repo, trying the
// GraphQL primary path (one round trip per 100 PRs) first and falling
// back to REST on any error.
func (c *Client) ListOpenPullRequests(ctx context.Context, owner, repo string) ([]domain.PRRecord, error) {
	if prs, err := c.graphqlListOpenPullRequests(ctx, owner, repo); err == nil {
		return prs, nil
	}
	return c.restListOpenPullRequests(ctx, owner, repo)
}

// restListOpenPullRequests is the documented REST fallback: it lists PR
// numbers cheaply, then fetches each one's full record (details, files,
// checks, reviews) through getPullRequestREST, bounded to
// restFallbackConcurrency in flight at a time. A PR whose fetch fails
// is omitted rather than failing the whole listing.
func (c *Client) restListOpenPullRequests(ctx context.Context, owner, repo string) ([]domain.PRRecord, error) {
	lite, err := c.ListOpenPullRequestsLite(ctx, owner, repo)
	if err != nil {
		return nil, err
	}

	records := make([]domain.PRRecord, len(lite))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(restFallbackConcurrency)
	for i, l := range lite {
		i, number := i, l.Number
		g.Go(func() error {
			record, err := c.getPullRequestREST(gctx, owner, repo, number)
			if err != nil {
				return nil
			}
			records[i] = record
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.PRRecord, 0, len(records))
	for _, r := range records {
		if r.Number != 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListOpenIssues fetches every open issue (excluding pull requests,
// which GitHub's issues endpoint also returns) for owner/repo.
func (c *Client) ListOpenIssues(ctx context.Context, owner, repo string) ([]domain.IssueRecord, error) {
	var all []domain.IssueRecord
	page := 1
	for {
		apiURL := fmt.Sprintf("%s/repos/%s/%s/issues?state=open&per_page=100&page=%d",
			c.baseURL, url.PathEscape(owner), url.PathEscape(repo), page)

		var issues []issueResponse
		if err := c.getJSON(ctx, apiURL, &issues); err != nil {
			return nil, err
		}
		if len(issues) == 0 {
			break
		}
		for _, it := range issues {
			if it.PullRequest != nil {
				continue // cross-listed PR, not a true issue
			}
			all = append(all, it.toRecord(fmt.Sprintf("%s/%s", owner, repo)))
		}
		if len(issues) < 100 {
			break
		}
		page++
	}
	return all, nil
}

// FetchDiff returns the unified diff for a pull request as text, using
// GitHub's diff media type rather than checking out the repository.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)

	var body []byte
	err := retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: "host"}
		}
		c.setHeaders(req)
		req.Header.Set("Accept", "application/vnd.github.v3.diff")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return retry.NewTimeoutError("host", err.Error())
		}
		defer resp.Body.Close()
		c.observeRateLimit(resp)

		b, readErr := io.ReadAll(resp.Body)
		if resp.StatusCode >= 400 {
			return mapHTTPError(resp.StatusCode, b, resp.Header.Get("Retry-After"))
		}
		if readErr != nil {
			return fmt.Errorf("read diff body: %w", readErr)
		}
		body = b
		return nil
	}, c.retryConf)

	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetUserProfile fetches public profile fields used to compute a
// contributor's reputation score.
func (c *Client) GetUserProfile(ctx context.Context, login string) (UserProfile, error) {
	apiURL := fmt.Sprintf("%s/users/%s", c.baseURL, url.PathEscape(login))
	var u userProfileResponse
	if err := c.getJSON(ctx, apiURL, &u); err != nil {
		return UserProfile{}, err
	}
	return u.toProfile(), nil
}

// GetItemState fetches the live state of a PR or issue so the executor
// can skip re-acting on something already closed or merged.
func (c *Client) GetItemState(ctx context.Context, owner, repo string, number int) (ItemState, error) {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	var it itemStateResponse
	if err := c.getJSON(ctx, apiURL, &it); err != nil {
		return ItemState{}, err
	}
	return it.toState(), nil
}

// CloseIssue closes a PR or issue (the REST model is identical for both
// once a number is known) with an optional closing comment.
func (c *Client) CloseIssue(ctx context.Context, owner, repo string, number int, comment string) error {
	if comment != "" {
		if err := c.postComment(ctx, owner, repo, number, comment); err != nil {
			return err
		}
	}
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	return c.patchJSON(ctx, apiURL, map[string]string{"state": "closed"})
}

// AddLabel applies a label to a PR or issue.
func (c *Client) AddLabel(ctx context.Context, owner, repo string, number int, label string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/labels", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	return c.postJSON(ctx, apiURL, map[string][]string{"labels": {label}}, nil)
}

// MergePullRequest merges a PR using the given merge method
// ("merge", "squash", or "rebase").
func (c *Client) MergePullRequest(ctx context.Context, owner, repo string, number int, method string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/merge", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	return c.putJSON(ctx, apiURL, map[string]string{"merge_method": method})
}

func (c *Client) postComment(ctx context.Context, owner, repo string, number int, body string) error {
	apiURL := fmt.Sprintf("%s/repos/%s/%s/issues/%d/comments", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), number)
	return c.postJSON(ctx, apiURL, map[string]string{"body": body}, nil)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func (c *Client) observeRateLimit(resp *http.Response) {
	if c.governor == nil {
		return
	}
	c.governor.Observe(
		resp.Header.Get("X-RateLimit-Limit"),
		resp.Header.Get("X-RateLimit-Remaining"),
		resp.Header.Get("X-RateLimit-Reset"),
	)
}

// waitForRateLimit pauses until the governor says the budget has
// headroom again, so every outbound call probes the rate limit before
// dispatch instead of only learning about it from the response that
// follows. It is a no-op until the first response has been observed.
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.governor == nil {
		return nil
	}
	wait := c.governor.WaitDuration(time.Now())
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) getJSON(ctx context.Context, apiURL string, out any) error {
	return retry.Do(ctx, func(ctx context.Context) error {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
		if err != nil {
			return &retry.Error{Type: retry.ErrTypeUnknown, Message: err.Error(), Source: "host"}
		}
		c.setHeaders(req)

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
			return fmt.Errorf("read response: %w", readErr)
		}
		return json.Unmarshal(body, out)
	}, c.retryConf)
}

func (c *Client) postJSON(ctx context.Context, apiURL string, payload any, out any) error {
	return c.sendJSON(ctx, http.MethodPost, apiURL, payload, out)
}

func (c *Client) putJSON(ctx context.Context, apiURL string, payload any) error {
	return c.sendJSON(ctx, http.MethodPut, apiURL, payload, nil)
}

func (c *Client) patchJSON(ctx context.Context, apiURL string, payload any) error {
	return c.sendJSON(ctx, http.MethodPatch, apiURL, payload, nil)
}

func (c *Client) sendJSON(ctx context.Context, method, apiURL string, payload any, out any) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	return retry.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, apiURL, bytes.NewReader(jsonBody))
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
		if out == nil || readErr != nil || len(body) == 0 {
			return nil
		}
		return json.Unmarshal(body, out)
	}, c.retryConf)
}
