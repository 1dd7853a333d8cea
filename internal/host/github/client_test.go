package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mahsumaktas/treliq/internal/host/ratelimit"
	"github.com/stretchr/testify/require"
)

func TestListOpenPullRequestsPaginatesAndMaps(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("X-RateLimit-Limit", "5000")
		w.Header().Set("X-RateLimit-Remaining", "4999")
		w.Header().Set("X-RateLimit-Reset", "2000000000")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`[{"number":1,"title":"fix bug","body":"fixes #9","user":{"login":"alice"},"author_association":"MEMBER","head":{"sha":"abc"},"base":{"ref":"main"}}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	gov := ratelimit.NewGovernor()
	c := New("tok", srv.URL, gov)
	c.SetHTTPClient(srv.Client())

	prs, err := c.ListOpenPullRequests(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Len(t, prs, 1)
	require.Equal(t, "alice", prs[0].Author)
	require.Equal(t, []int{9}, prs[0].LinkedIssues)
	require.Equal(t, 4999, gov.Remaining())
}

func TestListOpenIssuesSkipsPullRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`[
				{"number":1,"title":"real issue","user":{"login":"bob"}},
				{"number":2,"title":"cross-listed pr","user":{"login":"bob"},"pull_request":{}}
			]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	issues, err := c.ListOpenIssues(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	require.Equal(t, 1, issues[0].Number)
}

func TestCloseIssueUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message":"Bad credentials"}`))
	}))
	defer srv.Close()

	c := New("bad-token", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	err := c.CloseIssue(context.Background(), "acme", "widgets", 1, "")
	require.Error(t, err)
}

func TestListOpenPullRequestsLiteReturnsMinimalFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`[{"number":5,"updated_at":"2026-01-01T00:00:00Z","head":{"sha":"deadbeef"}}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	lite, err := c.ListOpenPullRequestsLite(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Len(t, lite, 1)
	require.Equal(t, 5, lite[0].Number)
	require.Equal(t, "deadbeef", lite[0].HeadSHA)
}

func TestGetPRFilesPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "1" {
			w.Write([]byte(`[{"filename":"main.go"}]`))
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	files, err := c.GetPRFiles(context.Background(), "acme", "widgets", 1)
	require.NoError(t, err)
	require.Equal(t, []string{"main.go"}, files)
}

func TestGetCodeownersTriesConventionalLocations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/repos/acme/widgets/contents/.github/CODEOWNERS" {
			w.Write([]byte("*.go @alice\n"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	rules, err := c.GetCodeowners(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, []string{"@alice"}, rules[0].Owners)
}

func TestGetCodeownersReturnsNilWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	rules, err := c.GetCodeowners(context.Background(), "acme", "widgets")
	require.NoError(t, err)
	require.Nil(t, rules)
}

func TestGetUserProfileParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"login":"alice","created_at":"2018-01-01T00:00:00Z","public_repos":30,"followers":120}`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	profile, err := c.GetUserProfile(context.Background(), "alice")
	require.NoError(t, err)
	require.Equal(t, "alice", profile.Login)
	require.Equal(t, 30, profile.PublicRepos)
}

func TestGetItemStateDetectsMerged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"state":"closed","pull_request":{"merged_at":"2026-01-01T00:00:00Z"}}`))
	}))
	defer srv.Close()

	c := New("tok", srv.URL, nil)
	c.SetHTTPClient(srv.Client())

	state, err := c.GetItemState(context.Background(), "acme", "widgets", 1)
	require.NoError(t, err)
	require.Equal(t, "closed", state.State)
	require.True(t, state.Merged)
}
