// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package issues

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/google/go-github/v57/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-curator/pkg/types"
)

type fakeGitHub struct {
	mu      sync.Mutex
	open    []string
	created []github.IssueRequest
	auth    []string
	queries []string
}

func (g *fakeGitHub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /search/issues", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.auth = append(g.auth, r.Header.Get("Authorization"))
		g.queries = append(g.queries, r.URL.Query().Get("q"))
		items := make([]map[string]any, 0, len(g.open))
		for _, t := range g.open {
			items = append(items, map[string]any{"title": t})
		}
		json.NewEncoder(w).Encode(map[string]any{"total_count": len(items), "items": items})
	})
	mux.HandleFunc("POST /repos/acme/reading/issues", func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		var req github.IssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		g.created = append(g.created, req)
		g.open = append(g.open, req.GetTitle())
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"number":%d,"html_url":"https://github.com/acme/reading/issues/%d"}`, len(g.created), len(g.created))
	})
	return mux
}

func newTestFiler(t *testing.T, g *fakeGitHub, labels ...string) *Filer {
	t.Helper()
	ts := httptest.NewServer(g.handler())
	t.Cleanup(ts.Close)

	f, err := NewFiler(context.Background(), types.IssuesConfig{
		Enabled:    true,
		Repository: "acme/reading",
		Token:      "gh-token",
		Labels:     labels,
	}, nil)
	require.NoError(t, err)

	base, err := url.Parse(ts.URL + "/")
	require.NoError(t, err)
	f.client.BaseURL = base
	return f
}

var paper = types.PaperRecord{
	DOI:      "http://arxiv.org/abs/2101.00001",
	Title:    types.Ptr("Language Models for Chemistry"),
	Authors:  types.Ptr("A. One, B. Two"),
	Abstract: types.Ptr("We apply LLMs to molecules."),
}

func TestFileCreatesIssue(t *testing.T) {
	g := &fakeGitHub{}
	f := newTestFiler(t, g, "new-paper")

	filed, err := f.File(context.Background(), paper, types.Verdict{Relevant: true, Architectures: []string{"transformer"}})
	require.NoError(t, err)
	assert.True(t, filed)

	g.mu.Lock()
	defer g.mu.Unlock()
	require.Len(t, g.created, 1)
	req := g.created[0]
	assert.Equal(t, "New paper: Language Models for Chemistry", req.GetTitle())
	assert.Contains(t, req.GetBody(), "Paper: Language Models for Chemistry\n\nAuthors: A. One, B. Two")
	assert.Contains(t, req.GetBody(), "Link: http://arxiv.org/abs/2101.00001")
	assert.Contains(t, req.GetBody(), "Architectures: transformer")
	require.NotNil(t, req.Labels)
	assert.Equal(t, []string{"new-paper"}, *req.Labels)

	assert.Equal(t, []string{"Bearer gh-token"}, g.auth)
	require.Len(t, g.queries, 1)
	assert.Contains(t, g.queries[0], "repo:acme/reading")
	assert.Contains(t, g.queries[0], "is:open")
}

func TestFileSkipsOpenDuplicate(t *testing.T) {
	g := &fakeGitHub{}
	f := newTestFiler(t, g)

	first, err := f.File(context.Background(), paper, types.Verdict{Relevant: true})
	require.NoError(t, err)
	second, err := f.File(context.Background(), paper, types.Verdict{Relevant: true})
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	g.mu.Lock()
	defer g.mu.Unlock()
	assert.Len(t, g.created, 1)
	assert.Nil(t, g.created[0].Labels)
}

func TestFileIgnoresFuzzySearchHits(t *testing.T) {
	g := &fakeGitHub{open: []string{"New paper: Language Models for Chemistry, Revisited"}}
	f := newTestFiler(t, g)

	filed, err := f.File(context.Background(), paper, types.Verdict{Relevant: true})
	require.NoError(t, err)
	assert.True(t, filed)
}

func TestFileSearchError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"boom"}`, http.StatusInternalServerError)
	}))
	t.Cleanup(ts.Close)

	f, err := NewFiler(context.Background(), types.IssuesConfig{Repository: "acme/reading", Token: "t"}, nil)
	require.NoError(t, err)
	f.client.BaseURL, _ = url.Parse(ts.URL + "/")

	filed, err := f.File(context.Background(), paper, types.Verdict{})
	require.Error(t, err)
	assert.False(t, filed)
	assert.Contains(t, err.Error(), "searching issues")
}

func TestNewFilerValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  types.IssuesConfig
		want string
	}{
		{"no token", types.IssuesConfig{Repository: "acme/reading"}, "token"},
		{"no slash", types.IssuesConfig{Repository: "acme", Token: "t"}, "owner/name"},
		{"empty owner", types.IssuesConfig{Repository: "/reading", Token: "t"}, "owner/name"},
		{"too deep", types.IssuesConfig{Repository: "acme/reading/x", Token: "t"}, "owner/name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFiler(context.Background(), tt.cfg, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	_, err := NewFiler(context.Background(), types.IssuesConfig{}, nil)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestTitleFallsBackToDOI(t *testing.T) {
	assert.Equal(t, "New paper: http://arxiv.org/abs/9", Title(types.PaperRecord{DOI: "http://arxiv.org/abs/9"}))
	assert.Equal(t, "New paper: http://arxiv.org/abs/9", Title(types.PaperRecord{DOI: "http://arxiv.org/abs/9", Title: types.Ptr("")}))
}

func TestBodyFormat(t *testing.T) {
	got := Body(paper, types.Verdict{})
	assert.Equal(t, "Paper: Language Models for Chemistry\n\nAuthors: A. One, B. Two\n\nAbstract: We apply LLMs to molecules.\n\nLink: http://arxiv.org/abs/2101.00001", got)

	got = Body(types.PaperRecord{DOI: "x"}, types.Verdict{Reason: "uses GPT"})
	assert.Equal(t, "Paper: \n\nAuthors: \n\nAbstract: \n\nLink: x\n\nWhy: uses GPT", got)
}
