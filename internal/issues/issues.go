// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package issues files a GitHub issue for each paper the classifier marks
// relevant, so new reading shows up in the team's tracker.
package issues

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// ErrNoToken is returned by NewFiler when no GitHub token is configured.
var ErrNoToken = errors.New("GitHub token not set")

const titlePrefix = "New paper: "

// Filer opens issues on one repository.
type Filer struct {
	client *github.Client
	owner  string
	repo   string
	labels []string
	logger *zap.Logger
}

// NewFiler authenticates with cfg.Token and targets cfg.Repository.
func NewFiler(ctx context.Context, cfg types.IssuesConfig, logger *zap.Logger) (*Filer, error) {
	if cfg.Token == "" {
		return nil, ErrNoToken
	}
	owner, repo, err := splitRepository(cfg.Repository)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	return &Filer{
		client: github.NewClient(oauth2.NewClient(ctx, ts)),
		owner:  owner,
		repo:   repo,
		labels: cfg.Labels,
		logger: logger,
	}, nil
}

func splitRepository(s string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("repository %q: want owner/name", s)
	}
	return owner, repo, nil
}

// File opens an issue for rec unless an open issue with the same title
// already exists. It reports whether a new issue was created.
func (f *Filer) File(ctx context.Context, rec types.PaperRecord, v types.Verdict) (bool, error) {
	title := Title(rec)

	exists, err := f.openIssueExists(ctx, title)
	if err != nil {
		return false, fmt.Errorf("searching issues for %s: %w", rec.DOI, err)
	}
	if exists {
		f.logger.Debug("issue already open", zap.String("doi", rec.DOI), zap.String("title", title))
		return false, nil
	}

	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(Body(rec, v)),
	}
	if len(f.labels) > 0 {
		labels := append([]string(nil), f.labels...)
		req.Labels = &labels
	}

	issue, _, err := f.client.Issues.Create(ctx, f.owner, f.repo, req)
	if err != nil {
		return false, fmt.Errorf("creating issue for %s: %w", rec.DOI, err)
	}
	f.logger.Info("filed issue",
		zap.String("doi", rec.DOI),
		zap.Int("number", issue.GetNumber()),
		zap.String("url", issue.GetHTMLURL()))
	return true, nil
}

// openIssueExists searches open issues by title. Search matching is fuzzy,
// so hits are compared exactly.
func (f *Filer) openIssueExists(ctx context.Context, title string) (bool, error) {
	q := fmt.Sprintf("repo:%s/%s is:issue is:open in:title %q", f.owner, f.repo, strings.ReplaceAll(title, `"`, ""))
	res, _, err := f.client.Search.Issues(ctx, q, &github.SearchOptions{
		ListOptions: github.ListOptions{PerPage: 50},
	})
	if err != nil {
		return false, err
	}
	for _, is := range res.Issues {
		if is.GetTitle() == title {
			return true, nil
		}
	}
	return false, nil
}

// Title is the issue title for rec; papers without a title use their DOI.
func Title(rec types.PaperRecord) string {
	if t := types.Deref(rec.Title); t != "" {
		return titlePrefix + t
	}
	return titlePrefix + rec.DOI
}

// Body renders the issue description.
func Body(rec types.PaperRecord, v types.Verdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Paper: %s\n\n", types.Deref(rec.Title))
	fmt.Fprintf(&b, "Authors: %s\n\n", types.Deref(rec.Authors))
	fmt.Fprintf(&b, "Abstract: %s\n\n", types.Deref(rec.Abstract))
	fmt.Fprintf(&b, "Link: %s", rec.DOI)
	if len(v.Architectures) > 0 {
		fmt.Fprintf(&b, "\n\nArchitectures: %s", strings.Join(v.Architectures, ", "))
	}
	if v.Reason != "" {
		fmt.Fprintf(&b, "\n\nWhy: %s", v.Reason)
	}
	return b.String()
}
