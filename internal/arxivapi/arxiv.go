// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package arxivapi reads paper metadata from arXiv. The Atom API fills in
// records the digest parser could only salvage and lists categories; the
// announcement RSS feed stands in for the digest mail when no mailbox is
// available.
package arxivapi

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-curator/internal/httputil"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// apiBase is the arXiv query endpoint. Declared as a var so tests can
// substitute an httptest server.
var apiBase = "https://export.arxiv.org/api/query"

// requestInterval is the spacing arXiv asks API clients to keep between calls.
const requestInterval = 3 * time.Second

// ErrNotFound is returned by Lookup when arXiv has no entry for the ID.
var ErrNotFound = errors.New("arxiv entry not found")

// DefaultCategories are polled by the api and rss sources when none are configured.
var DefaultCategories = []string{
	"cs.AI", "cs.CL", "cs.CV", "cs.LG", "cs.NE", "cs.FL", "cs.GT", "stat.ML", "physics.chem-ph",
}

// Client queries the arXiv API.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Limiter   *rate.Limiter
	Logger    *zap.Logger

	// MaxRetries bounds retries on 429/503 (0 uses the httputil default).
	MaxRetries int
}

// New returns a Client that honours arXiv's request spacing.
func New(cfg types.HTTPConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		HTTP:      &http.Client{Timeout: cfg.Timeout},
		UserAgent: cfg.UserAgent,
		Limiter:   rate.NewLimiter(rate.Every(requestInterval), 1),
		Logger:    logger,
	}
}

// Lookup fetches the metadata of a single paper by arXiv ID.
func (c *Client) Lookup(ctx context.Context, id string) (types.PaperRecord, error) {
	if id == "" {
		return types.PaperRecord{}, fmt.Errorf("looking up arxiv entry: empty id")
	}
	feed, err := c.query(ctx, url.Values{"id_list": {id}})
	if err != nil {
		return types.PaperRecord{}, fmt.Errorf("looking up %s: %w", id, err)
	}
	for _, e := range feed.Entries {
		if rec, ok := e.record(); ok && types.Deref(rec.ArxivID) == id {
			return rec, nil
		}
	}
	return types.PaperRecord{}, fmt.Errorf("looking up %s: %w", id, ErrNotFound)
}

// Recent lists the most recently updated papers in a category, newest first.
func (c *Client) Recent(ctx context.Context, category string, maxResults int) ([]types.PaperRecord, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	params := url.Values{
		"search_query": {"cat:" + category},
		"start":        {"0"},
		"max_results":  {strconv.Itoa(maxResults)},
		"sortBy":       {"lastUpdatedDate"},
		"sortOrder":    {"descending"},
	}
	feed, err := c.query(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", category, err)
	}
	var records []types.PaperRecord
	for _, e := range feed.Entries {
		if rec, ok := e.record(); ok {
			records = append(records, rec)
		}
	}
	c.Logger.Debug("listed category", zap.String("category", category), zap.Int("papers", len(records)))
	return records, nil
}

func (c *Client) query(ctx context.Context, params url.Values) (*feed, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("arXiv API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("arXiv API returned HTTP %d", resp.StatusCode)
	}

	var f feed
	if err := xml.NewDecoder(resp.Body).Decode(&f); err != nil {
		return nil, fmt.Errorf("parsing arXiv response: %w", err)
	}
	return &f, nil
}

// arXiv Atom feed XML structures.
type feed struct {
	Entries []entry `xml:"entry"`
}

type entry struct {
	ID         string     `xml:"id"`
	Title      string     `xml:"title"`
	Summary    string     `xml:"summary"`
	Published  string     `xml:"published"`
	Authors    []author   `xml:"author"`
	Categories []category `xml:"category"`
}

type author struct {
	Name string `xml:"name"`
}

type category struct {
	Term string `xml:"term,attr"`
}

// record converts an Atom entry. Error entries (arXiv reports bad IDs as a
// single entry with an api/errors id) yield false.
func (e entry) record() (types.PaperRecord, bool) {
	id := ExtractID(e.ID)
	if id == "" {
		return types.PaperRecord{}, false
	}

	rec := types.PaperRecord{
		DOI:      canonicalDOI(e.ID),
		ArxivID:  types.Ptr(id),
		Title:    types.Ptr(collapse(e.Title)),
		Abstract: types.Ptr(collapse(e.Summary)),
	}

	names := make([]string, 0, len(e.Authors))
	for _, a := range e.Authors {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		rec.Authors = types.Ptr(strings.Join(names, ", "))
	}

	terms := make([]string, 0, len(e.Categories))
	for _, c := range e.Categories {
		if c.Term != "" {
			terms = append(terms, c.Term)
		}
	}
	if len(terms) > 0 {
		rec.Categories = types.Ptr(strings.Join(terms, " "))
	}

	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
		rec.Date = types.Ptr(digestDate(t))
	}
	return rec, true
}

// digestDate renders t the way digest mails print dates, always in GMT.
func digestDate(t time.Time) string {
	return t.UTC().Format("Mon, 2 Jan 2006 15:04:05") + " GMT"
}

// ExtractID pulls the arXiv ID from an abs URL
// (e.g. "http://arxiv.org/abs/2301.07041v1" -> "2301.07041").
func ExtractID(absURL string) string {
	const prefix = "/abs/"
	idx := strings.Index(absURL, prefix)
	if idx < 0 {
		return ""
	}
	id := strings.TrimSpace(absURL[idx+len(prefix):])
	id = strings.TrimRight(id, "/")

	if vIdx := strings.LastIndex(id, "v"); vIdx > 0 {
		if _, err := strconv.Atoi(id[vIdx+1:]); err == nil {
			id = id[:vIdx]
		}
	}
	return id
}

// canonicalDOI drops the version suffix so API records line up with the
// unversioned links printed in digests.
func canonicalDOI(absURL string) string {
	id := ExtractID(absURL)
	idx := strings.Index(absURL, "/abs/")
	return absURL[:idx+len("/abs/")] + id
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
