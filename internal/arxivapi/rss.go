// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxivapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// rssBase serves the daily announcement feeds, one path per "+"-joined
// category list.
var rssBase = "https://rss.arxiv.org/rss/"

// RSSFeed reads the daily announcement feed: the same papers a digest mail
// lists, without the mailbox. Replacement announcements are skipped.
type RSSFeed struct {
	HTTP       *http.Client
	UserAgent  string
	Categories []string
	Logger     *zap.Logger
}

// NewRSSFeed returns a feed over categories, or DefaultCategories when none
// are given.
func NewRSSFeed(cfg types.HTTPConfig, categories []string, logger *zap.Logger) *RSSFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(categories) == 0 {
		categories = DefaultCategories
	}
	return &RSSFeed{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		Categories: categories,
		Logger:     logger,
	}
}

// Records fetches today's announcements for all categories in one request.
func (f *RSSFeed) Records(ctx context.Context) ([]types.PaperRecord, error) {
	fp := gofeed.NewParser()
	fp.Client = f.HTTP
	if f.UserAgent != "" {
		fp.UserAgent = f.UserAgent
	}

	feedURL := rssBase + strings.Join(f.Categories, "+")
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("reading arXiv RSS %s: %w", feedURL, err)
	}

	seen := make(map[string]bool)
	var out []types.PaperRecord
	var skipped int
	for _, item := range feed.Items {
		rec, ok := itemRecord(item)
		if !ok || seen[rec.DOI] {
			skipped++
			continue
		}
		seen[rec.DOI] = true
		out = append(out, rec)
	}
	f.Logger.Debug("read announcement feed",
		zap.String("url", feedURL),
		zap.Int("items", len(feed.Items)),
		zap.Int("papers", len(out)),
		zap.Int("skipped", skipped))
	return out, nil
}

// itemRecord converts one feed item. Items without an abs link and
// replacement announcements yield false.
func itemRecord(item *gofeed.Item) (types.PaperRecord, bool) {
	id := ExtractID(item.Link)
	if id == "" {
		return types.PaperRecord{}, false
	}
	if strings.HasPrefix(announceType(item), "replace") {
		return types.PaperRecord{}, false
	}

	rec := types.PaperRecord{
		DOI:      canonicalDOI(item.Link),
		ArxivID:  types.Ptr(id),
		Title:    types.Ptr(collapse(item.Title)),
		Abstract: types.Ptr(rssAbstract(item.Description)),
	}
	if names := itemAuthors(item); names != "" {
		rec.Authors = types.Ptr(names)
	}
	if len(item.Categories) > 0 {
		rec.Categories = types.Ptr(strings.Join(item.Categories, " "))
	}
	if item.PublishedParsed != nil {
		rec.Date = types.Ptr(digestDate(*item.PublishedParsed))
	}
	return rec, true
}

// announceType reads <arxiv:announce_type>, falling back to the
// "Announce Type:" line of the description.
func announceType(item *gofeed.Item) string {
	if ext, ok := item.Extensions["arxiv"]["announce_type"]; ok && len(ext) > 0 {
		return strings.TrimSpace(ext[0].Value)
	}
	const marker = "Announce Type:"
	if _, rest, ok := strings.Cut(item.Description, marker); ok {
		if fields := strings.Fields(rest); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func itemAuthors(item *gofeed.Item) string {
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return collapse(strings.Join(item.DublinCoreExt.Creator, ", "))
	}
	names := make([]string, 0, len(item.Authors))
	for _, p := range item.Authors {
		if p != nil && strings.TrimSpace(p.Name) != "" {
			names = append(names, strings.TrimSpace(p.Name))
		}
	}
	return strings.Join(names, ", ")
}

// rssAbstract drops the "arXiv:ID Announce Type: new" preamble.
func rssAbstract(description string) string {
	if _, rest, ok := strings.Cut(description, "Abstract:"); ok {
		return collapse(rest)
	}
	return collapse(description)
}
