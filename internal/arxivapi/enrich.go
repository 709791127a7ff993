// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package arxivapi

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// Enrich fills the absent fields of rec from the arXiv API. Fields the
// digest already carried are never overwritten, and the DOI is kept as
// recovered. Records whose DOI is not an arXiv abs link are returned as is.
func (c *Client) Enrich(ctx context.Context, rec types.PaperRecord) (types.PaperRecord, error) {
	if rec.Complete() {
		return rec, nil
	}
	id := ExtractID(rec.DOI)
	if id == "" {
		return rec, nil
	}
	found, err := c.Lookup(ctx, id)
	if err != nil {
		return rec, fmt.Errorf("enriching %s: %w", rec.DOI, err)
	}
	out := Backfill(rec, found)
	c.Logger.Debug("enriched record",
		zap.String("doi", rec.DOI),
		zap.Int("missing_before", len(rec.Missing())),
		zap.Int("missing_after", len(out.Missing())))
	return out, nil
}

// Backfill copies fields from src into the nil fields of dst.
func Backfill(dst, src types.PaperRecord) types.PaperRecord {
	fill := func(d **string, s *string) {
		if *d == nil && s != nil {
			v := *s
			*d = &v
		}
	}
	fill(&dst.ArxivID, src.ArxivID)
	fill(&dst.Date, src.Date)
	fill(&dst.Title, src.Title)
	fill(&dst.Authors, src.Authors)
	fill(&dst.Categories, src.Categories)
	fill(&dst.Abstract, src.Abstract)
	return dst
}

// Feed lists recent papers across several categories. It stands in for the
// mailbox when curating straight from the API.
type Feed struct {
	Client     *Client
	Categories []string
	Max        int
}

// Records returns the union of each category's listing in category order,
// dropping papers cross-listed in an earlier category.
func (f *Feed) Records(ctx context.Context) ([]types.PaperRecord, error) {
	cats := f.Categories
	if len(cats) == 0 {
		cats = DefaultCategories
	}
	seen := make(map[string]bool)
	var out []types.PaperRecord
	for _, cat := range cats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		recs, err := f.Client.Recent(ctx, cat, f.Max)
		if err != nil {
			return out, err
		}
		for _, r := range recs {
			if seen[r.DOI] {
				continue
			}
			seen[r.DOI] = true
			out = append(out, r)
		}
	}
	return out, nil
}
