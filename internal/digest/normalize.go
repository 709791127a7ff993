// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import "github.com/pdiddy/paper-curator/pkg/types"

// Normalize builds the record for an accepted entry. Absent fields stay
// nil; present values are copied as extracted, empty strings included.
func Normalize(x Extraction, doi string) types.PaperRecord {
	rec := types.PaperRecord{
		DOI:        doi,
		ArxivID:    x.Fields.Lookup(types.FieldArxivID),
		Title:      x.Fields.Lookup(types.FieldTitle),
		Authors:    x.Fields.Lookup(types.FieldAuthors),
		Categories: x.Fields.Lookup(types.FieldCategories),
		Date:       x.Fields.Lookup(types.FieldDate),
	}
	if x.Abstract != nil {
		rec.Abstract = types.Ptr(*x.Abstract)
	}
	return rec
}
