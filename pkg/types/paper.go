// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
	"time"
)

// Field names one header field of a digest entry.
type Field string

const (
	FieldArxivID    Field = "arxiv_id"
	FieldDate       Field = "date"
	FieldTitle      Field = "title"
	FieldAuthors    Field = "authors"
	FieldCategories Field = "categories"

	// FieldAbstract is not a header field; it comes from its own segment.
	FieldAbstract Field = "abstract"
)

// HeaderFields lists the header fields in the order they appear in an entry.
var HeaderFields = []Field{FieldArxivID, FieldDate, FieldTitle, FieldAuthors, FieldCategories}

// DigestDateLayout is the layout of the Date header in arXiv notification
// mails (e.g. "Mon, 4 Jan 2021 00:00:00 GMT").
const DigestDateLayout = "Mon, 2 Jan 2006 15:04:05 MST"

// PaperRecord is one paper announcement recovered from a digest.
// A nil pointer field means the entry did not carry that field; an empty
// string means it was present but empty.
type PaperRecord struct {
	// DOI is the URL-form identifier recovered from the entry footer
	// (e.g. "http://arxiv.org/abs/2101.00001"). Always set.
	DOI string `json:"doi" yaml:"doi"`

	// ArxivID is the identifier from the "arXiv:" header line.
	ArxivID *string `json:"arxiv_id" yaml:"arxiv_id"`

	// Title is the paper title.
	Title *string `json:"title" yaml:"title"`

	// Authors is the author line as printed in the digest.
	Authors *string `json:"authors" yaml:"authors"`

	// Categories is the space-separated category line (e.g. "cs.CL cs.AI").
	Categories *string `json:"categories" yaml:"categories"`

	// Abstract is the abstract text with line continuations removed.
	Abstract *string `json:"abstract" yaml:"abstract"`

	// Date is the submission date as printed in the digest.
	Date *string `json:"date" yaml:"date"`
}

// Get returns the value of a field and whether it is present.
func (r PaperRecord) Get(f Field) (string, bool) {
	var p *string
	switch f {
	case FieldArxivID:
		p = r.ArxivID
	case FieldDate:
		p = r.Date
	case FieldTitle:
		p = r.Title
	case FieldAuthors:
		p = r.Authors
	case FieldCategories:
		p = r.Categories
	case FieldAbstract:
		p = r.Abstract
	}
	if p == nil {
		return "", false
	}
	return *p, true
}

// Missing lists the header fields absent from the record, in header order.
// A missing abstract is reported as FieldAbstract.
func (r PaperRecord) Missing() []Field {
	var missing []Field
	for _, f := range HeaderFields {
		if _, ok := r.Get(f); !ok {
			missing = append(missing, f)
		}
	}
	if _, ok := r.Get(FieldAbstract); !ok {
		missing = append(missing, FieldAbstract)
	}
	return missing
}

// Complete reports whether every field of the record is present.
func (r PaperRecord) Complete() bool {
	return len(r.Missing()) == 0
}

// Classifiable reports whether the record carries the title and abstract a
// classifier needs.
func (r PaperRecord) Classifiable() bool {
	return r.Title != nil && *r.Title != "" && r.Abstract != nil && *r.Abstract != ""
}

// CategoryList splits the category line on whitespace.
func (r PaperRecord) CategoryList() []string {
	if r.Categories == nil {
		return nil
	}
	return strings.Fields(*r.Categories)
}

// PublishedAt parses the Date field. It returns false when the field is
// absent or not in DigestDateLayout.
func (r PaperRecord) PublishedAt() (time.Time, bool) {
	if r.Date == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(DigestDateLayout, strings.TrimSpace(*r.Date))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (r PaperRecord) String() string {
	return fmt.Sprintf("%s (%s)", Deref(r.Title), r.DOI)
}

// Ptr returns a pointer to s.
func Ptr(s string) *string { return &s }

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
