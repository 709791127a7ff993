// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"fmt"
	"strings"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// Fields maps header fields to their trimmed matched values. A field whose
// pattern did not match has no key.
type Fields map[types.Field]string

// Lookup returns a pointer to a copy of the field value, or nil when the
// field is absent.
func (fs Fields) Lookup(f types.Field) *string {
	v, ok := fs[f]
	if !ok {
		return nil
	}
	return &v
}

// Extraction is the result of parsing a well-formed entry.
type Extraction struct {
	// Fields holds every header field that matched.
	Fields Fields

	// Missing lists header fields whose pattern did not match, in
	// pattern-table order.
	Missing []types.Field

	// Abstract is the cleaned abstract segment; nil when no abstract
	// segment could be located.
	Abstract *string
}

// MissingError wraps ErrFieldMissing with the names of absent fields, or
// returns nil when every field matched.
func (x Extraction) MissingError() error {
	if len(x.Missing) == 0 {
		return nil
	}
	names := make([]string, len(x.Missing))
	for i, f := range x.Missing {
		names[i] = string(f)
	}
	return fmt.Errorf("%w: %s", ErrFieldMissing, strings.Join(names, ", "))
}

// Extract matches the format's field patterns against the header segment
// and cleans the abstract segment. A pattern that does not match only marks
// its field missing; Extract fails with ErrExtractionFailed when the
// segment count does not equal the format's arity.
func Extract(segments []string, f Format) (Extraction, error) {
	if len(segments) != f.Arity {
		return Extraction{}, fmt.Errorf("%w: %w: %d segments, want %d",
			ErrExtractionFailed, ErrStructuralMismatch, len(segments), f.Arity)
	}

	header := segments[f.HeaderSegment]
	x := Extraction{Fields: make(Fields, len(f.Fields))}
	for _, fp := range f.Fields {
		m := fp.Pattern.FindStringSubmatch(header)
		if m == nil {
			x.Missing = append(x.Missing, fp.Field)
			continue
		}
		x.Fields[fp.Field] = strings.TrimSpace(m[1])
	}

	abstract := cleanAbstract(segments[f.AbstractSegment], f.LineBreaks)
	x.Abstract = &abstract
	return x, nil
}

// cleanAbstract joins wrapped abstract lines and trims the result. Blank
// lines between paragraphs collapse into the same single space.
func cleanAbstract(s string, lineBreaks []string) string {
	for _, lb := range lineBreaks {
		if lb == "" || !strings.Contains(s, lb) {
			continue
		}
		var lines []string
		for line := range strings.SplitSeq(s, lb) {
			if line = strings.Trim(line, " \t"); line != "" {
				lines = append(lines, line)
			}
		}
		s = strings.Join(lines, " ")
	}
	return strings.TrimSpace(s)
}

// RecoverIdentifier returns the first URL in segment. It does not depend on
// header extraction, so a clean footer rescues an entry with a garbled
// header.
func RecoverIdentifier(segment string, f Format) (string, error) {
	if id := f.Identifier.FindString(segment); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: no URL in footer %q", ErrIdentifierUnrecoverable, excerpt(segment, 80))
}

// excerpt shortens s to at most n bytes for diagnostics.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
