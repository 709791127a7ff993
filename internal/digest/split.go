// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"iter"
	"slices"
	"strings"
)

// EntryBlock is one separator-delimited unit of a digest. It usually holds
// one announcement but may be a header or footer fragment of the mail.
type EntryBlock struct {
	// Index is the block's position among the separator-delimited pieces
	// of the digest, counting dropped blank pieces.
	Index int

	// Raw is the block text as split from the digest.
	Raw string

	// Segments is Raw split on the format's segment delimiter.
	Segments []string
}

// WellFormed reports whether the block has exactly the format's arity.
func (b EntryBlock) WellFormed(f Format) bool {
	return len(b.Segments) == f.Arity
}

// Footer returns the last segment, where the paper URL lives in a
// well-formed entry and most likely lives in a broken one.
func (b EntryBlock) Footer() string {
	if len(b.Segments) == 0 {
		return ""
	}
	return b.Segments[len(b.Segments)-1]
}

// Entries lazily splits a digest into entry blocks. Blank pieces (such as
// the text after a trailing separator) are skipped; an empty digest yields
// nothing and a digest without separators yields a single block.
func Entries(raw string, f Format) iter.Seq[EntryBlock] {
	return func(yield func(EntryBlock) bool) {
		i := 0
		for piece := range strings.SplitSeq(raw, f.Separator) {
			idx := i
			i++
			if strings.TrimSpace(piece) == "" {
				continue
			}
			block := EntryBlock{
				Index:    idx,
				Raw:      piece,
				Segments: strings.Split(piece, f.SegmentDelimiter),
			}
			if !yield(block) {
				return
			}
		}
	}
}

// Split returns all entry blocks of a digest in order.
func Split(raw string, f Format) []EntryBlock {
	return slices.Collect(Entries(raw, f))
}
