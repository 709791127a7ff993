// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import "errors"

// Entry-level failures. They travel inside Outcome and Extraction values and
// never abort a stream.
var (
	// ErrStructuralMismatch means an entry did not split into the expected
	// number of segments. The entry may still be salvaged.
	ErrStructuralMismatch = errors.New("structural mismatch")

	// ErrFieldMissing means a header pattern did not match. The field is
	// recorded as absent.
	ErrFieldMissing = errors.New("field missing")

	// ErrIdentifierUnrecoverable means no URL was found in the footer
	// segment. The entry is skipped.
	ErrIdentifierUnrecoverable = errors.New("identifier unrecoverable")

	// ErrExtractionFailed means the header, abstract and footer segments
	// could not be located at all.
	ErrExtractionFailed = errors.New("extraction failed")
)
