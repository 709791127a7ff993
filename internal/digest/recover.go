// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import "errors"

// State is where an entry ends up after the recovery decision.
type State int

const (
	// Candidate is the state of every entry before Resolve; Resolve never
	// returns it.
	Candidate State = iota

	// FullyExtracted entries had the expected shape and a footer URL.
	FullyExtracted

	// PartiallySalvaged entries had the wrong shape but a footer URL.
	// Only the identifier is kept.
	PartiallySalvaged

	// Rejected entries had no recoverable URL and produce no record.
	Rejected
)

func (s State) String() string {
	switch s {
	case FullyExtracted:
		return "full"
	case PartiallySalvaged:
		return "salvaged"
	case Rejected:
		return "rejected"
	default:
		return "candidate"
	}
}

// Outcome is the tagged result of resolving one entry.
type Outcome struct {
	State State

	// Extraction is populated for FullyExtracted entries only.
	Extraction Extraction

	// DOI is the recovered URL; empty for Rejected entries.
	DOI string

	// Err explains anything short of a complete extraction: missing fields,
	// a structural mismatch, or the unrecoverable identifier. Nil when the
	// entry was fully extracted with every field present.
	Err error
}

// Accepted reports whether the outcome yields a record.
func (o Outcome) Accepted() bool {
	return o.State == FullyExtracted || o.State == PartiallySalvaged
}

// Resolve runs extraction and identifier recovery on a block and decides
// its terminal state. It never panics on malformed input; f must pass
// Validate.
func Resolve(b EntryBlock, f Format) Outcome {
	x, extractErr := Extract(b.Segments, f)

	doi, idErr := RecoverIdentifier(b.Footer(), f)
	if idErr != nil {
		return Outcome{State: Rejected, Err: errors.Join(extractErr, idErr)}
	}

	if extractErr != nil {
		return Outcome{State: PartiallySalvaged, DOI: doi, Err: extractErr}
	}
	return Outcome{State: FullyExtracted, Extraction: x, DOI: doi, Err: x.MissingError()}
}
