// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"iter"
	"slices"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// Tally counts entry outcomes across a stream. It is not safe for
// concurrent use; give each shard its own Tally and Add them.
type Tally struct {
	Digests  int `json:"digests" yaml:"digests"`
	Entries  int `json:"entries" yaml:"entries"`
	Full     int `json:"full" yaml:"full"`
	Salvaged int `json:"salvaged" yaml:"salvaged"`
	Rejected int `json:"rejected" yaml:"rejected"`
}

// Emitted returns the number of records yielded.
func (t Tally) Emitted() int {
	return t.Full + t.Salvaged
}

// Add accumulates another tally into t.
func (t *Tally) Add(o Tally) {
	t.Digests += o.Digests
	t.Entries += o.Entries
	t.Full += o.Full
	t.Salvaged += o.Salvaged
	t.Rejected += o.Rejected
}

func (t *Tally) record(s State) {
	t.Entries++
	switch s {
	case FullyExtracted:
		t.Full++
	case PartiallySalvaged:
		t.Salvaged++
	case Rejected:
		t.Rejected++
	}
}

type options struct {
	format  Format
	logger  *zap.Logger
	tally   *Tally
	observe func(Outcome)
}

// Option configures Stream.
type Option func(*options)

// WithFormat replaces DefaultFormat. A format that fails Validate makes
// the stream yield nothing; LoadFormat and ParseFormat only return valid
// formats.
func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// WithVerbose logs a diagnostic for every entry that is salvaged or
// rejected. Logging never changes what the stream yields.
func WithVerbose(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithTally counts every entry outcome into t.
func WithTally(t *Tally) Option {
	return func(o *options) { o.tally = t }
}

// WithObserver calls fn with the outcome of every entry, rejected ones
// included, before the record (if any) is yielded.
func WithObserver(fn func(Outcome)) Option {
	return func(o *options) { o.observe = fn }
}

// Stream lazily turns digest bodies into paper records. Digests are read in
// order and entries in split order; records come out in that order with
// rejected entries left out. Nothing is buffered beyond the current digest,
// and ranging over the result twice re-reads digests from the start.
func Stream(digests iter.Seq[string], opts ...Option) iter.Seq[types.PaperRecord] {
	o := options{format: DefaultFormat()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.format.Validate(); err != nil {
		return func(func(types.PaperRecord) bool) {
			if o.logger != nil {
				o.logger.Error("invalid digest format", zap.Error(err))
			}
		}
	}

	return func(yield func(types.PaperRecord) bool) {
		di := 0
		for body := range digests {
			if o.tally != nil {
				o.tally.Digests++
			}
			for block := range Entries(body, o.format) {
				out := Resolve(block, o.format)
				o.report(di, block, out)
				if !out.Accepted() {
					continue
				}
				if !yield(Normalize(out.Extraction, out.DOI)) {
					return
				}
			}
			di++
		}
	}
}

// StreamStrings is Stream over a slice of digest bodies.
func StreamStrings(digests []string, opts ...Option) iter.Seq[types.PaperRecord] {
	return Stream(slices.Values(digests), opts...)
}

func (o *options) report(digestIdx int, block EntryBlock, out Outcome) {
	if o.tally != nil {
		o.tally.record(out.State)
	}
	if o.observe != nil {
		o.observe(out)
	}
	if o.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("format", o.format.Name),
		zap.Int("digest", digestIdx),
		zap.Int("entry", block.Index),
		zap.Int("segments", len(block.Segments)),
	}
	switch out.State {
	case Rejected:
		o.logger.Warn("entry rejected",
			append(fields, zap.String("footer", excerpt(block.Footer(), 80)), zap.Error(out.Err))...)
	case PartiallySalvaged:
		o.logger.Info("entry salvaged",
			append(fields, zap.String("doi", out.DOI), zap.Error(out.Err))...)
	case FullyExtracted:
		if out.Err != nil {
			o.logger.Debug("entry missing fields",
				append(fields, zap.String("doi", out.DOI), zap.Error(out.Err))...)
		}
	}
}
