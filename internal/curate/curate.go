// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package curate runs the end-to-end flow: fetch digests, recover paper
// records, classify them, file issues for relevant ones and record
// everything in the catalog.
package curate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/internal/classify"
	"github.com/pdiddy/paper-curator/internal/digest"
	"github.com/pdiddy/paper-curator/internal/mail"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// Store is the part of the catalog the pipeline writes to.
type Store interface {
	Exists(ctx context.Context, doi string) (bool, error)
	InsertIfAbsent(ctx context.Context, rec types.PaperRecord, v types.Verdict) (bool, error)
}

// Reclassifier is implemented by stores that keep unclassified papers
// apart, so a later run can fill in their verdict.
type Reclassifier interface {
	Unclassified(ctx context.Context, doi string) (bool, error)
	SetVerdict(ctx context.Context, doi string, v types.Verdict) (bool, error)
}

// IssueFiler opens a tracker issue for a relevant paper.
type IssueFiler interface {
	File(ctx context.Context, rec types.PaperRecord, v types.Verdict) (bool, error)
}

// Enricher fills in fields a salvaged record is missing.
type Enricher interface {
	Enrich(ctx context.Context, rec types.PaperRecord) (types.PaperRecord, error)
}

// RecordSource yields records directly, bypassing digest parsing.
type RecordSource interface {
	Records(ctx context.Context) ([]types.PaperRecord, error)
}

// Pipeline wires the collaborators of one run. Exactly one of Mail and
// Records must be set. Issues, Enricher and Metrics are optional.
type Pipeline struct {
	Mail    mail.Source
	Records RecordSource
	Format  *digest.Format

	Classifier classify.Classifier
	Store      Store
	Issues     IssueFiler
	Enricher   Enricher
	Metrics    *Metrics
	Logger     *zap.Logger

	// Verbose logs every salvaged and rejected digest entry.
	Verbose bool

	// DryRun classifies but never writes to the catalog or files issues.
	DryRun bool
}

// Summary holds the outcome of a run.
type Summary struct {
	Digests  int `json:"digests" yaml:"digests"`
	Found    int `json:"found" yaml:"found"`
	Salvaged int `json:"salvaged" yaml:"salvaged"`
	Rejected int `json:"rejected" yaml:"rejected"`

	Inserted     int `json:"inserted" yaml:"inserted"`
	Existing     int `json:"existing" yaml:"existing"`
	Reclassified int `json:"reclassified" yaml:"reclassified"`
	Relevant int `json:"relevant" yaml:"relevant"`
	Filed    int `json:"filed" yaml:"filed"`
	Failed   int `json:"failed" yaml:"failed"`
}

// Total returns the number of papers processed.
func (s Summary) Total() int {
	return s.Inserted + s.Existing + s.Reclassified + s.Failed
}

// HasFailures reports whether any paper failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Run processes every paper once, printing one status line per paper to w.
// Per-paper failures are counted and skipped so the next run retries them;
// only source errors and cancellation abort the run.
func (p *Pipeline) Run(ctx context.Context, w io.Writer) (Summary, error) {
	if err := p.check(); err != nil {
		return Summary{}, err
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}

	start := time.Now()
	var sum Summary
	defer func() { p.Metrics.finish(start, time.Now()) }()

	records, tally, err := p.records(ctx)
	if err != nil {
		return sum, err
	}

	seen := make(map[string]bool)
	for rec := range records {
		if err := ctx.Err(); err != nil {
			p.fill(&sum, tally)
			return sum, err
		}
		if seen[rec.DOI] {
			continue
		}
		seen[rec.DOI] = true
		p.process(ctx, rec, &sum, w)
	}
	p.fill(&sum, tally)

	fmt.Fprintf(w, "\nCurate summary: %d found (%d salvaged, %d rejected entries), %d inserted, %d existing%s, %d relevant, %d filed, %d failed%s\n",
		sum.Found, sum.Salvaged, sum.Rejected, sum.Inserted, sum.Existing, reclassifiedNote(sum.Reclassified),
		sum.Relevant, sum.Filed, sum.Failed, dryRunNote(p.DryRun))
	p.Logger.Info("curate finished",
		zap.Int("found", sum.Found),
		zap.Int("inserted", sum.Inserted),
		zap.Int("relevant", sum.Relevant),
		zap.Int("failed", sum.Failed),
		zap.Duration("elapsed", time.Since(start)))
	return sum, nil
}

func (p *Pipeline) check() error {
	var errs []error
	if (p.Mail == nil) == (p.Records == nil) {
		errs = append(errs, errors.New("exactly one of Mail and Records must be set"))
	}
	if p.Classifier == nil {
		errs = append(errs, errors.New("no classifier"))
	}
	if p.Store == nil {
		errs = append(errs, errors.New("no store"))
	}
	if p.Format != nil {
		if err := p.Format.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return nil
}

// records returns the paper stream and the tally it fills while ranged.
func (p *Pipeline) records(ctx context.Context) (iter.Seq[types.PaperRecord], *digest.Tally, error) {
	tally := &digest.Tally{}

	if p.Records != nil {
		recs, err := p.Records.Records(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("fetching records: %w", err)
		}
		tally.Entries = len(recs)
		tally.Full = len(recs)
		for range recs {
			p.Metrics.entry(digest.FullyExtracted.String())
		}
		return slices.Values(recs), tally, nil
	}

	msgs, err := p.Mail.Fetch(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching digests: %w", err)
	}
	p.Logger.Info("fetched digests", zap.Int("messages", len(msgs)))

	opts := []digest.Option{
		digest.WithTally(tally),
		digest.WithObserver(func(o digest.Outcome) { p.Metrics.entry(o.State.String()) }),
	}
	if p.Format != nil {
		opts = append(opts, digest.WithFormat(*p.Format))
	}
	if p.Verbose {
		opts = append(opts, digest.WithVerbose(p.Logger))
	}
	return digest.Stream(mail.Bodies(msgs), opts...), tally, nil
}

func (p *Pipeline) fill(sum *Summary, t *digest.Tally) {
	sum.Digests = t.Digests
	sum.Found = t.Emitted()
	sum.Salvaged = t.Salvaged
	sum.Rejected = t.Rejected
}

func (p *Pipeline) process(ctx context.Context, rec types.PaperRecord, sum *Summary, w io.Writer) {
	exists, err := p.Store.Exists(ctx, rec.DOI)
	if err != nil {
		p.fail(sum, w, rec, err)
		return
	}
	if exists {
		if rc, ok := p.Store.(Reclassifier); ok && p.reclassify(ctx, rc, rec, sum, w) {
			return
		}
		sum.Existing++
		p.Metrics.paper(ResultExisting)
		fmt.Fprintf(w, "existing: %s\n", rec.DOI)
		return
	}

	rec, v, ok := p.judge(ctx, rec, sum, w)
	if !ok {
		return
	}

	if p.DryRun {
		sum.Inserted++
		fmt.Fprintf(w, "would insert: %s%s\n", rec, relevantNote(v))
		return
	}

	inserted, err := p.Store.InsertIfAbsent(ctx, rec, v)
	if err != nil {
		p.fail(sum, w, rec, err)
		return
	}
	if !inserted {
		sum.Existing++
		p.Metrics.paper(ResultExisting)
		fmt.Fprintf(w, "existing: %s\n", rec.DOI)
		return
	}
	sum.Inserted++
	p.Metrics.paper(ResultInserted)
	fmt.Fprintf(w, "inserted: %s%s\n", rec, relevantNote(v))
}

// reclassify gives a stored paper without a verdict another pass. It
// returns false when the paper is classified already or still cannot be
// classified, leaving the caller to count it as existing.
func (p *Pipeline) reclassify(ctx context.Context, rc Reclassifier, rec types.PaperRecord, sum *Summary, w io.Writer) bool {
	pending, err := rc.Unclassified(ctx, rec.DOI)
	if err != nil {
		p.fail(sum, w, rec, err)
		return true
	}
	if !pending {
		return false
	}

	rec, v, ok := p.judge(ctx, rec, sum, w)
	if !ok {
		return true
	}
	if v.Skipped {
		return false
	}

	if p.DryRun {
		sum.Reclassified++
		fmt.Fprintf(w, "would classify: %s%s\n", rec, relevantNote(v))
		return true
	}
	changed, err := rc.SetVerdict(ctx, rec.DOI, v)
	if err != nil {
		p.fail(sum, w, rec, err)
		return true
	}
	if !changed {
		return false
	}
	sum.Reclassified++
	p.Metrics.paper(ResultReclassified)
	fmt.Fprintf(w, "classified: %s%s\n", rec, relevantNote(v))
	return true
}

// judge enriches an incomplete record, classifies it and files an issue
// when it is relevant. It returns false after counting a failure.
func (p *Pipeline) judge(ctx context.Context, rec types.PaperRecord, sum *Summary, w io.Writer) (types.PaperRecord, types.Verdict, bool) {
	if p.Enricher != nil && !rec.Complete() {
		enriched, err := p.Enricher.Enrich(ctx, rec)
		if err != nil {
			p.Logger.Warn("could not enrich record", zap.String("doi", rec.DOI), zap.Error(err))
		} else {
			rec = enriched
		}
	}

	v, err := p.Classifier.Classify(ctx, rec)
	if err != nil {
		p.fail(sum, w, rec, err)
		return rec, v, false
	}

	if v.Relevant {
		sum.Relevant++
		p.Metrics.paper(ResultRelevant)
		if p.Issues != nil && !p.DryRun {
			filed, err := p.Issues.File(ctx, rec, v)
			if err != nil {
				p.fail(sum, w, rec, err)
				return rec, v, false
			}
			if filed {
				sum.Filed++
				p.Metrics.paper(ResultFiled)
			}
		}
	}
	return rec, v, true
}

func (p *Pipeline) fail(sum *Summary, w io.Writer, rec types.PaperRecord, err error) {
	sum.Failed++
	p.Metrics.paper(ResultFailed)
	fmt.Fprintf(w, "failed:   %s (%v)\n", rec.DOI, err)
	p.Logger.Warn("paper failed", zap.String("doi", rec.DOI), zap.Error(err))
}

func relevantNote(v types.Verdict) string {
	switch {
	case v.Skipped:
		return " [unclassified]"
	case v.Relevant:
		return " [relevant]"
	default:
		return ""
	}
}

func reclassifiedNote(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(", %d reclassified", n)
}

func dryRunNote(dry bool) string {
	if dry {
		return " (dry run)"
	}
	return ""
}
