// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package curate

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/paper-curator/internal/catalog"
	"github.com/pdiddy/paper-curator/internal/classify"
	"github.com/pdiddy/paper-curator/internal/digest"
	"github.com/pdiddy/paper-curator/internal/mail"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// --- digest fixtures ---

func entry(id, title string) string {
	return "\n\\\\\narXiv:" + id +
		"\nDate: Mon, 4 Jan 2021 00:00:00 GMT   (7kb)\n\nTitle: " + title +
		"\nAuthors: A. One\nCategories: cs.CL\n\\\\\n  Abstract of " + title +
		"\n\\\\ ( http://arxiv.org/abs/" + id + " ,  7kb)\n"
}

func salvaged(id string) string {
	return "scrambled \\ http://arxiv.org/abs/" + id
}

func digestBody(entries ...string) string {
	parts := append([]string{"Submissions to:\nComputation and Language\n"}, entries...)
	parts = append(parts, "\n%%--%%--%%--%%\n")
	return strings.Join(parts, digest.DefaultSeparator)
}

func doi(id string) string { return "http://arxiv.org/abs/" + id }

// --- fakes ---

type fakeMail struct {
	bodies []string
	err    error
}

func (m *fakeMail) Fetch(context.Context) ([]mail.Message, error) {
	var msgs []mail.Message
	for i, b := range m.bodies {
		msgs = append(msgs, mail.Message{ID: string(rune('a' + i)), From: types.ArxivSender, Body: b})
	}
	return msgs, m.err
}

type fakeRecords struct {
	recs []types.PaperRecord
	err  error
}

func (r *fakeRecords) Records(context.Context) ([]types.PaperRecord, error) { return r.recs, r.err }

type fakeStore struct {
	papers    map[string]types.Verdict
	inserts   []string
	existsErr error
}

func newFakeStore(existing ...string) *fakeStore {
	s := &fakeStore{papers: make(map[string]types.Verdict)}
	for _, d := range existing {
		s.papers[d] = types.Verdict{}
	}
	return s
}

func (s *fakeStore) Exists(_ context.Context, d string) (bool, error) {
	if s.existsErr != nil {
		return false, s.existsErr
	}
	_, ok := s.papers[d]
	return ok, nil
}

func (s *fakeStore) InsertIfAbsent(_ context.Context, rec types.PaperRecord, v types.Verdict) (bool, error) {
	if _, ok := s.papers[rec.DOI]; ok {
		return false, nil
	}
	s.papers[rec.DOI] = v
	s.inserts = append(s.inserts, rec.DOI)
	return true, nil
}

type fakeClassifier struct {
	relevant map[string]bool
	errs     map[string]error
	seen     []types.PaperRecord
}

func (c *fakeClassifier) Classify(_ context.Context, rec types.PaperRecord) (types.Verdict, error) {
	c.seen = append(c.seen, rec)
	if err := c.errs[rec.DOI]; err != nil {
		return types.Verdict{}, err
	}
	return types.Verdict{Relevant: c.relevant[rec.DOI]}, nil
}

type fakeFiler struct {
	filed []string
	err   error
}

func (f *fakeFiler) File(_ context.Context, rec types.PaperRecord, _ types.Verdict) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.filed = append(f.filed, rec.DOI)
	return true, nil
}

type fakeEnricher struct {
	calls []string
}

func (e *fakeEnricher) Enrich(_ context.Context, rec types.PaperRecord) (types.PaperRecord, error) {
	e.calls = append(e.calls, rec.DOI)
	rec.Title = types.Ptr("Enriched")
	rec.Abstract = types.Ptr("Enriched abstract")
	return rec, nil
}

type failingEnricher struct{}

func (failingEnricher) Enrich(_ context.Context, rec types.PaperRecord) (types.PaperRecord, error) {
	return types.PaperRecord{DOI: "garbage"}, errors.New("arxiv down")
}

// --- tests ---

func TestRunEndToEnd(t *testing.T) {
	store := newFakeStore(doi("2101.00002"))
	cls := &fakeClassifier{relevant: map[string]bool{doi("2101.00001"): true}}
	filer := &fakeFiler{}
	enricher := &fakeEnricher{}
	metrics := NewMetrics()

	p := &Pipeline{
		Mail: &fakeMail{bodies: []string{digestBody(
			entry("2101.00001", "Relevant Paper"),
			entry("2101.00002", "Known Paper"),
			salvaged("2101.00003"),
		)}},
		Classifier: cls,
		Store:      store,
		Issues:     filer,
		Enricher:   enricher,
		Metrics:    metrics,
	}

	var out bytes.Buffer
	sum, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.Equal(t, Summary{
		Digests: 1, Found: 3, Salvaged: 1, Rejected: 2,
		Inserted: 2, Existing: 1, Relevant: 1, Filed: 1,
	}, sum)
	assert.Equal(t, 3, sum.Total())
	assert.False(t, sum.HasFailures())

	assert.Equal(t, []string{doi("2101.00001"), doi("2101.00003")}, store.inserts)
	assert.Equal(t, []string{doi("2101.00001")}, filer.filed)
	assert.Equal(t, []string{doi("2101.00003")}, enricher.calls, "only incomplete records are enriched")

	require.Len(t, cls.seen, 2, "existing papers are not classified")
	assert.Equal(t, types.Ptr("Enriched"), cls.seen[1].Title, "classifier sees the enriched record")

	text := out.String()
	assert.Contains(t, text, "inserted: Relevant Paper (http://arxiv.org/abs/2101.00001) [relevant]")
	assert.Contains(t, text, "existing: http://arxiv.org/abs/2101.00002")
	assert.Contains(t, text, "Curate summary: 3 found (1 salvaged, 2 rejected entries), 2 inserted, 1 existing, 1 relevant, 1 filed, 0 failed\n")

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("full")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("salvaged")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("rejected")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PapersTotal.WithLabelValues(ResultInserted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PapersTotal.WithLabelValues(ResultExisting)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PapersTotal.WithLabelValues(ResultFiled)))
	assert.Greater(t, testutil.ToFloat64(metrics.LastRun), 0.0)
}

func TestRunDryRunWritesNothing(t *testing.T) {
	store := newFakeStore()
	filer := &fakeFiler{}
	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"), entry("2101.00002", "B"))}},
		Classifier: &fakeClassifier{relevant: map[string]bool{doi("2101.00001"): true}},
		Store:      store,
		Issues:     filer,
		DryRun:     true,
	}

	var out bytes.Buffer
	sum, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.Empty(t, store.inserts)
	assert.Empty(t, filer.filed)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Relevant)
	assert.Equal(t, 0, sum.Filed)
	assert.Contains(t, out.String(), "would insert: A (http://arxiv.org/abs/2101.00001) [relevant]")
	assert.Contains(t, out.String(), "(dry run)")
}

func TestRunPerPaperFailuresContinue(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{
		relevant: map[string]bool{doi("2101.00003"): true},
		errs:     map[string]error{doi("2101.00001"): errors.New("model overloaded")},
	}
	p := &Pipeline{
		Mail: &fakeMail{bodies: []string{digestBody(
			entry("2101.00001", "A"), entry("2101.00002", "B"), entry("2101.00003", "C"),
		)}},
		Classifier: cls,
		Store:      store,
		Issues:     &fakeFiler{err: errors.New("github down")},
	}

	var out bytes.Buffer
	sum, err := p.Run(context.Background(), &out)
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.Inserted)
	assert.True(t, sum.HasFailures())
	assert.Equal(t, []string{doi("2101.00002")}, store.inserts, "failed papers are left for the next run")
	assert.Contains(t, out.String(), "failed:   http://arxiv.org/abs/2101.00001 (model overloaded)")
	assert.Contains(t, out.String(), "github down")
}

func TestRunStoreErrorCountsAsFailure(t *testing.T) {
	store := newFakeStore()
	store.existsErr = errors.New("database locked")
	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"))}},
		Classifier: &fakeClassifier{},
		Store:      store,
	}

	sum, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Failed)
}

func TestRunEnrichFailureKeepsRecord(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{}
	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(salvaged("2101.00009"))}},
		Classifier: cls,
		Store:      store,
		Enricher:   failingEnricher{},
	}

	sum, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, []string{doi("2101.00009")}, store.inserts)
	require.Len(t, cls.seen, 1)
	assert.Nil(t, cls.seen[0].Title)
}

func TestRunSkipsDuplicatesAcrossDigests(t *testing.T) {
	store := newFakeStore()
	cls := &fakeClassifier{}
	p := &Pipeline{
		Mail: &fakeMail{bodies: []string{
			digestBody(entry("2101.00001", "A")),
			digestBody(entry("2101.00001", "A"), entry("2101.00002", "B")),
		}},
		Classifier: cls,
		Store:      store,
		DryRun:     true,
	}

	sum, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Digests)
	assert.Equal(t, 3, sum.Found)
	assert.Equal(t, 2, sum.Inserted)
	assert.Len(t, cls.seen, 2)
}

func TestRunFromRecordSource(t *testing.T) {
	store := newFakeStore()
	metrics := NewMetrics()
	p := &Pipeline{
		Records: &fakeRecords{recs: []types.PaperRecord{
			{DOI: doi("2101.00001"), Title: types.Ptr("A")},
			{DOI: doi("2101.00002"), Title: types.Ptr("B")},
		}},
		Classifier: classify.Skip{},
		Store:      store,
		Metrics:    metrics,
	}

	var out bytes.Buffer
	sum, err := p.Run(context.Background(), &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Found: 2, Inserted: 2}, sum)
	assert.Contains(t, out.String(), "inserted: A (http://arxiv.org/abs/2101.00001) [unclassified]")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.EntriesTotal.WithLabelValues("full")))
}

func TestRunSourceErrors(t *testing.T) {
	_, err := (&Pipeline{
		Mail:       &fakeMail{err: errors.New("token expired")},
		Classifier: classify.Skip{},
		Store:      newFakeStore(),
	}).Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching digests: token expired")

	_, err = (&Pipeline{
		Records:    &fakeRecords{err: errors.New("503")},
		Classifier: classify.Skip{},
		Store:      newFakeStore(),
	}).Run(context.Background(), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetching records")
}

func TestRunRejectsIncompletePipeline(t *testing.T) {
	tests := []struct {
		name string
		p    Pipeline
		want string
	}{
		{"no source", Pipeline{Classifier: classify.Skip{}, Store: newFakeStore()}, "exactly one of Mail and Records"},
		{"two sources", Pipeline{Mail: &fakeMail{}, Records: &fakeRecords{}, Classifier: classify.Skip{}, Store: newFakeStore()}, "exactly one of Mail and Records"},
		{"no classifier", Pipeline{Mail: &fakeMail{}, Store: newFakeStore()}, "no classifier"},
		{"no store", Pipeline{Mail: &fakeMail{}, Classifier: classify.Skip{}}, "no store"},
		{"invalid format", Pipeline{Mail: &fakeMail{}, Format: &digest.Format{Name: "bad"}, Classifier: classify.Skip{}, Store: newFakeStore()}, `format "bad": empty separator`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.p.Run(context.Background(), &bytes.Buffer{})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := newFakeStore()
	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"))}},
		Classifier: classify.Skip{},
		Store:      store,
	}
	_, err := p.Run(ctx, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.inserts)
}

func TestRunVerboseLogsEntries(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"), salvaged("2101.00002"))}},
		Classifier: classify.Skip{},
		Store:      newFakeStore(),
		Logger:     zap.New(core),
		Verbose:    true,
		DryRun:     true,
	}

	_, err := p.Run(context.Background(), &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, logs.FilterMessage("entry rejected").Len())
	assert.Equal(t, 1, logs.FilterMessage("entry salvaged").Len())
	assert.Equal(t, 1, logs.FilterMessage("curate finished").Len())
}

func TestRunWithCatalog(t *testing.T) {
	ctx := context.Background()
	store, err := catalog.Open(ctx, types.CatalogConfig{
		Driver: catalog.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "papers.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := &Pipeline{
		Mail:       &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"), salvaged("2101.00002"))}},
		Classifier: classify.Skip{},
		Store:      store,
	}

	first, err := p.Run(ctx, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	second, err := p.Run(ctx, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Existing)

	got, err := store.Get(ctx, doi("2101.00001"))
	require.NoError(t, err)
	assert.Equal(t, types.Ptr("A"), got.Record.Title)
}

func TestRunReclassifiesUnclassifiedPapers(t *testing.T) {
	ctx := context.Background()
	store, err := catalog.Open(ctx, types.CatalogConfig{
		Driver: catalog.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "papers.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	mailbox := &fakeMail{bodies: []string{digestBody(entry("2101.00001", "A"), entry("2101.00002", "B"))}}
	first := &Pipeline{Mail: mailbox, Classifier: classify.Skip{}, Store: store}
	_, err = first.Run(ctx, &bytes.Buffer{})
	require.NoError(t, err)

	got, err := store.Get(ctx, doi("2101.00001"))
	require.NoError(t, err)
	assert.True(t, got.Verdict.Skipped, "stored without a verdict")

	cls := &fakeClassifier{relevant: map[string]bool{doi("2101.00001"): true}}
	filer := &fakeFiler{}
	metrics := NewMetrics()
	second := &Pipeline{Mail: mailbox, Classifier: cls, Store: store, Issues: filer, Metrics: metrics}

	var out bytes.Buffer
	sum, err := second.Run(ctx, &out)
	require.NoError(t, err)
	assert.Equal(t, Summary{Digests: 1, Found: 2, Rejected: 2, Reclassified: 2, Relevant: 1, Filed: 1}, sum)
	assert.Equal(t, []string{doi("2101.00001")}, filer.filed)
	assert.Contains(t, out.String(), "classified: A (http://arxiv.org/abs/2101.00001) [relevant]")
	assert.Contains(t, out.String(), "0 existing, 2 reclassified, 1 relevant")
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.PapersTotal.WithLabelValues(ResultReclassified)))

	got, err = store.Get(ctx, doi("2101.00001"))
	require.NoError(t, err)
	assert.False(t, got.Verdict.Skipped)
	assert.True(t, got.Verdict.Relevant)

	third, err := second.Run(ctx, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Existing)
	assert.Equal(t, 0, third.Reclassified)
	assert.Len(t, cls.seen, 2, "classified papers are not sent again")
}

func TestMetricsWriteTextfile(t *testing.T) {
	m := NewMetrics()
	m.entry("full")
	m.paper(ResultInserted)

	path := filepath.Join(t.TempDir(), "textfile", "paper_curator.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `paper_curator_entries_total{state="full"} 1`)
	assert.Contains(t, string(data), `paper_curator_papers_total{result="inserted"} 1`)
}

func TestNilMetricsAreIgnored(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.entry("full")
		m.paper(ResultFailed)
	})
}
