// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog persists paper records and their classification in a
// SQL database. SQLite is the default; PostgreSQL is reached through the
// pgx stdlib driver. Records are keyed by DOI and never overwritten, so a
// paper announced in several digests is stored once.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

const papersTable = "papers"

// ErrNotFound is returned when no paper has the requested DOI.
var ErrNotFound = errors.New("paper not found")

var paperColumns = []string{
	"doi", "arxiv_id", "title", "authors", "categories", "abstract", "date",
	"published_at", "relevant", "architectures", "curated", "created_at",
}

// Paper is one catalog row.
type Paper struct {
	Record  types.PaperRecord `json:"record" yaml:"record"`
	Verdict types.Verdict     `json:"verdict" yaml:"verdict"`

	// PublishedAt is the parsed digest date, nil when the date was absent
	// or unparseable.
	PublishedAt *time.Time `json:"published_at,omitempty" yaml:"published_at,omitempty"`

	// Curated is set once a human has confirmed the relevance label.
	Curated   bool      `json:"curated" yaml:"curated"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// Store manages the papers table.
type Store struct {
	db     *sql.DB
	driver string
	sb     sq.StatementBuilderType
	now    func() time.Time
}

// Open connects to the catalog database and creates the schema if it does
// not exist. For SQLite the parent directory of the DSN is created.
func Open(ctx context.Context, cfg types.CatalogConfig) (*Store, error) {
	dsn := cfg.DSN
	switch cfg.Driver {
	case DriverSQLite:
		if dir := filepath.Dir(dsn); dir != "." && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("creating catalog directory: %w", err)
			}
		}
		if !strings.Contains(dsn, "?") {
			dsn += "?_journal_mode=WAL&_busy_timeout=5000"
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported catalog driver %q", cfg.Driver)
	}

	db, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: cfg.Driver, sb: builder(cfg.Driver), now: time.Now}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// builder returns a statement builder using the driver's placeholder style.
func builder(driver string) sq.StatementBuilderType {
	if driver == DriverPostgres {
		return sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	}
	return sq.StatementBuilder.PlaceholderFormat(sq.Question)
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS papers (
			doi TEXT PRIMARY KEY,
			arxiv_id TEXT,
			title TEXT,
			authors TEXT,
			categories TEXT,
			abstract TEXT,
			date TEXT,
			published_at TEXT,
			relevant INTEGER,
			architectures TEXT NOT NULL DEFAULT '',
			curated INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_curated ON papers(curated)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_relevant ON papers(relevant)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// InsertIfAbsent stores a record with its verdict unless a paper with the
// same DOI already exists. It reports whether a row was inserted. A skipped
// verdict leaves relevant NULL so the paper can be classified later.
func (s *Store) InsertIfAbsent(ctx context.Context, rec types.PaperRecord, v types.Verdict) (bool, error) {
	if rec.DOI == "" {
		return false, errors.New("inserting paper: empty DOI")
	}

	var published *string
	if t, ok := rec.PublishedAt(); ok {
		published = types.Ptr(t.Format(time.RFC3339))
	}

	query, args, err := s.sb.Insert(papersTable).
		Columns(paperColumns...).
		Values(
			rec.DOI, rec.ArxivID, rec.Title, rec.Authors, rec.Categories, rec.Abstract, rec.Date,
			published, relevance(v), strings.Join(v.Architectures, ","), 0,
			s.now().UTC().Format(time.RFC3339Nano),
		).
		Suffix("ON CONFLICT (doi) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building insert: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("inserting paper %s: %w", rec.DOI, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting paper %s: %w", rec.DOI, err)
	}
	return n > 0, nil
}

// Exists reports whether a paper with doi is stored.
func (s *Store) Exists(ctx context.Context, doi string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(papersTable).Where(sq.Eq{"doi": doi}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building exists query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking paper %s: %w", doi, err)
	}
	return n > 0, nil
}

// Unclassified reports whether doi is stored without a verdict.
func (s *Store) Unclassified(ctx context.Context, doi string) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From(papersTable).
		Where(sq.Eq{"doi": doi, "relevant": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building unclassified query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return false, fmt.Errorf("checking paper %s: %w", doi, err)
	}
	return n > 0, nil
}

// SetVerdict stores v for a paper that has no verdict yet. It reports
// whether a row changed; classified papers and skipped verdicts are left
// alone.
func (s *Store) SetVerdict(ctx context.Context, doi string, v types.Verdict) (bool, error) {
	if v.Skipped {
		return false, nil
	}
	query, args, err := s.sb.Update(papersTable).
		Set("relevant", boolInt(v.Relevant)).
		Set("architectures", strings.Join(v.Architectures, ",")).
		Where(sq.Eq{"doi": doi, "relevant": nil}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("building update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("classifying paper %s: %w", doi, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("classifying paper %s: %w", doi, err)
	}
	return n > 0, nil
}

// Get returns the paper stored under doi, or ErrNotFound.
func (s *Store) Get(ctx context.Context, doi string) (Paper, error) {
	papers, err := s.query(ctx, s.sb.Select(paperColumns...).From(papersTable).Where(sq.Eq{"doi": doi}))
	if err != nil {
		return Paper{}, err
	}
	if len(papers) == 0 {
		return Paper{}, fmt.Errorf("%w: %s", ErrNotFound, doi)
	}
	return papers[0], nil
}

// ListOptions filters List. Nil filters match everything.
type ListOptions struct {
	Relevant *bool
	Curated  *bool

	// Unclassified keeps only papers without a verdict.
	Unclassified bool

	// Since keeps papers stored at or after this time.
	Since time.Time

	// Limit caps the result; 0 means no limit.
	Limit int
}

// List returns stored papers, newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Paper, error) {
	q := s.sb.Select(paperColumns...).From(papersTable).OrderBy("created_at DESC", "doi")
	if opts.Relevant != nil {
		q = q.Where(sq.Eq{"relevant": boolInt(*opts.Relevant)})
	}
	if opts.Curated != nil {
		q = q.Where(sq.Eq{"curated": boolInt(*opts.Curated)})
	}
	if opts.Unclassified {
		q = q.Where(sq.Eq{"relevant": nil})
	}
	if !opts.Since.IsZero() {
		q = q.Where(sq.GtOrEq{"created_at": opts.Since.UTC().Format(time.RFC3339Nano)})
	}
	if opts.Limit > 0 {
		q = q.Limit(uint64(opts.Limit))
	}
	return s.query(ctx, q)
}

// Curated returns up to limit human-confirmed papers that carry a title
// and abstract, newest first. They serve as classifier examples.
func (s *Store) Curated(ctx context.Context, limit int) ([]types.CuratedPaper, error) {
	q := s.sb.Select(paperColumns...).From(papersTable).
		Where(sq.Eq{"curated": 1}).
		Where(sq.NotEq{"title": nil, "abstract": nil}).
		OrderBy("created_at DESC", "doi")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	papers, err := s.query(ctx, q)
	if err != nil {
		return nil, err
	}

	out := make([]types.CuratedPaper, 0, len(papers))
	for _, p := range papers {
		out = append(out, types.CuratedPaper{
			Title:         types.Deref(p.Record.Title),
			Abstract:      types.Deref(p.Record.Abstract),
			Relevant:      p.Verdict.Relevant,
			Architectures: p.Verdict.Architectures,
		})
	}
	return out, nil
}

// SetCurated records a human relevance label for doi and marks the paper
// curated. It returns ErrNotFound when the DOI is not stored.
func (s *Store) SetCurated(ctx context.Context, doi string, relevant bool) error {
	query, args, err := s.sb.Update(papersTable).
		Set("curated", 1).
		Set("relevant", boolInt(relevant)).
		Where(sq.Eq{"doi": doi}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building update: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("curating paper %s: %w", doi, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("curating paper %s: %w", doi, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, doi)
	}
	return nil
}

// Stats summarises the catalog.
type Stats struct {
	Total        int `json:"total" yaml:"total"`
	Relevant     int `json:"relevant" yaml:"relevant"`
	Unclassified int `json:"unclassified" yaml:"unclassified"`
	Curated      int `json:"curated" yaml:"curated"`
}

// Stats counts stored, relevant, unclassified and curated papers.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	query, args, err := s.sb.Select(
		"COUNT(*)",
		"COALESCE(SUM(relevant), 0)",
		"COUNT(*) - COUNT(relevant)",
		"COALESCE(SUM(curated), 0)",
	).From(papersTable).ToSql()
	if err != nil {
		return Stats{}, fmt.Errorf("building stats query: %w", err)
	}
	var st Stats
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&st.Total, &st.Relevant, &st.Unclassified, &st.Curated); err != nil {
		return Stats{}, fmt.Errorf("reading stats: %w", err)
	}
	return st, nil
}

func (s *Store) query(ctx context.Context, q sq.SelectBuilder) ([]Paper, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	var papers []Paper
	for rows.Next() {
		p, err := scanPaper(rows)
		if err != nil {
			return nil, err
		}
		papers = append(papers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating papers: %w", err)
	}
	return papers, nil
}

func scanPaper(rows *sql.Rows) (Paper, error) {
	var p Paper
	var arxivID, title, authors, categories, abstract, date, published sql.NullString
	var relevant sql.NullInt64
	var curated int
	var architectures, created string
	if err := rows.Scan(&p.Record.DOI, &arxivID, &title, &authors, &categories, &abstract, &date,
		&published, &relevant, &architectures, &curated, &created); err != nil {
		return Paper{}, fmt.Errorf("scanning paper: %w", err)
	}

	p.Record.ArxivID = nullable(arxivID)
	p.Record.Title = nullable(title)
	p.Record.Authors = nullable(authors)
	p.Record.Categories = nullable(categories)
	p.Record.Abstract = nullable(abstract)
	p.Record.Date = nullable(date)

	if published.Valid {
		if t, err := time.Parse(time.RFC3339, published.String); err == nil {
			p.PublishedAt = &t
		}
	}
	p.Verdict.Relevant = relevant.Valid && relevant.Int64 != 0
	p.Verdict.Skipped = !relevant.Valid
	if architectures != "" {
		p.Verdict.Architectures = strings.Split(architectures, ",")
	}
	p.Curated = curated != 0
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		p.CreatedAt = t
	}
	return p, nil
}

func nullable(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return types.Ptr(ns.String)
}

// relevance maps a verdict to the relevant column: NULL when skipped.
func relevance(v types.Verdict) *int {
	if v.Skipped {
		return nil
	}
	r := boolInt(v.Relevant)
	return &r
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
