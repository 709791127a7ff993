// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package digest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-curator/pkg/types"
)

func TestDefaultFormatIsValid(t *testing.T) {
	f := DefaultFormat()
	require.NoError(t, f.Validate())
	assert.Len(t, f.Separator, 78)
	assert.Equal(t, 6, f.FooterSegment())
	assert.Len(t, f.Fields, len(types.HeaderFields))
	for i, fp := range f.Fields {
		assert.Equal(t, types.HeaderFields[i], fp.Field)
	}
}

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Format)
		errMsg string
	}{
		{"empty separator", func(f *Format) { f.Separator = "" }, "empty separator"},
		{"empty delimiter", func(f *Format) { f.SegmentDelimiter = "" }, "empty segment delimiter"},
		{"zero arity", func(f *Format) { f.Arity = 0 }, "must be positive"},
		{"header out of range", func(f *Format) { f.HeaderSegment = 7 }, "out of range"},
		{"abstract negative", func(f *Format) { f.AbstractSegment = -1 }, "out of range"},
		{"no identifier", func(f *Format) { f.Identifier = nil }, "no identifier pattern"},
		{"nil field pattern", func(f *Format) { f.Fields[0].Pattern = nil }, "has no pattern"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := DefaultFormat()
			tt.mutate(&f)
			err := f.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestParseFormat(t *testing.T) {
	data := []byte(`
name: pipe
separator: "=====\n"
segment_delimiter: "|"
arity: 3
header_segment: 0
abstract_segment: 1
line_breaks: []
fields:
  - field: title
    pattern: 'Title: (.+)'
  - field: date
    pattern: 'On (\d{4}-\d{2}-\d{2})'
`)
	f, err := ParseFormat(data)
	require.NoError(t, err)

	assert.Equal(t, "pipe", f.Name)
	assert.Equal(t, "=====\n", f.Separator)
	assert.Equal(t, "|", f.SegmentDelimiter)
	assert.Equal(t, 3, f.Arity)
	assert.Equal(t, 0, f.HeaderSegment)
	assert.Equal(t, 1, f.AbstractSegment)
	assert.Empty(t, f.LineBreaks)
	require.Len(t, f.Fields, 2)
	assert.Equal(t, types.FieldDate, f.Fields[1].Field)
	assert.NotNil(t, f.Identifier, "identifier keeps the default")

	records := collect([]string{"Title: X\nOn 2024-05-01|abs|https://e.org/1\n"}, WithFormat(f))
	require.Len(t, records, 1)
	assert.Equal(t, types.Ptr("2024-05-01"), records[0].Date)
}

func TestParseFormatErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		errMsg string
	}{
		{"bad yaml", "arity: [", "parsing format"},
		{"bad field regex", "fields:\n  - field: title\n    pattern: '('\n", "compiling pattern for title"},
		{"bad identifier regex", "identifier: '['\n", "compiling identifier pattern"},
		{"no capture group", "fields:\n  - field: title\n    pattern: 'Title'\n", "no capture group"},
		{"indices beyond arity", "arity: 2\n", "out of range"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFormat([]byte(tt.data))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoadFormat(t *testing.T) {
	f, err := LoadFormat("")
	require.NoError(t, err)
	assert.Equal(t, "arxiv", f.Name)

	path := filepath.Join(t.TempDir(), "format.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: custom\n"), 0o644))
	f, err = LoadFormat(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", f.Name)
	assert.Equal(t, DefaultArity, f.Arity)

	_, err = LoadFormat(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading format")
}

func TestNormalize(t *testing.T) {
	x := Extraction{
		Fields: Fields{
			types.FieldTitle:   "T",
			types.FieldAuthors: "",
		},
		Abstract: types.Ptr("abs"),
	}
	rec := Normalize(x, "http://arxiv.org/abs/1")

	assert.Equal(t, "http://arxiv.org/abs/1", rec.DOI)
	assert.Equal(t, types.Ptr("T"), rec.Title)
	require.NotNil(t, rec.Authors, "present but empty stays present")
	assert.Equal(t, "", *rec.Authors)
	assert.Nil(t, rec.Categories)
	assert.Nil(t, rec.Date)
	assert.Nil(t, rec.ArxivID)

	// The record does not alias the extraction.
	*x.Abstract = "changed"
	assert.Equal(t, "abs", *rec.Abstract)

	empty := Normalize(Extraction{}, "http://x")
	assert.Equal(t, types.PaperRecord{DOI: "http://x"}, empty)
}
