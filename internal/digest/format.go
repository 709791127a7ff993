// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package digest turns arXiv notification mail bodies into paper records.
// A body is split into entries on a horizontal rule, each entry into
// segments on a backslash, header fields are matched against a pattern
// table, and the paper URL is recovered from the footer segment. Entries
// that cannot be fully parsed are salvaged when a URL survives and skipped
// otherwise.
package digest

import (
	"fmt"
	"os"
	"regexp"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-curator/pkg/types"
)

const (
	// DefaultSeparator is the rule arXiv prints between announcements.
	DefaultSeparator = "------------------------------------------------------------------------------"

	// DefaultSegmentDelimiter splits one announcement into its parts.
	DefaultSegmentDelimiter = `\`

	// DefaultArity is the segment count of a well-formed announcement:
	// marker, spacer, header, spacer, abstract, spacer, footer.
	DefaultArity = 7

	defaultHeaderSegment   = 2
	defaultAbstractSegment = 4
)

// urlPattern matches the first URL in a footer segment.
const urlPattern = `http[s]?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*'(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`

// FieldPattern binds a header field to the pattern whose first capture
// group holds its value.
type FieldPattern struct {
	Field   types.Field
	Pattern *regexp.Regexp
}

// Format describes the layout of one digest flavour. A Format is read-only
// once built and may be shared between goroutines.
type Format struct {
	// Name identifies the format in logs.
	Name string

	// Separator divides a digest into entries.
	Separator string

	// SegmentDelimiter divides an entry into segments.
	SegmentDelimiter string

	// Arity is the segment count of a well-formed entry.
	Arity int

	// HeaderSegment and AbstractSegment index into a well-formed entry.
	// The footer is always the last segment.
	HeaderSegment   int
	AbstractSegment int

	// Fields is matched against the header segment in order.
	Fields []FieldPattern

	// Identifier finds the paper URL in the footer segment.
	Identifier *regexp.Regexp

	// LineBreaks are line-continuation sequences in the abstract. Each one,
	// with the indentation around it, is joined into a single space, in
	// list order. An empty list keeps the abstract's lines as they are.
	LineBreaks []string
}

// DefaultFormat returns the layout of arXiv "new submissions" mails.
func DefaultFormat() Format {
	return Format{
		Name:             "arxiv",
		Separator:        DefaultSeparator,
		SegmentDelimiter: DefaultSegmentDelimiter,
		Arity:            DefaultArity,
		HeaderSegment:    defaultHeaderSegment,
		AbstractSegment:  defaultAbstractSegment,
		Fields: []FieldPattern{
			{Field: types.FieldArxivID, Pattern: regexp.MustCompile(`arXiv:(\S+)`)},
			{Field: types.FieldDate, Pattern: regexp.MustCompile(`Date: (.+?)\s+\(`)},
			{Field: types.FieldTitle, Pattern: regexp.MustCompile(`Title: (.+)`)},
			{Field: types.FieldAuthors, Pattern: regexp.MustCompile(`Authors: (.+)`)},
			{Field: types.FieldCategories, Pattern: regexp.MustCompile(`Categories: (.+)`)},
		},
		Identifier: regexp.MustCompile(urlPattern),
		LineBreaks: []string{"\r\n", "\n"},
	}
}

// FooterSegment returns the index of the footer in a well-formed entry.
func (f Format) FooterSegment() int {
	return f.Arity - 1
}

// Validate checks that the segment indices fit the arity and every pattern
// has a capture group.
func (f Format) Validate() error {
	if f.Separator == "" {
		return fmt.Errorf("format %q: empty separator", f.Name)
	}
	if f.SegmentDelimiter == "" {
		return fmt.Errorf("format %q: empty segment delimiter", f.Name)
	}
	if f.Arity < 1 {
		return fmt.Errorf("format %q: arity %d must be positive", f.Name, f.Arity)
	}
	for _, idx := range []int{f.HeaderSegment, f.AbstractSegment} {
		if idx < 0 || idx >= f.Arity {
			return fmt.Errorf("format %q: segment index %d out of range [0,%d)", f.Name, idx, f.Arity)
		}
	}
	if f.Identifier == nil {
		return fmt.Errorf("format %q: no identifier pattern", f.Name)
	}
	for _, fp := range f.Fields {
		if fp.Pattern == nil {
			return fmt.Errorf("format %q: field %s has no pattern", f.Name, fp.Field)
		}
		if fp.Pattern.NumSubexp() < 1 {
			return fmt.Errorf("format %q: pattern for %s has no capture group", f.Name, fp.Field)
		}
	}
	return nil
}

// formatFile is the YAML shape of a format override. Omitted keys keep
// the DefaultFormat value.
type formatFile struct {
	Name             string            `yaml:"name"`
	Separator        string            `yaml:"separator"`
	SegmentDelimiter string            `yaml:"segment_delimiter"`
	Arity            int               `yaml:"arity"`
	HeaderSegment    *int              `yaml:"header_segment"`
	AbstractSegment  *int              `yaml:"abstract_segment"`
	Identifier       string            `yaml:"identifier"`
	LineBreaks       []string          `yaml:"line_breaks"`
	Fields           []formatFileField `yaml:"fields"`
}

type formatFileField struct {
	Field   string `yaml:"field"`
	Pattern string `yaml:"pattern"`
}

// ParseFormat decodes a YAML format description layered over DefaultFormat.
func ParseFormat(data []byte) (Format, error) {
	var ff formatFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return Format{}, fmt.Errorf("parsing format: %w", err)
	}

	f := DefaultFormat()
	if ff.Name != "" {
		f.Name = ff.Name
	}
	if ff.Separator != "" {
		f.Separator = ff.Separator
	}
	if ff.SegmentDelimiter != "" {
		f.SegmentDelimiter = ff.SegmentDelimiter
	}
	if ff.Arity != 0 {
		f.Arity = ff.Arity
	}
	if ff.HeaderSegment != nil {
		f.HeaderSegment = *ff.HeaderSegment
	}
	if ff.AbstractSegment != nil {
		f.AbstractSegment = *ff.AbstractSegment
	}
	if ff.LineBreaks != nil {
		f.LineBreaks = ff.LineBreaks
	}
	if ff.Identifier != "" {
		re, err := regexp.Compile(ff.Identifier)
		if err != nil {
			return Format{}, fmt.Errorf("compiling identifier pattern: %w", err)
		}
		f.Identifier = re
	}
	if len(ff.Fields) > 0 {
		f.Fields = make([]FieldPattern, 0, len(ff.Fields))
		for _, fld := range ff.Fields {
			re, err := regexp.Compile(fld.Pattern)
			if err != nil {
				return Format{}, fmt.Errorf("compiling pattern for %s: %w", fld.Field, err)
			}
			f.Fields = append(f.Fields, FieldPattern{Field: types.Field(fld.Field), Pattern: re})
		}
	}

	if err := f.Validate(); err != nil {
		return Format{}, err
	}
	return f, nil
}

// LoadFormat reads a YAML format file. An empty path returns DefaultFormat.
func LoadFormat(path string) (Format, error) {
	if path == "" {
		return DefaultFormat(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Format{}, fmt.Errorf("reading format %s: %w", path, err)
	}
	return ParseFormat(data)
}
