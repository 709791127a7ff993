// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package classify decides whether a paper is about language models in
// science and which model architectures it uses. Decisions come from a
// generative model prompted with human-curated examples.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// backoffBase is the base delay between classification retries.
// Tests override it to avoid real sleeps.
var backoffBase = 2 * time.Second

// ErrNoAPIKey is returned when a backend is built without credentials.
var ErrNoAPIKey = errors.New("no API key configured")

// Classifier labels one paper.
type Classifier interface {
	Classify(ctx context.Context, rec types.PaperRecord) (types.Verdict, error)
}

// Backend sends a prompt to a generative model and returns its text reply.
type Backend interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ExampleSource supplies curated papers for few-shot prompting.
type ExampleSource interface {
	Curated(ctx context.Context, limit int) ([]types.CuratedPaper, error)
}

// classifyPromptTmpl asks for a JSON verdict. Curated examples are shown
// before the paper under review.
var classifyPromptTmpl = template.Must(template.New("classify").Funcs(promptFuncs).Parse(`You curate a reading list of research papers that use language models in science.

Decide whether the paper below is about a language model or applies one to a scientific problem. If it is, list the model architectures it discusses.
{{- if .Architectures}} Prefer these architecture names when they fit: {{join .Architectures ", "}}.{{end}}

Respond with a JSON object with these fields and nothing else:
- relevant: true or false
- architectures: an array of lowercase architecture names (empty when relevant is false)
- reason: one sentence explaining the decision
{{range .Examples}}
Title: {{.Title}}
Abstract: {{.Abstract}}
Answer: {{answer .}}
{{end}}
Title: {{.Title}}
Abstract: {{.Abstract}}
Answer:`))

var promptFuncs = template.FuncMap{
	"join": strings.Join,
	"answer": func(p types.CuratedPaper) string {
		b, _ := json.Marshal(aiVerdict{Relevant: p.Relevant, Architectures: nonNil(p.Architectures)})
		return string(b)
	},
}

// aiVerdict is the JSON shape the model is asked to return.
type aiVerdict struct {
	Relevant      bool     `json:"relevant"`
	Architectures []string `json:"architectures"`
	Reason        string   `json:"reason,omitempty"`
}

// LLMClassifier classifies papers with a generative model.
type LLMClassifier struct {
	backend    Backend
	examples   []types.CuratedPaper
	maxRetries int
	logger     *zap.Logger
}

// NewLLMClassifier returns a classifier that shows examples to backend and
// retries failed calls up to maxRetries times.
func NewLLMClassifier(backend Backend, examples []types.CuratedPaper, maxRetries int, logger *zap.Logger) *LLMClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMClassifier{backend: backend, examples: examples, maxRetries: maxRetries, logger: logger}
}

// LoadExamples reads up to n curated papers from src.
func LoadExamples(ctx context.Context, src ExampleSource, n int) ([]types.CuratedPaper, error) {
	if n <= 0 {
		return nil, nil
	}
	examples, err := src.Curated(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("loading curated examples: %w", err)
	}
	return examples, nil
}

// Classify returns the verdict for rec. Records without a title or abstract
// are not sent to the model and get a Skipped verdict.
func (c *LLMClassifier) Classify(ctx context.Context, rec types.PaperRecord) (types.Verdict, error) {
	if !rec.Classifiable() {
		return types.Verdict{Skipped: true}, nil
	}

	prompt, err := c.renderPrompt(rec)
	if err != nil {
		return types.Verdict{}, fmt.Errorf("rendering prompt: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			c.logger.Debug("retrying classification",
				zap.String("doi", rec.DOI), zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return types.Verdict{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		text, err := c.backend.Complete(ctx, prompt)
		if err != nil {
			lastErr = err
			continue
		}
		v, err := ParseVerdict(text)
		if err != nil {
			lastErr = err
			continue
		}
		return v, nil
	}
	return types.Verdict{}, fmt.Errorf("classifying %s after %d retries: %w", rec.DOI, c.maxRetries, lastErr)
}

func (c *LLMClassifier) renderPrompt(rec types.PaperRecord) (string, error) {
	var buf bytes.Buffer
	err := classifyPromptTmpl.Execute(&buf, struct {
		Title         string
		Abstract      string
		Examples      []types.CuratedPaper
		Architectures []string
	}{
		Title:         types.Deref(rec.Title),
		Abstract:      types.Deref(rec.Abstract),
		Examples:      c.examples,
		Architectures: knownArchitectures(c.examples),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseVerdict decodes a model reply. Markdown code fences and text around
// the JSON object are ignored. Architecture names are lower-cased and
// de-duplicated; an irrelevant paper has none.
func ParseVerdict(text string) (types.Verdict, error) {
	text = cleanJSONBlock(text)
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return types.Verdict{}, fmt.Errorf("no JSON object in reply %q", truncate(text, 120))
	}

	var av aiVerdict
	if err := json.Unmarshal([]byte(text[start:end+1]), &av); err != nil {
		return types.Verdict{}, fmt.Errorf("parsing verdict JSON: %w", err)
	}

	v := types.Verdict{Relevant: av.Relevant, Reason: strings.TrimSpace(av.Reason)}
	if av.Relevant {
		v.Architectures = normalizeArchitectures(av.Architectures)
	}
	return v, nil
}

func normalizeArchitectures(in []string) []string {
	var out []string
	for _, a := range in {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && !slices.Contains(out, a) {
			out = append(out, a)
		}
	}
	return out
}

// knownArchitectures is the sorted union of example architectures.
func knownArchitectures(examples []types.CuratedPaper) []string {
	var all []string
	for _, e := range examples {
		all = append(all, e.Architectures...)
	}
	all = normalizeArchitectures(all)
	slices.Sort(all)
	return all
}

// cleanJSONBlock removes markdown code block wrappers from JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Skip is a Classifier that labels nothing; every verdict is Skipped.
// It backs the "none" provider.
type Skip struct{}

// Classify returns a Skipped verdict.
func (Skip) Classify(context.Context, types.PaperRecord) (types.Verdict, error) {
	return types.Verdict{Skipped: true}, nil
}
