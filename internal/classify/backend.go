// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/pkg/types"
)

// NewBackend builds the backend named by cfg.Provider. It returns nil for
// the "none" provider. Callers should Close backends that implement
// io.Closer.
func NewBackend(ctx context.Context, cfg types.ClassifierConfig, httpCfg types.HTTPConfig, logger *zap.Logger) (Backend, error) {
	switch cfg.Provider {
	case types.ProviderClaude:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("claude backend: %w", ErrNoAPIKey)
		}
		return &ClaudeBackend{
			APIKey: cfg.APIKey,
			Model:  cfg.Model,
			Client: &http.Client{Timeout: httpCfg.Timeout},
			Logger: logger,
		}, nil
	case types.ProviderGemini:
		b, err := NewGeminiBackend(ctx, cfg.APIKey, cfg.Model)
		if err != nil {
			return nil, fmt.Errorf("gemini backend: %w", err)
		}
		return b, nil
	case types.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

// New builds the classifier for cfg: an LLMClassifier with up to
// cfg.Examples curated examples, or Skip when no backend is configured.
func New(ctx context.Context, backend Backend, src ExampleSource, cfg types.ClassifierConfig, logger *zap.Logger) (Classifier, error) {
	if backend == nil {
		return Skip{}, nil
	}
	var examples []types.CuratedPaper
	if src != nil {
		var err error
		examples, err = LoadExamples(ctx, src, cfg.Examples)
		if err != nil {
			return nil, err
		}
	}
	return NewLLMClassifier(backend, examples, cfg.MaxRetries, logger), nil
}
