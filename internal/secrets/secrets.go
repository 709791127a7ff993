// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads API keys and tokens from a directory of plain-text files.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value. Environment variables fill in keys that have no file.
//
// Known keys: anthropic-api-key, gemini-api-key, github-token.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Key file names.
const (
	AnthropicAPIKey = "anthropic-api-key"
	GeminiAPIKey    = "gemini-api-key"
	GitHubToken     = "github-token"
)

// envFallbacks maps a key to the environment variables consulted when no
// file provides it, in order.
var envFallbacks = map[string][]string{
	AnthropicAPIKey: {"ANTHROPIC_API_KEY"},
	GeminiAPIKey:    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	GitHubToken:     {"GITHUB_TOKEN", "GH_TOKEN"},
}

// Secrets maps key names to values.
type Secrets map[string]string

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory is not an error; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (Secrets, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Secrets{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(Secrets)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("key", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Get returns the value for key, falling back to its environment variables.
// It returns "" when neither source has a value.
func (s Secrets) Get(key string) string {
	if v := s[key]; v != "" {
		return v
	}
	for _, env := range envFallbacks[key] {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return v
		}
	}
	return ""
}

// Fill sets *dst to the value for key when *dst is empty. Values from the
// config file or flags win over secret files.
func (s Secrets) Fill(dst *string, key string) {
	if *dst != "" {
		return
	}
	*dst = s.Get(key)
}
