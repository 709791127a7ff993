// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// HTTPConfig holds shared HTTP settings used by collaborators that make
// network requests (Gmail, arXiv API, classifier backends).
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-curator/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`
}

// Mail source kinds.
const (
	SourceGmail = "gmail"
	SourceDir   = "dir"
	SourceAPI   = "api"
	SourceRSS   = "rss"
)

// MailConfig selects where digest bodies come from.
type MailConfig struct {
	// Source is one of "gmail", "dir", "api" or "rss".
	Source string `json:"source" yaml:"source" mapstructure:"source" validate:"oneof=gmail dir api rss"`

	// Sender restricts messages to this From address.
	Sender string `json:"sender" yaml:"sender" mapstructure:"sender"`

	// Query is an optional Gmail search query (e.g. "is:unread").
	Query string `json:"query,omitempty" yaml:"query,omitempty" mapstructure:"query"`

	// MaxMessages caps how many messages are fetched per run.
	MaxMessages int `json:"max_messages" yaml:"max_messages" mapstructure:"max_messages" validate:"gte=0"`

	// Dir holds .eml/.txt digests when Source is "dir".
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir" validate:"required_if=Source dir"`

	// CredentialsFile is the OAuth client JSON downloaded from Google Cloud.
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty" mapstructure:"credentials_file" validate:"required_if=Source gmail"`

	// TokenFile is an OAuth token JSON produced by a separate login step.
	TokenFile string `json:"token_file,omitempty" yaml:"token_file,omitempty" mapstructure:"token_file" validate:"required_if=Source gmail"`

	// RatePerSecond throttles Gmail message fetches (0 means unlimited).
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second" mapstructure:"rate_per_second" validate:"gte=0"`

	// Categories lists arXiv categories polled when Source is "api" or "rss".
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty" mapstructure:"categories" validate:"required_if=Source api,required_if=Source rss"`
}

// DigestConfig points at an optional digest format override.
type DigestConfig struct {
	// FormatFile is a YAML file describing separators and field patterns.
	FormatFile string `json:"format_file,omitempty" yaml:"format_file,omitempty" mapstructure:"format_file"`
}

// AIConfig holds shared settings for stages that call a Generative AI API.
type AIConfig struct {
	// Model is the AI model identifier (e.g. "claude-sonnet-4-5-20250929").
	Model string `json:"model" yaml:"model" mapstructure:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty" mapstructure:"api_key"`

	// MaxRetries is the number of retry attempts for failed API calls (default 3).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries" validate:"gte=0"`
}

// Classifier providers.
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// ClassifierConfig holds settings for the classification stage.
type ClassifierConfig struct {
	AIConfig `yaml:",inline" mapstructure:",squash"`

	// Provider is one of "claude", "gemini" or "none".
	Provider string `json:"provider" yaml:"provider" mapstructure:"provider" validate:"oneof=claude gemini none"`

	// Examples is how many curated papers are shown to the model (default 8).
	Examples int `json:"examples" yaml:"examples" mapstructure:"examples" validate:"gte=0"`
}

// CatalogConfig selects the knowledge-base database.
type CatalogConfig struct {
	// Driver is "sqlite3" or "pgx".
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver" validate:"oneof=sqlite3 pgx"`

	// DSN is a file path for sqlite3 or a postgres:// URL for pgx.
	DSN string `json:"dsn" yaml:"dsn" mapstructure:"dsn" validate:"required"`
}

// IssuesConfig controls GitHub issue filing for relevant papers.
type IssuesConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" mapstructure:"enabled"`

	// Repository is "owner/name".
	Repository string `json:"repository,omitempty" yaml:"repository,omitempty" mapstructure:"repository" validate:"required_if=Enabled true"`

	// Token is a GitHub token with issues:write.
	Token string `json:"token,omitempty" yaml:"token,omitempty" mapstructure:"token"`

	// Labels are attached to every filed issue.
	Labels []string `json:"labels,omitempty" yaml:"labels,omitempty" mapstructure:"labels"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `json:"format" yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// MetricsConfig configures the Prometheus textfile written after each run.
type MetricsConfig struct {
	// Textfile is the .prom output path; empty disables metrics output.
	Textfile string `json:"textfile,omitempty" yaml:"textfile,omitempty" mapstructure:"textfile"`
}

// CuratorConfig groups all stage configurations.
type CuratorConfig struct {
	HTTP       HTTPConfig       `json:"http" yaml:"http" mapstructure:"http"`
	Mail       MailConfig       `json:"mail" yaml:"mail" mapstructure:"mail"`
	Digest     DigestConfig     `json:"digest" yaml:"digest" mapstructure:"digest"`
	Classifier ClassifierConfig `json:"classifier" yaml:"classifier" mapstructure:"classifier"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog" mapstructure:"catalog"`
	Issues     IssuesConfig     `json:"issues" yaml:"issues" mapstructure:"issues"`
	Log        LogConfig        `json:"log" yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics" mapstructure:"metrics"`
}

// ArxivSender is the From address of arXiv notification mails.
const ArxivSender = "no-reply@arxiv.org"

// DefaultConfig returns the configuration used when no file or env
// overrides are present.
func DefaultConfig() CuratorConfig {
	return CuratorConfig{
		HTTP: HTTPConfig{
			Timeout:   60 * time.Second,
			UserAgent: "paper-curator/0.1",
		},
		Mail: MailConfig{
			Source:        SourceGmail,
			Sender:        ArxivSender,
			MaxMessages:   15,
			RatePerSecond: 5,
		},
		Classifier: ClassifierConfig{
			AIConfig: AIConfig{
				Model:      "claude-sonnet-4-5-20250929",
				MaxRetries: 3,
			},
			Provider: ProviderClaude,
			Examples: 8,
		},
		Catalog: CatalogConfig{
			Driver: "sqlite3",
			DSN:    "data/papers.db",
		},
		Issues: IssuesConfig{
			Labels: []string{"new-paper"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and reports every violation at once.
func (c CuratorConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}
