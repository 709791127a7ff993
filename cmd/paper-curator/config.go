// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pdiddy/paper-curator/internal/arxivapi"
	"github.com/pdiddy/paper-curator/internal/secrets"
	"github.com/pdiddy/paper-curator/pkg/types"
)

// envPrefix namespaces environment overrides, e.g.
// PAPER_CURATOR_CATALOG_DSN=postgres://... sets catalog.dsn.
const envPrefix = "PAPER_CURATOR"

func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// setDefaults registers every key so environment variables reach Unmarshal
// even when no config file mentions them.
func setDefaults(v *viper.Viper, d types.CuratorConfig) {
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("mail.source", d.Mail.Source)
	v.SetDefault("mail.sender", d.Mail.Sender)
	v.SetDefault("mail.query", d.Mail.Query)
	v.SetDefault("mail.max_messages", d.Mail.MaxMessages)
	v.SetDefault("mail.dir", d.Mail.Dir)
	v.SetDefault("mail.credentials_file", d.Mail.CredentialsFile)
	v.SetDefault("mail.token_file", d.Mail.TokenFile)
	v.SetDefault("mail.rate_per_second", d.Mail.RatePerSecond)
	v.SetDefault("mail.categories", d.Mail.Categories)

	v.SetDefault("digest.format_file", d.Digest.FormatFile)

	v.SetDefault("classifier.provider", d.Classifier.Provider)
	v.SetDefault("classifier.model", d.Classifier.Model)
	v.SetDefault("classifier.api_key", d.Classifier.APIKey)
	v.SetDefault("classifier.max_retries", d.Classifier.MaxRetries)
	v.SetDefault("classifier.examples", d.Classifier.Examples)

	v.SetDefault("catalog.driver", d.Catalog.Driver)
	v.SetDefault("catalog.dsn", d.Catalog.DSN)

	v.SetDefault("issues.enabled", d.Issues.Enabled)
	v.SetDefault("issues.repository", d.Issues.Repository)
	v.SetDefault("issues.token", d.Issues.Token)
	v.SetDefault("issues.labels", d.Issues.Labels)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
}

// defaultConfig is types.DefaultConfig with the arXiv categories the api
// and rss sources poll.
func defaultConfig() types.CuratorConfig {
	d := types.DefaultConfig()
	d.Mail.Categories = append([]string(nil), arxivapi.DefaultCategories...)
	d.Mail.CredentialsFile = ".secrets/gmail-credentials.json"
	d.Mail.TokenFile = ".secrets/gmail-token.json"
	return d
}

// loadConfig merges defaults, the config file and environment overrides.
// It does not validate: commands validate after applying their flags.
func loadConfig(v *viper.Viper) (types.CuratorConfig, error) {
	d := defaultConfig()
	setDefaults(v, d)

	var c types.CuratorConfig
	if err := v.Unmarshal(&c); err != nil {
		return types.CuratorConfig{}, fmt.Errorf("decoding config: %w", err)
	}
	return c, nil
}

// applySecrets fills credentials the config left empty.
func applySecrets(c *types.CuratorConfig, s secrets.Secrets) {
	switch c.Classifier.Provider {
	case types.ProviderClaude:
		s.Fill(&c.Classifier.APIKey, secrets.AnthropicAPIKey)
	case types.ProviderGemini:
		s.Fill(&c.Classifier.APIKey, secrets.GeminiAPIKey)
	}
	s.Fill(&c.Issues.Token, secrets.GitHubToken)
}
