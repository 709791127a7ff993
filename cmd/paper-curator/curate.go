// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/paper-curator/internal/arxivapi"
	"github.com/pdiddy/paper-curator/internal/catalog"
	"github.com/pdiddy/paper-curator/internal/classify"
	"github.com/pdiddy/paper-curator/internal/curate"
	"github.com/pdiddy/paper-curator/internal/digest"
	"github.com/pdiddy/paper-curator/internal/issues"
	"github.com/pdiddy/paper-curator/internal/mail"
	"github.com/pdiddy/paper-curator/pkg/types"
)

var curateCmd = &cobra.Command{
	Use:   "curate",
	Short: "Fetch digests, classify new papers and update the catalog",
	Long: `Curate runs the whole pipeline: it fetches arXiv digests from Gmail or a
directory (or polls the arXiv API directly), recovers paper records, fills in
salvaged records from the arXiv API, classifies papers not yet in the catalog,
opens a GitHub issue for each relevant paper and stores every paper.

Papers that fail are reported and left out of the catalog so the next run
retries them.`,
	RunE: runCurate,
}

func init() {
	curateCmd.Flags().String("source", "", "where papers come from: gmail, dir, api or rss")
	curateCmd.Flags().String("dir", "", "directory of .eml/.txt digests (implies --source dir)")
	curateCmd.Flags().Int("max", 0, "maximum messages to fetch, or papers per category for --source api")
	curateCmd.Flags().Bool("dry-run", false, "classify but do not write the catalog or file issues")
	curateCmd.Flags().Bool("no-issues", false, "do not file GitHub issues")
	curateCmd.Flags().Bool("no-enrich", false, "do not look up salvaged papers on the arXiv API")

	rootCmd.AddCommand(curateCmd)
}

func runCurate(cmd *cobra.Command, args []string) error {
	c := cfg
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		c.Mail.Dir = dir
		c.Mail.Source = types.SourceDir
	}
	if source, _ := cmd.Flags().GetString("source"); source != "" {
		c.Mail.Source = source
	}
	if n, _ := cmd.Flags().GetInt("max"); n > 0 {
		c.Mail.MaxMessages = n
	}
	if noIssues, _ := cmd.Flags().GetBool("no-issues"); noIssues {
		c.Issues.Enabled = false
	}
	if err := c.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	verbose, _ := cmd.Flags().GetBool("verbose")
	noEnrich, _ := cmd.Flags().GetBool("no-enrich")

	store, err := catalog.Open(ctx, c.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	p := &curate.Pipeline{
		Store:   store,
		Metrics: curate.NewMetrics(),
		Logger:  logger,
		Verbose: verbose,
		DryRun:  dryRun,
	}

	api := arxivapi.New(c.HTTP, logger)
	if err := wireSource(ctx, p, c, api); err != nil {
		return err
	}
	if !noEnrich && c.Mail.Source != types.SourceAPI {
		p.Enricher = api
	}

	if c.Digest.FormatFile != "" {
		f, err := digest.LoadFormat(c.Digest.FormatFile)
		if err != nil {
			return err
		}
		p.Format = &f
	}

	backend, err := classify.NewBackend(ctx, c.Classifier, c.HTTP, logger)
	if err != nil {
		return err
	}
	if closer, ok := backend.(io.Closer); ok {
		defer closer.Close()
	}
	p.Classifier, err = classify.New(ctx, backend, store, c.Classifier, logger)
	if err != nil {
		return err
	}
	if backend == nil {
		logger.Warn("no classifier configured; papers are stored unclassified")
	}

	if c.Issues.Enabled && !dryRun {
		filer, err := issues.NewFiler(ctx, c.Issues, logger)
		if err != nil {
			return err
		}
		p.Issues = filer
	}

	sum, runErr := p.Run(ctx, cmd.OutOrStdout())

	if c.Metrics.Textfile != "" {
		if err := p.Metrics.WriteTextfile(c.Metrics.Textfile); err != nil {
			logger.Warn("could not write metrics", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}
	if sum.HasFailures() {
		return fmt.Errorf("%d paper(s) failed", sum.Failed)
	}
	return nil
}

// wireSource sets the pipeline's mail or record source from c.Mail.
func wireSource(ctx context.Context, p *curate.Pipeline, c types.CuratorConfig, api *arxivapi.Client) error {
	switch c.Mail.Source {
	case types.SourceGmail:
		svc, err := mail.NewGmailService(ctx, c.Mail, c.HTTP)
		if err != nil {
			return err
		}
		p.Mail = mail.NewGmailSource(svc, c.Mail, logger)
	case types.SourceDir:
		p.Mail = mail.NewDirSource(c.Mail.Dir, c.Mail.Sender, logger)
	case types.SourceAPI:
		p.Records = &arxivapi.Feed{Client: api, Categories: c.Mail.Categories, Max: c.Mail.MaxMessages}
	case types.SourceRSS:
		p.Records = arxivapi.NewRSSFeed(c.HTTP, c.Mail.Categories, logger)
	default:
		return fmt.Errorf("unknown source %q", c.Mail.Source)
	}
	logger.Debug("wired source", zap.String("source", c.Mail.Source))
	return nil
}
