// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-curator/internal/digest"
	"github.com/pdiddy/paper-curator/internal/mail"
	"github.com/pdiddy/paper-curator/pkg/types"
)

var parseCmd = &cobra.Command{
	Use:   "parse [files...]",
	Short: "Recover paper records from digest files or stdin",
	Long: `Parse runs the extraction engine over arXiv digest mails and prints the
recovered records. Files ending in .eml are read as MIME messages; any other
file, and stdin when no files are given, is read as a plain digest body.

Entries without a recoverable URL are dropped. With --verbose every salvaged
or rejected entry is logged to stderr. A tally is always printed to stderr.`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringP("output", "o", "yaml", "output format: yaml or json")
	parseCmd.Flags().String("digest-format", "", "YAML file overriding the digest layout")

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")
	if output != "yaml" && output != "json" {
		return fmt.Errorf("unknown output format %q (want yaml or json)", output)
	}

	formatFile, _ := cmd.Flags().GetString("digest-format")
	if formatFile == "" {
		formatFile = cfg.Digest.FormatFile
	}
	opts, err := streamOptions(formatFile)
	if err != nil {
		return err
	}

	bodies, err := readDigests(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}

	var tally digest.Tally
	opts = append(opts, digest.WithTally(&tally))
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts = append(opts, digest.WithVerbose(logger))
	}

	records := slices.Collect(digest.StreamStrings(bodies, opts...))
	if records == nil {
		records = []types.PaperRecord{}
	}
	if err := writeRecords(cmd.OutOrStdout(), output, records); err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d digests, %d entries: %d full, %d salvaged, %d rejected\n",
		tally.Digests, tally.Entries, tally.Full, tally.Salvaged, tally.Rejected)
	return nil
}

// streamOptions loads a digest layout override when one is configured.
func streamOptions(formatFile string) ([]digest.Option, error) {
	if formatFile == "" {
		return nil, nil
	}
	f, err := digest.LoadFormat(formatFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("using digest format", zap.String("name", f.Name), zap.String("path", formatFile))
	return []digest.Option{digest.WithFormat(f)}, nil
}

// readDigests returns the digest bodies of paths, or of stdin when paths is
// empty.
func readDigests(stdin io.Reader, paths []string) ([]string, error) {
	if len(paths) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []string{string(data)}, nil
	}

	bodies := make([]string, 0, len(paths))
	for _, p := range paths {
		m, err := mail.LoadFile(p)
		if err != nil {
			return nil, err
		}
		bodies = append(bodies, m.Body)
	}
	return bodies, nil
}

func writeRecords(w io.Writer, format string, records []types.PaperRecord) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return enc.Close()
}
