// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-curator/internal/catalog"
	"github.com/pdiddy/paper-curator/pkg/types"
)

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "Review and label papers in the catalog",
	Long: `Papers reads and updates the catalog. Curated papers (those a human has
labelled) are shown to the classifier as examples, so labelling a handful of
papers by hand improves later runs.`,
}

// --- list subcommand ---

var papersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored papers, newest first",
	RunE:  runPapersList,
}

func runPapersList(cmd *cobra.Command, args []string) error {
	opts, err := listOptionsFromFlags(cmd)
	if err != nil {
		return err
	}
	output, _ := cmd.Flags().GetString("output")

	store, err := catalog.Open(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	switch output {
	case "table", "":
		papers, err := store.List(cmd.Context(), opts)
		if err != nil {
			return err
		}
		writePaperTable(cmd.OutOrStdout(), papers)
		return nil
	default:
		return store.Export(cmd.Context(), cmd.OutOrStdout(), output, opts)
	}
}

// listOptionsFromFlags turns --relevant, --curated, --unclassified, --since
// and --limit into catalog filters. Unset flags do not filter.
func listOptionsFromFlags(cmd *cobra.Command) (catalog.ListOptions, error) {
	var opts catalog.ListOptions
	for name, dst := range map[string]**bool{"relevant": &opts.Relevant, "curated": &opts.Curated} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		v, _ := cmd.Flags().GetBool(name)
		*dst = &v
	}
	opts.Unclassified, _ = cmd.Flags().GetBool("unclassified")
	if since, _ := cmd.Flags().GetString("since"); since != "" {
		t, err := parseSince(since, time.Now())
		if err != nil {
			return opts, err
		}
		opts.Since = t
	}
	opts.Limit, _ = cmd.Flags().GetInt("limit")
	return opts, nil
}

// parseSince accepts a date (2006-01-02) or a duration back from now (72h).
func parseSince(s string, now time.Time) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return now.Add(-d), nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid --since %q: want YYYY-MM-DD or a duration like 72h", s)
}

func writePaperTable(w io.Writer, papers []catalog.Paper) {
	if len(papers) == 0 {
		fmt.Fprintln(w, "No papers found.")
		return
	}

	fmt.Fprintf(w, "%-36s  %-3s  %-3s  %s\n", "DOI", "Rel", "Cur", "Title")
	fmt.Fprintln(w, strings.Repeat("-", 100))
	for _, p := range papers {
		title := types.Deref(p.Record.Title)
		if len(title) > 55 {
			title = title[:52] + "..."
		}
		fmt.Fprintf(w, "%-36s  %-3s  %-3s  %s\n", p.Record.DOI, relevanceMark(p.Verdict), mark(p.Curated), title)
	}
	fmt.Fprintf(w, "\n%d paper(s)\n", len(papers))
}

// relevanceMark shows "?" for papers the classifier has not judged.
func relevanceMark(v types.Verdict) string {
	if v.Skipped {
		return "?"
	}
	return mark(v.Relevant)
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "-"
}

// --- curate subcommand ---

var papersCurateCmd = &cobra.Command{
	Use:   "curate <doi> [relevant]",
	Short: "Label a stored paper and mark it curated",
	Long: `Curate records a human relevance label for a stored paper. The label is
true by default; pass false (or --irrelevant) to mark a paper as not relevant.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPapersCurate,
}

func runPapersCurate(cmd *cobra.Command, args []string) error {
	relevant := true
	if len(args) == 2 {
		v, err := strconv.ParseBool(args[1])
		if err != nil {
			return fmt.Errorf("relevance label %q: want true or false", args[1])
		}
		relevant = v
	}
	if irrelevant, _ := cmd.Flags().GetBool("irrelevant"); irrelevant {
		relevant = false
	}

	store, err := catalog.Open(cmd.Context(), cfg.Catalog)
	if err != nil {
		return err
	}
	defer store.Close()

	doi := args[0]
	if err := store.SetCurated(cmd.Context(), doi, relevant); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("no stored paper with DOI %s", doi)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "curated: %s (relevant=%t)\n", doi, relevant)
	return nil
}

// --- stats subcommand ---

var papersStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count stored, relevant, unclassified and curated papers",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := catalog.Open(cmd.Context(), cfg.Catalog)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d papers, %d relevant, %d unclassified, %d curated\n",
			st.Total, st.Relevant, st.Unclassified, st.Curated)
		return nil
	},
}

func init() {
	papersListCmd.Flags().Bool("relevant", false, "only papers with this relevance label")
	papersListCmd.Flags().Bool("curated", false, "only papers with this curation state")
	papersListCmd.Flags().Bool("unclassified", false, "only papers the classifier has not judged")
	papersListCmd.Flags().String("since", "", "only papers stored since a date (YYYY-MM-DD) or duration (72h)")
	papersListCmd.Flags().Int("limit", 50, "maximum papers to show (0 for all)")
	papersListCmd.Flags().StringP("output", "o", "table", "output format: table, yaml or json")

	papersCurateCmd.Flags().Bool("irrelevant", false, "label the paper as not relevant")

	papersCmd.AddCommand(papersListCmd, papersCurateCmd, papersStatsCmd)
	rootCmd.AddCommand(papersCmd)
}
