package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	fserrors "github.com/Aman-CERP/foldersearch/internal/errors"
	"github.com/Aman-CERP/foldersearch/internal/output"
	"github.com/Aman-CERP/foldersearch/internal/report"
	"github.com/Aman-CERP/foldersearch/internal/search"
)

// Output formats for search.
const (
	formatHTML = "html"
	formatText = "text"
	formatJSON = "json"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	mode   string // "", "terms", "phrases", "regex"
	format string
	outDir string
	noSync bool
}

// searchGroup is the set of queries that run in one mode.
type searchGroup struct {
	mode search.Mode

	Mode    string       `json:"mode"`
	Queries []string     `json:"queries"`
	Hits    []search.Hit `json:"hits"`
	Report  string       `json:"report,omitempty"`
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <folder> <query>...",
		Short: "Sync a folder's index, search it and write a report",
		Long: `Bring the folder's index up to date, then run each query against it.

Every query is classified on its own unless --mode is given:
  - regex metacharacters (. * + ? ^ $ { } ( ) | [ ] \) make it a regex
  - a space makes it an exact phrase
  - anything else is a term query (query-string syntax)

Queries of the same mode are run together and their matches concatenated
in the order given. With the default html format one report is written per
mode: search_terms_report.html, search_phrases_report.html or
search_regex_report.html.`,
		Example: `  foldersearch search ~/wiki Australia
  foldersearch search ~/wiki "Cross Roads, Ripley County" 'd[ai]{2}ry'
  foldersearch search ~/wiki --mode terms "title:go" --format json`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), cmd, root, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "Force a mode for every query: terms, phrases, regex")
	cmd.Flags().StringVarP(&opts.format, "format", "f", formatHTML, "Output format: html, text, json")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", ".", "Directory for html reports (report files are never indexed)")
	cmd.Flags().BoolVar(&opts.noSync, "no-sync", false, "Search the index as is, without a sync pass")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root *rootOptions, folder string, queries []string, opts searchOptions) error {
	switch opts.format {
	case formatHTML, formatText, formatJSON:
	default:
		return fserrors.New(fserrors.ErrCodeInvalidInput,
			fmt.Sprintf("unknown format %q", opts.format), nil).
			WithSuggestion("Use html, text or json")
	}

	groups, err := groupQueries(queries, opts.mode)
	if err != nil {
		return err
	}

	t, err := root.resolveTarget(folder)
	if err != nil {
		return err
	}

	// Status lines go to stderr when stdout carries machine-readable output.
	status := output.New(cmd.OutOrStdout())
	if opts.format != formatHTML {
		status = output.New(cmd.ErrOrStderr())
	}

	s, result, err := t.openAndSync(ctx, status, !opts.noSync)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()
	if result != nil && result.Changed() {
		status.Statusf("•", "Index updated: %d indexed, %d truncated, %d deleted",
			result.Indexed, result.Truncated, result.Deleted)
	}

	dispatcher := search.NewDispatcher(s.Index().Reader(), search.WithResultCap(t.cfg.Search.ResultCap))

	start := time.Now()
	for _, g := range groups {
		hits, err := dispatcher.Search(ctx, g.mode, g.Queries...)
		if err != nil {
			return err
		}
		g.Hits = hits

		if opts.format == formatHTML {
			path, err := report.WriteFile(opts.outDir, g.mode, hits)
			if err != nil {
				return err
			}
			g.Report = path
		}
	}
	slog.Info("search_complete",
		slog.String("folder", t.folder),
		slog.Int("queries", len(queries)),
		slog.Int("groups", len(groups)),
		slog.Duration("duration", time.Since(start)))

	return renderSearch(cmd.OutOrStdout(), groups, opts.format)
}

// groupQueries buckets queries by mode, keeping the order in which each mode
// first appears and the order of queries within it. A forced mode puts every
// query in one group.
func groupQueries(queries []string, forced string) ([]*searchGroup, error) {
	var forcedMode search.Mode
	if forced != "" {
		m, err := search.ParseMode(forced)
		if err != nil {
			return nil, fserrors.New(fserrors.ErrCodeInvalidInput, err.Error(), nil).
				WithSuggestion("Use terms, phrases or regex")
		}
		forcedMode = m
	}

	var groups []*searchGroup
	byMode := map[search.Mode]*searchGroup{}
	for _, q := range queries {
		if q == "" {
			return nil, fserrors.New(fserrors.ErrCodeQueryEmpty, "empty query", nil)
		}
		mode := forcedMode
		if forced == "" {
			mode = search.Classify(q)
		}
		g, ok := byMode[mode]
		if !ok {
			g = &searchGroup{mode: mode, Mode: mode.String()}
			byMode[mode] = g
			groups = append(groups, g)
		}
		g.Queries = append(g.Queries, q)
	}
	return groups, nil
}

func renderSearch(w io.Writer, groups []*searchGroup, format string) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(groups)

	case formatText:
		for _, g := range groups {
			for _, h := range g.Hits {
				if _, err := fmt.Fprintln(w, h.Path); err != nil {
					return err
				}
			}
		}
		return nil

	default:
		out := output.New(w)
		for _, g := range groups {
			out.Successf("%s: %s match(es) for %d quer%s", g.Mode, output.Count(len(g.Hits)), len(g.Queries), plural(len(g.Queries), "y", "ies"))
			out.Field("Report", g.Report)
		}
		return nil
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
