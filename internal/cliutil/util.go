package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/mattn/go-isatty"

	dkerrors "github.com/nonibytes/dbkeeper/dbkeeper/errors"
	"github.com/nonibytes/dbkeeper/dbkeeper/storage"
)

type OutputFormat string

const (
	FormatPretty OutputFormat = "pretty"
	FormatJSON   OutputFormat = "json"
)

// ParseOutputFormat maps "auto" (or anything unknown) to pretty on a
// terminal and json otherwise.
func ParseOutputFormat(s string, out io.Writer) OutputFormat {
	switch OutputFormat(s) {
	case FormatPretty, FormatJSON:
		return OutputFormat(s)
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return FormatPretty
	}
	return FormatJSON
}

func PrintJSON(w io.Writer, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(w, string(b))
}

// NewLogger returns a text logger writing to w.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, dkerrors.Wrap(dkerrors.ErrConfig, fmt.Sprintf("invalid log level %q", level), err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// PrintGroups renders metadata groups as indented name/value lines.
func PrintGroups(w io.Writer, groups []storage.TableDataGroup) {
	groups = slices.Clone(groups)
	slices.SortStableFunc(groups, func(a, b storage.TableDataGroup) int { return a.Order - b.Order })
	for i, g := range groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintf(w, "[%s]\n", g.Name)
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, f := range g.Fields {
			fmt.Fprintf(tw, "  %s\t%s\n", f.Name, f.Value)
		}
		_ = tw.Flush()
	}
}

// PrintTables renders definition tables; title cells become the header.
func PrintTables(w io.Writer, tables []storage.TableDefinition) {
	for i, t := range tables {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, t.Title)
		if len(t.Rows) == 0 {
			fmt.Fprintln(w, "  (empty)")
			continue
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, row := range t.Rows {
			cells := make([]string, 0, len(row.Fields))
			for _, f := range row.Fields {
				if f.Title {
					cells = append(cells, strings.ToUpper(f.Data))
				} else {
					cells = append(cells, f.Data)
				}
			}
			fmt.Fprintf(tw, "  %s\n", strings.Join(cells, "\t"))
		}
		_ = tw.Flush()
	}
}

// PrintDocuments prints one line per document: its identifier chain, then
// the body when present.
func PrintDocuments(w io.Writer, docs []storage.DocumentData) {
	for _, d := range docs {
		if d.Document == "" {
			fmt.Fprintf(w, "- %s\n", d.Chain())
			continue
		}
		fmt.Fprintf(w, "- %s %s\n", d.Chain(), d.Document)
	}
}

func PrintCollection(w io.Writer, data storage.CollectionData) {
	fmt.Fprintf(w, "Found %d of %d documents", len(data.Documents), data.Total)
	if data.Offset != nil {
		fmt.Fprintf(w, " (skip %d)", *data.Offset)
	}
	fmt.Fprintln(w)
	PrintDocuments(w, data.Documents)
}

func PrintList(w io.Writer, items []string) {
	if len(items) == 0 {
		fmt.Fprintln(w, "(none)")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "- %s\n", it)
	}
}
