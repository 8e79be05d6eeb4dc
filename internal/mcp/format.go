package mcp

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
)

// DefaultSnippetRunes is how much of a document a search result previews.
const DefaultSnippetRunes = 200

// Snippet returns the first n runes of contents with whitespace runs
// collapsed, marked with an ellipsis when cut.
func Snippet(contents string, n int) string {
	flat := strings.Join(strings.Fields(contents), " ")
	if utf8.RuneCountInString(flat) <= n {
		return flat
	}
	runes := []rune(flat)
	return strings.TrimRight(string(runes[:n]), " ") + "…"
}

// FormatSearchResults renders search output as markdown.
func FormatSearchResults(query string, out *SearchOutput) string {
	if out == nil || len(out.Results) == 0 {
		return fmt.Sprintf("No results found for \"%s\"", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search Results for \"%s\"\n\n", query)
	fmt.Fprintf(&sb, "Mode: `%s`. Found %d file", out.Mode, out.Total)
	if out.Total != 1 {
		sb.WriteString("s")
	}
	if len(out.Results) < out.Total {
		fmt.Fprintf(&sb, ", showing %d", len(out.Results))
	}
	sb.WriteString("\n\n")

	for i, r := range out.Results {
		fmt.Fprintf(&sb, "%d. `%s`\n", i+1, r.Path)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   > %s\n", r.Snippet)
		}
	}
	return sb.String()
}

// FormatStatus renders index status as markdown.
func FormatStatus(st *IndexStatusOutput) string {
	var sb strings.Builder
	sb.WriteString("## Index Status\n\n")
	fmt.Fprintf(&sb, "- **Folder:** `%s`\n", st.Folder)
	fmt.Fprintf(&sb, "- **Index:** `%s`\n", st.Location)
	fmt.Fprintf(&sb, "- **Documents:** %s\n", humanize.Comma(int64(st.Documents)))
	if st.LastSynced == "" {
		sb.WriteString("- **Last synced:** never\n")
	} else {
		fmt.Fprintf(&sb, "- **Last synced:** %s\n", st.LastSynced)
	}
	fmt.Fprintf(&sb, "- **Generation:** %d\n", st.Generation)
	if st.AutoSync {
		sb.WriteString("- **Auto sync:** on\n")
	} else {
		sb.WriteString("- **Auto sync:** off\n")
	}
	return sb.String()
}
