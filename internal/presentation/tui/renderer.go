package tui

import (
	"fmt"
	"strings"

	"github.com/aretw0/relay/pkg/routing"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(), // Detect light/dark background
	)
	if err != nil {
		return func(markdown string) (string, error) { return markdown, nil }
	}
	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RoutesMarkdown renders the route table as a Markdown document, one table
// per route kind in resolution order.
func RoutesMarkdown(routes []routing.RouteInfo, warnings []routing.Warning) string {
	var sb strings.Builder
	sb.WriteString("# Routes\n")

	kinds := []struct {
		kind  routing.RouteKind
		title string
	}{
		{routing.KindConversation, "Conversations"},
		{routing.KindCommand, "Commands"},
		{routing.KindCallback, "Callbacks"},
		{routing.KindText, "Text triggers"},
	}
	for _, k := range kinds {
		var rows []routing.RouteInfo
		for _, r := range routes {
			if r.Kind == k.kind {
				rows = append(rows, r)
			}
		}
		if len(rows) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n## %s\n\n| name | match | flags |\n|---|---|---|\n", k.title)
		for _, r := range rows {
			fmt.Fprintf(&sb, "| %s | %s | %s |\n", r.Name, escapeCell(strings.Join(r.Match, ", ")), r.Flags)
		}
	}

	if len(warnings) > 0 {
		sb.WriteString("\n## Warnings\n\n")
		for _, w := range warnings {
			fmt.Fprintf(&sb, "- %s\n", escapeCell(w.String()))
		}
	}
	return sb.String()
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
