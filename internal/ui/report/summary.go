package report

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"handbook/internal/engine/macro"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FBBF24")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B")).
			Italic(true)

	fileStyle = lipgloss.NewStyle().MarginLeft(2)
	siteStyle = lipgloss.NewStyle().MarginLeft(4)
)

// Totals summarizes one run.
type Totals struct {
	RunID     string
	Mode      string
	Check     bool
	Files     int
	Rewritten int
	Unchanged int
	Cached    int
	Failed    int
	Duration  time.Duration
}

// RenderSummary renders totals plus one block per file that holds macro
// calls. Paths are shown relative to root when possible.
func RenderSummary(t Totals, results []*macro.Result, root string) string {
	var b strings.Builder

	header := "handbook source expansion"
	if t.Check {
		header += " (check)"
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n")

	rewrittenLabel := "rewritten"
	if t.Check {
		rewrittenLabel = "would change"
	}
	counts := []string{
		successStyle.Render(fmt.Sprintf("%d %s", t.Rewritten, rewrittenLabel)),
		fmt.Sprintf("%d unchanged", t.Unchanged),
		fmt.Sprintf("%d cached", t.Cached),
	}
	if t.Failed > 0 {
		counts = append(counts, failStyle.Render(fmt.Sprintf("%d failed", t.Failed)))
	} else {
		counts = append(counts, "0 failed")
	}
	fmt.Fprintf(&b, "%d files: %s\n", t.Files, strings.Join(counts, ", "))

	for _, res := range sortedResults(results) {
		if len(res.Sites) == 0 {
			continue
		}
		b.WriteString(fileStyle.Render(displayPath(res.Path, root)))
		b.WriteString("\n")
		for _, site := range res.Sites {
			b.WriteString(siteStyle.Render(siteLine(site)))
			b.WriteString("\n")
		}
	}

	status := fmt.Sprintf("run %s finished in %s", shortID(t.RunID), t.Duration.Round(time.Millisecond))
	b.WriteString(statusStyle.Render(status))
	b.WriteString("\n")
	return b.String()
}

func siteLine(site macro.Site) string {
	pos := fmt.Sprintf("%d:%d", site.Location.Line, site.Location.Column)
	if !site.Rewritten {
		return fmt.Sprintf("%s %s %s", pos, skipStyle.Render("skipped"), site.Callee)
	}
	return fmt.Sprintf("%s %s %s %s -> %s", pos, successStyle.Render(site.Load.String()), site.Callee, site.Specifier, site.Filename)
}

func sortedResults(results []*macro.Result) []*macro.Result {
	out := make([]*macro.Result, 0, len(results))
	for _, res := range results {
		if res != nil {
			out = append(out, res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func displayPath(path, root string) string {
	if root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}
