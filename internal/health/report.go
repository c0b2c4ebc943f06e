package health

import (
	"fmt"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Markdown renders the report as a table plus an issue list.
func Markdown(r *Report) string {
	var b strings.Builder
	b.WriteString("# Sync Health\n\n")
	fmt.Fprintf(&b, "Generated %s. ", r.GeneratedAt.UTC().Format(time.RFC3339))
	if r.Healthy {
		b.WriteString("All worksheets are healthy.\n\n")
	} else {
		fmt.Fprintf(&b, "**%d of %d worksheets need attention.**\n\n", len(r.Issues()), len(r.Checks))
	}

	b.WriteString("| Worksheet | Status | Rows | Expected | Last success | Median | p95 |\n")
	b.WriteString("|---|---|---:|---:|---|---:|---:|\n")
	for _, c := range r.Checks {
		last := "never"
		if c.LastSuccess != nil {
			last = c.LastSuccess.UTC().Format("2006-01-02 15:04")
		}
		status := string(c.Status)
		if c.Durations.Slow {
			status += " (SLOW)"
		}
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %s | %s | %s |\n",
			c.Worksheet, status, c.Rows, c.Expected, last,
			millis(c.Durations.Median, c.Durations.Samples), millis(c.Durations.P95, c.Durations.Samples))
	}

	var issues []Check
	for _, c := range r.Checks {
		if len(c.Issues) > 0 {
			issues = append(issues, c)
		}
	}
	if len(issues) > 0 {
		b.WriteString("\n## Issues\n\n")
		for _, c := range issues {
			for _, msg := range c.Issues {
				fmt.Fprintf(&b, "- **%s**: %s\n", c.Worksheet, msg)
			}
		}
	}
	return b.String()
}

// HTML renders the markdown report as a standalone page. Raw HTML in issue
// text, such as a proxy error page, is dropped.
func HTML(r *Report) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Title: "Sync Health",
		Flags: html.CommonFlags | html.CompletePage | html.SkipHTML,
	})
	return markdown.ToHTML([]byte(Markdown(r)), p, renderer)
}

func millis(v float64, samples int) string {
	if samples == 0 {
		return "-"
	}
	return (time.Duration(v) * time.Millisecond).Round(100 * time.Millisecond).String()
}
