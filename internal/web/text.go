package web

import (
	"html"
	"html/template"
	"regexp"
	"strings"
)

var (
	boldRe     = regexp.MustCompile(`\*\*(.+?)\*\*`)
	listItemRe = regexp.MustCompile(`^\s*(\d+)\s*\.\s*(.*)$`)
	headingRe  = regexp.MustCompile(`^#+\s*`)
)

// SummaryHTML converts the lightweight markup the ingestion pipeline
// emits in summaries into HTML: **bold** runs, numbered lists, and
// ## headings. Raw text is escaped before any markup is applied.
func SummaryHTML(raw string) template.HTML {
	if raw == "" {
		return ""
	}

	t := html.EscapeString(raw)
	t = boldRe.ReplaceAllString(t, "<strong>$1</strong>")
	t = strings.ReplaceAll(t, "**", "")

	lines := strings.Split(t, "\n")
	out := make([]string, 0, len(lines))
	inList := false

	for _, line := range lines {
		line = strings.TrimSuffix(line, "\r")
		line = strings.TrimSpace(line)

		if m := listItemRe.FindStringSubmatch(line); m != nil {
			if !inList {
				out = append(out, "<ol>")
				inList = true
			}
			out = append(out, "<li>"+m[2]+"</li>")
			continue
		}

		if inList {
			out = append(out, "</ol>")
			inList = false
		}

		switch {
		case line == "":
			out = append(out, "<p></p>")
		case strings.HasPrefix(line, "##"):
			out = append(out, "<h4>"+headingRe.ReplaceAllString(line, "")+"</h4>")
		default:
			out = append(out, "<p>"+line+"</p>")
		}
	}
	if inList {
		out = append(out, "</ol>")
	}

	return template.HTML(strings.Join(out, ""))
}
