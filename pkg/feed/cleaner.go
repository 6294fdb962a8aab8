package feed

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	stripPolicy = bluemonday.StrictPolicy()
	multiSpace  = regexp.MustCompile(`\s+`)
	leadingDash = regexp.MustCompile(`^\s*-\s*`)
)

// CleanTitle normalizes a headline for display: drops HTML markup and
// entities, collapses whitespace, strips leading dashes and truncates to
// limit characters with a trailing ellipsis.
func CleanTitle(title string, limit int) string {
	if title == "" {
		return ""
	}

	title = stripPolicy.Sanitize(title)
	title = html.UnescapeString(title)
	title = multiSpace.ReplaceAllString(strings.TrimSpace(title), " ")
	title = leadingDash.ReplaceAllString(title, "")

	if limit > 3 {
		if runes := []rune(title); len(runes) > limit {
			title = string(runes[:limit-3]) + "..."
		}
	}

	return title
}
