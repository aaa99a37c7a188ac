// Package htmlsanitize strips markup from free text supplied by callers
// (worker names, exit reasons, item names) before it is stored.
package htmlsanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// PlainText removes every tag, decodes entities back to characters and
// collapses runs of whitespace. The result is meant for storage and JSON,
// not for direct HTML output.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	cleaned := html.UnescapeString(strict.Sanitize(s))
	return strings.Join(strings.Fields(cleaned), " ")
}
