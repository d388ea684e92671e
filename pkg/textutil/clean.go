package textutil

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// passes bounds how many layers of entity-encoded markup are peeled.
const passes = 4

// Clean strips markup from free text supplied by customers and trims it.
// Entities are decoded only while the decoded text survives sanitizing
// unchanged, so encoded tags never come back as markup.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	for range passes {
		sanitized := strict.Sanitize(s)
		decoded := html.UnescapeString(sanitized)
		if decoded == s {
			return strings.TrimSpace(decoded)
		}
		s = decoded
	}
	return strings.TrimSpace(strict.Sanitize(s))
}
