package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ugc   = bluemonday.UGCPolicy()
	plain = bluemonday.StrictPolicy()
)

// Sanitize cleans HTML content to prevent XSS attacks while keeping
// ordinary formatting markup.
func Sanitize(input string) string {
	return ugc.Sanitize(input)
}

// StripTags removes all markup. Used for titles and excerpts, which are
// rendered as plain text.
func StripTags(input string) string {
	return html.UnescapeString(plain.Sanitize(input))
}
