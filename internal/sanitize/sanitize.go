// Package sanitize strips markup from user-supplied text before it is stored.
// Bookmark titles, descriptions and tag names are plain text; anything that
// looks like HTML is removed so a client rendering them with innerHTML cannot
// be tricked into running script.
package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// getPolicy returns the shared strict policy, initializing it on first call.
func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// PlainText removes every HTML element from input and trims surrounding
// whitespace. Entities produced by the sanitizer are decoded again so that
// "Tom & Jerry" round-trips unchanged instead of becoming "Tom &amp; Jerry".
func PlainText(input string) string {
	input = strings.TrimSpace(input)
	if input == "" {
		return ""
	}
	out := html.UnescapeString(getPolicy().Sanitize(input))
	// Decoding can surface markup that was entity-encoded in the input.
	if strings.ContainsRune(out, '<') {
		out = html.UnescapeString(getPolicy().Sanitize(out))
	}
	return strings.TrimSpace(out)
}
