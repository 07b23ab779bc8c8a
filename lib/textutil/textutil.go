package textutil

import (
	"strings"
)

// CollapseWhitespace trims s and replaces every run of whitespace inside it
// with a single space.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
