package model

import (
	"regexp"
	"strings"
)

// DefaultSlug is used when a title contains no sluggable characters.
const DefaultSlug = "project"

var (
	slugStrip    = regexp.MustCompile(`[^a-z0-9_\s-]`)
	slugSeparate = regexp.MustCompile(`[\s_-]+`)
)

// Slugify derives the URL slug for a project title:
// lowercase, anything other than ASCII letters, digits, whitespace, '_' or
// '-' dropped, runs of whitespace/'_'/'-' collapsed to one '-', and leading
// or trailing '-' trimmed.
//
//	Slugify("My Demo!")        == "my-demo"
//	Slugify("  __Go  & Rust ") == "go-rust"
//
// The result may be empty; callers fall back to DefaultSlug.
func Slugify(title string) string {
	s := strings.ToLower(title)
	s = slugStrip.ReplaceAllString(s, "")
	s = slugSeparate.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
