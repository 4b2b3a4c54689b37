package parser

import (
	"regexp"
	"strings"
)

var (
	disallowedChars = regexp.MustCompile(`[^a-zA-Z0-9\s-]`)
	hyphenRuns      = regexp.MustCompile(`-+`)
)

// Canonicalize turns a typed game title into the slug used in listing URLs.
// A title with no alphanumerics yields "".
func Canonicalize(title string) string {
	collapsed := strings.Join(strings.Fields(title), " ")
	stripped := disallowedChars.ReplaceAllString(collapsed, "")
	slug := strings.Join(strings.Fields(stripped), "-")
	slug = hyphenRuns.ReplaceAllString(slug, "-")
	return strings.ToLower(slug)
}

// CandidateSlugs returns the slugs to try, in order. Sequels are commonly
// listed with a roman numeral or a spelled out number, so a slug holding a
// "2" gets two extra spellings.
func CandidateSlugs(slug string) []string {
	if !strings.Contains(slug, "2") {
		return []string{slug}
	}
	return []string{
		slug,
		strings.ReplaceAll(slug, "2", "ii"),
		strings.ReplaceAll(slug, "2", "two"),
	}
}

// CandidateURLs joins every candidate slug onto baseURL.
func CandidateURLs(baseURL, slug string) []string {
	slugs := CandidateSlugs(slug)
	urls := make([]string, 0, len(slugs))
	for _, s := range slugs {
		urls = append(urls, baseURL+s+"/")
	}
	return urls
}
