// Package cleaner normalizes raw text extracted from PDFs before it is
// chunked and embedded. All functions are pure: they never fail and map
// empty or garbage input to an empty string.
package cleaner

import (
	"html"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	urlRe          = regexp.MustCompile(`(?i)https?://\S+`)
	emailRe        = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	specialCharRe  = regexp.MustCompile(`[^\p{L}\p{N}_\s.,!?-]`)
	multiDotRe     = regexp.MustCompile(`\.{2,}`)
	pageNumberRe   = regexp.MustCompile(`(?i)\b(?:page|pg\.?)\s*\d+\b`)
	headerFooterRe = regexp.MustCompile(`(?im)^.*(?:header|footer).*$`)
)

// Clean normalizes a block of text: Unicode NFKC normalization, HTML entity
// decoding, URL and e-mail removal, special-character stripping, whitespace
// collapse, and dot-run reduction.
func Clean(text string) string {
	text = norm.NFKC.String(text)
	text = html.UnescapeString(text)
	text = urlRe.ReplaceAllString(text, "")
	text = emailRe.ReplaceAllString(text, "")
	text = specialCharRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = multiDotRe.ReplaceAllString(text, ".")
	return strings.TrimSpace(text)
}

// CleanPDF normalizes text extracted from a PDF page: decodes HTML
// entities, drops page-number artifacts and header/footer marker lines,
// then applies Clean.
func CleanPDF(text string) string {
	text = html.UnescapeString(text)
	text = pageNumberRe.ReplaceAllString(text, "")
	text = headerFooterRe.ReplaceAllString(text, "")
	return Clean(text)
}

// Normalize lowercases and NFKC-normalizes text and collapses whitespace.
// Used for query strings where case and spacing must not matter.
func Normalize(text string) string {
	text = strings.ToLower(text)
	text = norm.NFKC.String(text)
	return strings.Join(strings.Fields(text), " ")
}
