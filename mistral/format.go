package mistral

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

// joinPages concatenates per-page markdown with a blank line between pages.
func joinPages(pages []string) string {
	return strings.Join(pages, "\n\n")
}

// Markdown stripping patterns for the plain-text output format.
var (
	imageLinkPattern  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	hyperlinkPattern  = regexp.MustCompile(`\[([^\]]*)\]\(([^)]*)\)`)
	punctuationMarks  = regexp.MustCompile("[`*_>#]")
	listMarkerPattern = regexp.MustCompile(`(?m)^[ \t]*-[ \t]+`)
	blankRunPattern   = regexp.MustCompile(`\n{3,}`)
)

// StripMarkdown converts markdown to best-effort plain text: image links
// are dropped, hyperlinks keep only their label text, and markdown
// punctuation is removed.
func StripMarkdown(markdown string) string {
	text := imageLinkPattern.ReplaceAllString(markdown, "")
	text = hyperlinkPattern.ReplaceAllString(text, "$1")
	text = punctuationMarks.ReplaceAllString(text, "")
	text = listMarkerPattern.ReplaceAllString(text, "")
	text = blankRunPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// FormatJSONPayload pretty-prints the raw upstream response body with
// two-space indentation.
func FormatJSONPayload(raw []byte) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return "", err
	}
	return buf.String(), nil
}
