package insider

import (
	"regexp"
	"strings"
)

// normalizeXMLText cleans up character-level noise that appears in SEC
// XML documents before they reach the parser: stray HTML entities in
// CDATA, non-breaking spaces, zero-width characters, and CRLF line
// endings.
func normalizeXMLText(data []byte) []byte {
	text := string(data)

	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	text = strings.ReplaceAll(text, "\u200b", "")
	text = strings.ReplaceAll(text, "\ufeff", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	return []byte(text)
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanExtractedText collapses whitespace in text pulled out of a parsed
// document, such as footnote bodies that arrive with layout newlines.
func cleanExtractedText(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}
