// SPDX-License-Identifier: GPL-3.0-or-later

// Package htmltext renders mail bodies as preformatted plain text for issue descriptions.
//
// The conversion is a chain of regular expressions, not an HTML parser. Malformed or nested
// markup is handled on a best-effort basis and may produce imperfect text.
package htmltext

import (
	"html"
	"regexp"
	"strings"
)

const (
	fence = "```"

	// Inside a tag, quoted attribute values may contain '>'.
	tagBody = `(?:"[^"]*"|'[^']*'|[^'">])*`

	// ASCII whitespace and NUL; U+00A0 from &nbsp; is content and stays.
	trimmed = " \t\n\r\x00\x0b"
)

var (
	styleElement  = regexp.MustCompile(`(?is)<style(?:[\s/]` + tagBody + `)?>.*?</style\s*>`)
	scriptElement = regexp.MustCompile(`(?is)<script(?:[\s/]` + tagBody + `)?>.*?</script\s*>`)
	headElement   = regexp.MustCompile(`(?is)<head(?:[\s/]` + tagBody + `)?>.*?</head\s*>`)

	tableCell = regexp.MustCompile(`(?i)<t[dh][ >]`)

	// Only one of the two href groups matches, the other expands to nothing.
	anchor = regexp.MustCompile(`(?is)<a\s` + tagBody + `href=(?:"([^"]+)"|'([^']+)')` + tagBody + `>(.*?)</a>`)

	lineBreaks = regexp.MustCompile(`[\r\n]+`)

	blockBoundary = regexp.MustCompile(`(?i)<(/?p|/?h\d|li|br|/tr)[ >/]`)

	comment = regexp.MustCompile(`(?s)<!--.*?-->`)
	tag     = regexp.MustCompile(`<[a-zA-Z/!?]` + tagBody + `(?:>|$)`)

	horizontalSpace = regexp.MustCompile(`[ \t]+`)
)

// Convert turns an HTML document into fenced plain text. Link targets are kept inline as
// "label <url>" and paragraphs, headings, list items, line breaks and table rows start new lines.
func Convert(htmlText string) string {
	text := htmlText
	for _, element := range []*regexp.Regexp{styleElement, scriptElement, headElement} {
		text = element.ReplaceAllString(text, "")
	}

	text = tableCell.ReplaceAllString(text, " $0")
	text = anchor.ReplaceAllString(text, "${3} &lt;${1}${2}&gt;")
	text = lineBreaks.ReplaceAllString(text, " ")
	text = blockBoundary.ReplaceAllString(text, "\n$0")

	text = comment.ReplaceAllString(text, "")
	text = tag.ReplaceAllString(text, "")
	text = html.UnescapeString(text)

	text = horizontalSpace.ReplaceAllString(text, " ")

	return Fence(text)
}

// Fence trims text, normalizes CRLF line endings and wraps it in a code fence so trackers
// render it verbatim.
func Fence(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return fence + "\n" + strings.Trim(text, trimmed) + "\n" + fence
}
