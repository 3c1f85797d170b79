package usecases

import (
	"html"
	"regexp"
	"strings"
)

var (
	citationRe  = regexp.MustCompile(`\[(?:[1-9]|1[0-9]|20)\]`)
	bracketRe   = regexp.MustCompile(`[\[\]()]`)
	boldRe      = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
	italicRe    = regexp.MustCompile(`\*([^*\n]+)\*`)
	codeRe      = regexp.MustCompile("`([^`\n]+)`")
	strayMarkRe = regexp.MustCompile("[*`]")
	headingRe   = regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*(.*\S)[ \t]*$`)
	blankRunRe  = regexp.MustCompile(`\n\s*\n\s*\n+`)
	hspaceRe    = regexp.MustCompile(`[ \t]+`)

	ownTagRe    = regexp.MustCompile(`</?(?:b|i|code)>`)
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	htmlDecoder = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")
)

// NormalizeText rewrites model output into the transport's rich-text dialect.
// The output contains no bracket, star or backtick characters, no line
// starting with a heading marker followed by text and no unescaped markup
// characters outside its own tags, so applying it twice gives the same result
// as applying it once.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = escapeHTML(s)
	s = citationRe.ReplaceAllString(s, "")
	s = bracketRe.ReplaceAllString(s, "")

	s = boldRe.ReplaceAllString(s, "<b>$1</b>")
	s = italicRe.ReplaceAllString(s, "<i>$1</i>")
	s = codeRe.ReplaceAllString(s, "<code>$1</code>")
	s = strayMarkRe.ReplaceAllString(s, "")

	s = headingRe.ReplaceAllString(s, "<b>$1</b>")

	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = hspaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// escapeHTML escapes &, < and > everywhere except in b, i and code tags.
// Text that is already escaped stays as it is.
func escapeHTML(s string) string {
	var b strings.Builder
	last := 0
	for _, loc := range ownTagRe.FindAllStringIndex(s, -1) {
		b.WriteString(htmlEscaper.Replace(htmlDecoder.Replace(s[last:loc[0]])))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(htmlEscaper.Replace(htmlDecoder.Replace(s[last:])))
	return b.String()
}

var tagRe = regexp.MustCompile(`</?(?:b|i|code|a)(?:\s[^>]*)?>`)

// StripTags drops the rich-text markup and decodes entities, for transports
// or retries that need plain text.
func StripTags(s string) string {
	return html.UnescapeString(tagRe.ReplaceAllString(s, ""))
}
