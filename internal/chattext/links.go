// Package chattext prepares reply text for speech and formats chat strings.
package chattext

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// URLs also end at Unicode space separators and the BOM.
	urlPattern        = regexp.MustCompile(`(?i)https?://[^\s\p{Z}\x{FEFF}]+`)
	whitespacePattern = regexp.MustCompile(`[\s\p{Z}\x{FEFF}]+`)
)

const linkPhrase = ", e segue abaixo o link"

// Links is reply text with its URLs replaced by spoken placeholders.
type Links struct {
	// CleanText is the text to synthesize.
	CleanText string

	// URLs are the extracted links in encounter order.
	URLs []string

	original string
}

// HasLinks reports whether any URL was extracted.
func (l Links) HasLinks() bool {
	return len(l.URLs) > 0
}

// OnlyLinks reports whether the original text had nothing worth speaking
// besides its links.
func (l Links) OnlyLinks() bool {
	if !l.HasLinks() {
		return false
	}
	rest := urlPattern.ReplaceAllString(l.original, "")
	return strings.IndexFunc(rest, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) < 0
}

// ExtractLinks pulls URLs out of text so TTS does not dictate them character
// by character. A single URL becomes ", e segue abaixo o link"; several become
// ", e segue abaixo o link 1", "... link 2" and so on. When URLs were found,
// whitespace runs collapse to one space and the result is trimmed.
func ExtractLinks(text string) Links {
	urls := urlPattern.FindAllString(text, -1)
	if len(urls) == 0 {
		return Links{CleanText: text, original: text}
	}

	var clean string
	if len(urls) == 1 {
		clean = urlPattern.ReplaceAllLiteralString(text, linkPhrase)
	} else {
		counter := 0
		clean = urlPattern.ReplaceAllStringFunc(text, func(string) string {
			counter++
			return fmt.Sprintf("%s %d", linkPhrase, counter)
		})
	}

	clean = strings.TrimSpace(whitespacePattern.ReplaceAllString(clean, " "))

	return Links{CleanText: clean, URLs: urls, original: text}
}

// FormatLinkMessage renders the text message that follows an audio reply and
// carries the links that were removed from the spoken text.
func FormatLinkMessage(urls []string) string {
	switch len(urls) {
	case 0:
		return ""
	case 1:
		return "🔗 Link: " + urls[0]
	}

	var sb strings.Builder
	sb.WriteString("🔗 Links:")
	for i, u := range urls {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, u)
	}
	return sb.String()
}
