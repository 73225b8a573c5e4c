// Package notes works on the rich-text notes of interactions, which are stored as HTML
// markup produced by the editor.
package notes

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// DefaultPreviewLength is the number of characters shown in list previews.
const DefaultPreviewLength = 75

// PlainText returns the text content of the markup with runs of whitespace collapsed.
// Block elements and line breaks separate words.
func PlainText(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBreaking(string(name)) {
				b.WriteByte(' ')
			}
		}
	}
}

// IsBlank reports whether the markup has neither visible text nor media, like the
// "<p><br></p>" the editor leaves behind when all text was removed.
func IsBlank(markup string) bool {
	if PlainText(markup) != "" {
		return false
	}
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return true
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isMedia(string(name)) {
				return false
			}
		}
	}
}

// Preview returns the plain text cut to at most maxLength characters, with "..."
// appended when text was cut off.
func Preview(markup string, maxLength int) string {
	text := PlainText(markup)
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimRight(string(runes[:maxLength]), " ") + "..."
}

func isBreaking(tag string) bool {
	switch tag {
	case "br", "p", "div", "li", "ul", "ol", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "tr", "td":
		return true
	}
	return false
}

func isMedia(tag string) bool {
	switch tag {
	case "img", "iframe", "video", "audio", "picture", "embed", "object":
		return true
	}
	return false
}
