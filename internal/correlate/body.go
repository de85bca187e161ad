package correlate

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var markupTagRe = regexp.MustCompile(`<[^>]+>`)

// LooksLikeHTML reports whether s contains anything shaped like a tag.
func LooksLikeHTML(s string) bool {
	return markupTagRe.MatchString(s)
}

// HTMLToText concatenates the text nodes of s, dropping every tag along with
// script and style contents.
func HTMLToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	hidden := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			if hidden == 0 {
				b.Write(z.Text())
			}
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			if a := atom.Lookup(name); a != atom.Script && a != atom.Style {
				continue
			}
			if tt == html.StartTagToken {
				hidden++
			} else if hidden > 0 {
				hidden--
			}
		}
	}
}

// ResolveBodyText picks the plain text body of the unified document:
// markup in the text body is stripped, a missing text body is derived from
// the html body, anything else is kept as is.
func ResolveBodyText(bodyText, bodyHTML *string) *string {
	switch {
	case bodyText != nil && *bodyText != "" && LooksLikeHTML(*bodyText):
		return optional(HTMLToText(*bodyText))
	case (bodyText == nil || *bodyText == "") && bodyHTML != nil && *bodyHTML != "":
		return optional(HTMLToText(*bodyHTML))
	default:
		return bodyText
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
