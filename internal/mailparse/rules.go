package mailparse

import (
	"fmt"
	"mime"

	"github.com/gabriel-vasile/mimetype"
)

// Kind is the destination of a leaf part.
type Kind int

const (
	KindAttachment Kind = iota
	KindBodyText
	KindBodyHTML
)

func (k Kind) String() string {
	switch k {
	case KindBodyText:
		return "body_text"
	case KindBodyHTML:
		return "body_html"
	default:
		return "attachment"
	}
}

// Leaf is a MIME part without sub-parts, with its payload already transfer decoded.
type Leaf struct {
	// Index is the 1-based position of the leaf in depth-first order
	Index       int
	MediaType   string
	Filename    string
	Disposition string
	Charset     string
	Payload     []byte
}

// Classification is the outcome of the first matching rule.
type Classification struct {
	Kind     Kind
	Filename string
	Rule     string
}

// Rule classifies a leaf when Match returns true.
type Rule struct {
	Name  string
	Match func(Leaf) (Classification, bool)
}

// Rules are evaluated top to bottom; the last one always matches.
var Rules = []Rule{
	{Name: "named-file", Match: namedFile},
	{Name: "disposition", Match: dispositionAttachment},
	{Name: "non-text-type", Match: nonTextType},
	{Name: "text-plain", Match: mediaTypeIs("text/plain", KindBodyText)},
	{Name: "text-html", Match: mediaTypeIs("text/html", KindBodyHTML)},
	{Name: "fallback", Match: fallback},
}

// Classify returns the result of the first rule matching l.
func Classify(l Leaf) Classification {
	for _, rule := range Rules {
		if c, ok := rule.Match(l); ok {
			c.Rule = rule.Name
			return c
		}
	}
	c, _ := fallback(l)
	c.Rule = "fallback"
	return c
}

func namedFile(l Leaf) (Classification, bool) {
	if l.Filename == "" {
		return Classification{}, false
	}
	return Classification{Kind: KindAttachment, Filename: l.Filename}, true
}

func dispositionAttachment(l Leaf) (Classification, bool) {
	if l.Disposition != "attachment" && l.Disposition != "inline" {
		return Classification{}, false
	}
	return Classification{Kind: KindAttachment, Filename: SynthesizeFilename(l.Index, l.MediaType)}, true
}

// nonTextType leaves unparseable (empty) media types to the fallback rule
func nonTextType(l Leaf) (Classification, bool) {
	if l.MediaType == "" || l.MediaType == "text/plain" || l.MediaType == "text/html" {
		return Classification{}, false
	}
	return Classification{Kind: KindAttachment, Filename: SynthesizeFilename(l.Index, l.MediaType)}, true
}

func mediaTypeIs(mediaType string, kind Kind) func(Leaf) (Classification, bool) {
	return func(l Leaf) (Classification, bool) {
		return Classification{Kind: kind}, l.MediaType == mediaType
	}
}

func fallback(l Leaf) (Classification, bool) {
	return Classification{Kind: KindAttachment, Filename: SynthesizeFilename(l.Index, l.MediaType)}, true
}

// SynthesizeFilename names an attachment that declared none: part-<n><ext>.
func SynthesizeFilename(index int, mediaType string) string {
	return fmt.Sprintf("part-%d%s", index, GuessExtension(mediaType))
}

// GuessExtension maps a media type to a file extension, ".bin" when unknown.
func GuessExtension(mediaType string) string {
	if mediaType == "" {
		return ".bin"
	}
	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
