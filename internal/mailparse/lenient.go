package mailparse

import (
	"bytes"
	"strings"

	"smtp-forensics/internal/models"

	"github.com/jhillyerd/enmime"
)

// parseLenient salvages messages whose header block go-message rejects,
// e.g. stray lines without a colon in the middle of the headers.
func (p *Parser) parseLenient(data []byte) (*models.EmailRecord, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	root := env.Root
	if root == nil || len(root.Header) == 0 {
		return nil, errNoHeader
	}

	var leaves []Leaf
	flattenParts(root, 0, p.maxDepth, &leaves)

	rec := newRecord(lenientMediaType(root), ModeLenient)
	fillHeaders(rec, root.Header.Values)
	assemble(rec, leaves, root.FirstChild == nil)
	return rec, nil
}

// flattenParts walks the enmime tree the same way tree.walk does. enmime
// has already undone transfer and charset encoding.
func flattenParts(part *enmime.Part, depth, maxDepth int, leaves *[]Leaf) {
	if part.FirstChild == nil || depth >= maxDepth {
		*leaves = append(*leaves, Leaf{
			Index:       len(*leaves) + 1,
			MediaType:   lenientMediaType(part),
			Filename:    part.FileName,
			Disposition: strings.ToLower(part.Disposition),
			Payload:     part.Content,
		})
		return
	}
	for child := part.FirstChild; child != nil; child = child.NextSibling {
		flattenParts(child, depth+1, maxDepth, leaves)
	}
}

func lenientMediaType(part *enmime.Part) string {
	if part.Header.Get("Content-Type") == "" {
		return "text/plain"
	}
	if mt := strings.ToLower(part.ContentType); isMediaType(mt) {
		return mt
	}
	return ""
}
