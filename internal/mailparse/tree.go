package mailparse

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"smtp-forensics/internal/logging"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

// DefaultMaxPartDepth bounds multipart and message/rfc822 nesting
const DefaultMaxPartDepth = 32

// tree flattens a part tree into leaves in depth-first order
type tree struct {
	maxDepth int
	leaves   []Leaf
	// rootLeaf is set when the top-level entity itself is the only leaf
	rootLeaf bool
}

func (t *tree) walk(h textproto.Header, body io.Reader, depth int) {
	header := message.Header{Header: h}
	mediaType, params := contentType(header)

	if depth < t.maxDepth {
		if strings.HasPrefix(mediaType, "multipart/") && params["boundary"] != "" {
			t.walkMultipart(body, params["boundary"], depth)
			return
		}
		if mediaType == "message/rfc822" {
			payload := readPayload(header, body)
			inner, innerBody, err := readEntity(payload)
			if err == nil {
				t.walk(inner, innerBody, depth+1)
				return
			}
			logging.Log.Debugf("Embedded message unreadable, kept as a leaf: %v", err)
			t.addLeaf(header, mediaType, params, payload, depth)
			return
		}
	}

	t.addLeaf(header, mediaType, params, readPayload(header, body), depth)
}

func (t *tree) walkMultipart(body io.Reader, boundary string, depth int) {
	mr := textproto.NewMultipartReader(body, boundary)
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return
		}
		if err != nil {
			// keep the parts read so far
			logging.Log.Debugf("Multipart truncated: %v", err)
			return
		}
		t.walk(p.Header, p, depth+1)
	}
}

func (t *tree) addLeaf(header message.Header, mediaType string, params map[string]string, payload []byte, depth int) {
	disposition, dispParams, err := header.ContentDisposition()
	if err != nil {
		disposition = beforeParams(header.Get("Content-Disposition"))
	}

	filename := dispParams["filename"]
	if filename == "" {
		filename = params["name"]
	}
	if filename != "" {
		filename = decodeOrRaw(filename)
	}

	t.leaves = append(t.leaves, Leaf{
		Index:       len(t.leaves) + 1,
		MediaType:   mediaType,
		Filename:    filename,
		Disposition: strings.ToLower(disposition),
		Charset:     params["charset"],
		Payload:     payload,
	})
	if depth == 0 {
		t.rootLeaf = true
	}
}

// contentType returns the lowercased media type and its parameters. A
// missing header means text/plain; one without a type/subtype form gives "".
func contentType(h message.Header) (string, map[string]string) {
	mediaType, params, err := h.ContentType()
	if err == nil {
		if mt := strings.ToLower(mediaType); isMediaType(mt) {
			return mt, params
		}
		return "", map[string]string{}
	}

	// keep the type when only the parameters are broken
	if raw := strings.ToLower(beforeParams(h.Get("Content-Type"))); isMediaType(raw) {
		return raw, map[string]string{}
	}
	return "", map[string]string{}
}

// isMediaType reports whether mt has exactly one slash between two
// non-empty halves and no whitespace.
func isMediaType(mt string) bool {
	typ, sub, ok := strings.Cut(mt, "/")
	return ok && typ != "" && sub != "" && !strings.Contains(sub, "/") && !strings.ContainsAny(mt, " \t")
}

func beforeParams(v string) string {
	if i := strings.IndexByte(v, ';'); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(v)
}

// readPayload reads a part body and undoes its transfer encoding. Read
// errors keep whatever was read.
func readPayload(h message.Header, body io.Reader) []byte {
	raw, err := io.ReadAll(body)
	if err != nil {
		logging.Log.Debugf("Part body truncated: %v", err)
	}
	return DecodeTransfer(h.Get("Content-Transfer-Encoding"), raw)
}

var errNoHeader = errors.New("no header fields")

// readEntity splits raw message bytes into header and body
func readEntity(data []byte) (textproto.Header, io.Reader, error) {
	br := bufio.NewReader(bytes.NewReader(data))
	h, err := textproto.ReadHeader(br)
	if err != nil && !(errors.Is(err, io.EOF) && h.Len() > 0) {
		return h, nil, err
	}
	if h.Len() == 0 {
		return h, nil, errNoHeader
	}
	return h, br, nil
}
