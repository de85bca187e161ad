package mailparse

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"smtp-forensics/internal/models"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"
)

var (
	// ErrEmptyMessage is returned for objects holding only whitespace
	ErrEmptyMessage = errors.New("empty message object")
	// ErrUnparseable is returned when neither parser finds a header block
	ErrUnparseable = errors.New("unparseable message object")
)

// Parse modes recorded on EmailRecord.ParseMode
const (
	ModeStrict  = "strict"
	ModeLenient = "lenient"
)

type Options struct {
	MaxPartDepth int
}

// Parser turns raw internet-message-format objects into EmailRecords.
// It holds no mutable state and is safe for concurrent use.
type Parser struct {
	maxDepth int
}

func NewParser(opts Options) *Parser {
	if opts.MaxPartDepth <= 0 {
		opts.MaxPartDepth = DefaultMaxPartDepth
	}
	return &Parser{maxDepth: opts.MaxPartDepth}
}

// ParseBytes parses data with default options
func ParseBytes(data []byte) (*models.EmailRecord, error) {
	return NewParser(Options{}).Parse(data)
}

// Parse builds one EmailRecord. Header and part level problems degrade the
// affected field; an error means the object is not a message at all.
func (p *Parser) Parse(data []byte) (*models.EmailRecord, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyMessage
	}

	h, body, err := readEntity(data)
	if err != nil {
		rec, lerr := p.parseLenient(data)
		if lerr != nil {
			return nil, fmt.Errorf("%w: %v (lenient: %v)", ErrUnparseable, err, lerr)
		}
		rec.ContentHash = ContentHash(rec)
		return rec, nil
	}

	rec := p.parseStrict(h, body)
	rec.ContentHash = ContentHash(rec)
	return rec, nil
}

func (p *Parser) parseStrict(h textproto.Header, body io.Reader) *models.EmailRecord {
	t := &tree{maxDepth: p.maxDepth}
	t.walk(h, body, 0)

	mediaType, _ := contentType(message.Header{Header: h})
	rec := newRecord(mediaType, ModeStrict)
	fillHeaders(rec, h.Values)
	assemble(rec, t.leaves, t.rootLeaf)
	return rec
}

func newRecord(mediaType, mode string) *models.EmailRecord {
	return &models.EmailRecord{
		From:        []string{},
		To:          []string{},
		Cc:          []string{},
		Bcc:         []string{},
		ContentType: mediaType,
		Attachments: []models.AttachmentRecord{},
		ParseMode:   mode,
	}
}

func fillHeaders(rec *models.EmailRecord, values func(key string) []string) {
	rec.MessageID = firstValue(values("Message-ID"))
	rec.Date = firstValue(values("Date"))
	rec.Subject = decodedValue(values("Subject"))
	rec.From = addressList(values("From"))
	rec.To = addressList(values("To"))
	rec.Cc = addressList(values("Cc"))
	rec.Bcc = addressList(values("Bcc"))
}

// assemble routes every leaf to exactly one of body text, body html or
// attachments. A single-part message is all body text.
func assemble(rec *models.EmailRecord, leaves []Leaf, singlePart bool) {
	if singlePart && len(leaves) == 1 {
		rec.BodyText = nonEmpty(bodyContribution(leaves[0]))
		return
	}

	var text, html strings.Builder
	for _, leaf := range leaves {
		c := Classify(leaf)
		switch c.Kind {
		case KindBodyText:
			text.WriteString(bodyContribution(leaf))
		case KindBodyHTML:
			html.WriteString(bodyContribution(leaf))
		default:
			rec.Attachments = append(rec.Attachments, newAttachment(leaf, c.Filename))
		}
	}
	rec.BodyText = nonEmpty(text.String())
	rec.BodyHTML = nonEmpty(html.String())
}

func bodyContribution(l Leaf) string {
	return MaybeDoubleBase64(DecodeCharset(l.Charset, l.Payload))
}

func nonEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
