package mailparse

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/emersion/go-message/charset"
)

// transferRule decodes one Content-Transfer-Encoding. Rules are tried in
// order and the first matching one wins; unknown encodings pass through.
type transferRule struct {
	name   string
	match  func(encoding string) bool
	decode func(raw []byte) []byte
}

var transferRules = []transferRule{
	{name: "base64", match: equals("base64"), decode: decodeBase64},
	{name: "quoted-printable", match: equals("quoted-printable"), decode: decodeQuotedPrintable},
	{name: "identity", match: func(string) bool { return true }, decode: func(raw []byte) []byte { return raw }},
}

func equals(name string) func(string) bool {
	return func(encoding string) bool { return encoding == name }
}

// DecodeTransfer undoes the transfer encoding of a part body. It never fails:
// a payload that cannot be decoded is returned as is.
func DecodeTransfer(encoding string, raw []byte) []byte {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	for _, rule := range transferRules {
		if rule.match(encoding) {
			return rule.decode(raw)
		}
	}
	return raw
}

func decodeBase64(raw []byte) []byte {
	compact := stripWhitespace(string(raw))
	if out, err := base64.StdEncoding.DecodeString(compact); err == nil {
		return out
	}
	if out, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(compact, "=")); err == nil {
		return out
	}
	return raw
}

func decodeQuotedPrintable(raw []byte) []byte {
	out, err := io.ReadAll(quotedprintable.NewReader(bytes.NewReader(raw)))
	if err != nil && len(out) == 0 {
		return raw
	}
	return out
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// DecodeCharset converts payload from the declared charset to UTF-8. Unknown
// charsets and conversion errors fall back to UTF-8 with invalid bytes replaced.
func DecodeCharset(name string, payload []byte) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return lossyUTF8(payload)
	}

	r, err := charset.Reader(name, bytes.NewReader(payload))
	if err != nil {
		return lossyUTF8(payload)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return lossyUTF8(payload)
	}
	return lossyUTF8(out)
}

func lossyUTF8(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

// MaybeDoubleBase64 decodes a body a second time when it looks like base64
// text. Some capture exports encode bodies twice. A short alphanumeric body
// whose length is a multiple of four is decoded as well; that false positive
// is accepted.
func MaybeDoubleBase64(s string) string {
	candidate := strings.NewReplacer("\r", "", "\n", "").Replace(strings.TrimSpace(s))
	if candidate == "" || len(candidate)%4 != 0 {
		return s
	}
	for i := 0; i < len(candidate); i++ {
		if !isBase64Byte(candidate[i]) {
			return s
		}
	}

	decoded, err := base64.StdEncoding.DecodeString(candidate)
	if err != nil {
		return s
	}
	return strings.ToValidUTF8(string(decoded), "")
}

func isBase64Byte(c byte) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '+', c == '/', c == '=':
		return true
	}
	return false
}
