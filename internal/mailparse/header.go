package mailparse

import (
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

var emailAddressRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// ExtractEmailAddress pulls the first address out of a header or SMTP
// parameter which may contain a display name or angle brackets.
func ExtractEmailAddress(s string) string {
	return emailAddressRe.FindString(s)
}

// DecodeHeader decodes MIME-encoded headers (e.g., "=?UTF-8?B?...?=") to plain text
func DecodeHeader(encoded string) (string, error) {
	decoder := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := decoder.DecodeHeader(encoded)
	if err != nil {
		return "", err
	}
	return decoded, nil
}

// decodeOrRaw keeps the raw value when decoding fails
func decodeOrRaw(raw string) string {
	decoded, err := DecodeHeader(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// firstValue returns the first non-empty value of a header, or nil
func firstValue(values []string) *string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return &v
		}
	}
	return nil
}

// decodedValue is firstValue with encoded words decoded
func decodedValue(values []string) *string {
	raw := firstValue(values)
	if raw == nil {
		return nil
	}
	v := strings.TrimSpace(decodeOrRaw(*raw))
	return &v
}

// addressList parses every occurrence of an address header into bare
// addresses. A field that is not a valid address list falls back to a comma
// split of its decoded value.
func addressList(values []string) []string {
	addrs := []string{}
	for _, raw := range values {
		if strings.TrimSpace(raw) == "" {
			continue
		}

		if list, err := mail.ParseAddressList(raw); err == nil {
			for _, a := range list {
				if a.Address != "" {
					addrs = append(addrs, a.Address)
				}
			}
			continue
		}

		for _, piece := range strings.Split(decodeOrRaw(raw), ",") {
			if addr := ExtractEmailAddress(piece); addr != "" {
				addrs = append(addrs, addr)
				continue
			}
			if piece = strings.TrimSpace(piece); piece != "" {
				addrs = append(addrs, piece)
			}
		}
	}
	return addrs
}
