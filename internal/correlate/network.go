package correlate

import (
	"net/mail"
	"net/netip"
	"strings"
	"time"
)

// specialPrefixes are the non-global blocks netip has no predicate for.
var specialPrefixes = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("240.0.0.0/4"),
	netip.MustParsePrefix("255.255.255.255/32"),
	netip.MustParsePrefix("100::/64"),
	netip.MustParsePrefix("2001::/23"),
	netip.MustParsePrefix("2001:db8::/32"),
}

// IsPrivate reports whether ip is in a private, loopback, link-local,
// unspecified, documentation or reserved range. It is nil when ip does not
// parse.
func IsPrivate(ip *string) *bool {
	if ip == nil {
		return nil
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(*ip))
	if err != nil {
		return nil
	}
	addr = addr.Unmap()
	private := addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified()
	for _, p := range specialPrefixes {
		if private {
			break
		}
		private = p.Contains(addr)
	}
	return &private
}

var dateFormats = []string{
	`Mon, 02 Jan 2006 15:04 -0700`,
	`02 Jan 2006 15:04 -0700`,
	`Mon, 02 Jan 2006 15:04:05 -0700`,
	`02 Jan 2006 15:04:05 -0700`,

	`Mon, 02 Jan 2006 15:04:05 -0700 (MST)`,
	`Mon, 2 Jan 2006 15:04:05 -0700 (MST)`,
	`Mon, 2 Jan 2006 15:04:05 MST`,
	`Mon, 02 Jan 2006 15:04:05 MST`,
	`Mon Jan 2 15:04:05 2006`,
	time.RFC3339,
}

// ParseDate turns a Date header into an RFC 3339 timestamp, nil when no
// known layout matches.
func ParseDate(date *string) *string {
	if date == nil {
		return nil
	}
	v := strings.TrimSpace(*date)
	if v == "" {
		return nil
	}

	t, err := mail.ParseDate(v)
	if err != nil {
		parsed := false
		for _, layout := range dateFormats {
			if t, err = time.Parse(layout, v); err == nil {
				parsed = true
				break
			}
		}
		if !parsed {
			return nil
		}
	}

	s := t.Format(time.RFC3339)
	return &s
}
