// Package url parses and resolves page addresses and fetches their bodies.
package url

import (
	"errors"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"
)

var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// URL is an absolute http, https or file address. Default ports are filled
// in so origins compare by value.
type URL struct {
	scheme string
	host   string
	path   string
	port   int
}

func NewURL(raw string) (*URL, error) {
	parsed, err := neturl.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse URL %q: %w", raw, err)
	}
	return fromNetURL(parsed)
}

func fromNetURL(parsed *neturl.URL) (*URL, error) {
	u := &URL{scheme: strings.ToLower(parsed.Scheme)}
	switch u.scheme {
	case "http":
		u.port = 80
	case "https":
		u.port = 443
	case "file":
		u.path = parsed.Path
		if u.path == "" {
			u.path = "/"
		}
		return u, nil
	case "":
		return nil, fmt.Errorf("no URL scheme: %s", parsed)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.scheme)
	}

	u.host = strings.ToLower(parsed.Hostname())
	if u.host == "" {
		return nil, fmt.Errorf("no host in URL: %s", parsed)
	}
	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid port in URL: %s", p)
		}
		u.port = port
	}
	u.path = parsed.EscapedPath()
	if u.path == "" {
		u.path = "/"
	}
	if parsed.RawQuery != "" {
		u.path += "?" + parsed.RawQuery
	}
	return u, nil
}

func (u *URL) Scheme() string { return u.scheme }
func (u *URL) Host() string   { return u.host }
func (u *URL) Path() string   { return u.path }
func (u *URL) Port() int      { return u.port }

func (u *URL) String() string {
	if u.scheme == "file" {
		return "file://" + u.path
	}
	portPart := ":" + strconv.Itoa(u.port)
	if (u.scheme == "https" && u.port == 443) || (u.scheme == "http" && u.port == 80) {
		portPart = ""
	}
	return u.scheme + "://" + u.host + portPart + u.path
}

// Resolve turns a link found on this page into an absolute URL.
func (u *URL) Resolve(link string) (*URL, error) {
	ref, err := neturl.Parse(strings.TrimSpace(link))
	if err != nil {
		return nil, fmt.Errorf("parse link %q: %w", link, err)
	}
	base, err := neturl.Parse(u.String())
	if err != nil {
		return nil, err
	}
	resolved := base.ResolveReference(ref)
	resolved.Fragment = ""
	return fromNetURL(resolved)
}

// Origin is scheme, host and port. Every file URL shares one origin.
func (u *URL) Origin() string {
	if u.scheme == "file" {
		return "file://"
	}
	return u.scheme + "://" + u.host + ":" + strconv.Itoa(u.port)
}

func (u *URL) SameOrigin(other *URL) bool {
	return other != nil && u.Origin() == other.Origin()
}
