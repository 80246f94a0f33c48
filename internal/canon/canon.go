package canon

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// DefaultHostPrefix is the subdomain prefix every canonical host carries.
const DefaultHostPrefix = "www."

var (
	// ErrParse is wrapped by every error returned from Canonicalize.
	// The URL it refers to should be dropped by the caller.
	ErrParse = errors.New("cannot canonicalize URL")

	// ErrInvalidDomain is returned by NewScope when the seed domain has
	// no canonical identity. It is the only fatal error of a crawl.
	ErrInvalidDomain = errors.New("invalid domain")
)

// URL is a canonical page identity. Values are only produced by a
// Canonicalizer, so two URLs are the same page iff they are equal.
type URL string

// String returns the canonical URL as a plain string.
func (u URL) String() string {
	return string(u)
}

// Host returns the canonical host (including a non-default port).
func (u URL) Host() string {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return ""
	}
	return parsed.Host
}

// Canonicalizer applies the canonicalization policy. The zero value is not
// usable; construct one with New.
type Canonicalizer struct {
	hostPrefix string
}

// Option configures a Canonicalizer.
type Option func(*Canonicalizer)

// WithHostPrefix overrides the canonical subdomain prefix. An empty prefix
// disables prefixing, so example.com and www.example.com stay distinct.
func WithHostPrefix(prefix string) Option {
	return func(c *Canonicalizer) {
		c.hostPrefix = strings.ToLower(prefix)
	}
}

// New creates a Canonicalizer using DefaultHostPrefix unless overridden.
func New(opts ...Option) *Canonicalizer {
	c := &Canonicalizer{hostPrefix: DefaultHostPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var defaultCanonicalizer = New()

// Canonicalize canonicalizes raw with the default policy.
// See Canonicalizer.Canonicalize.
func Canonicalize(raw string, base *url.URL) (URL, error) {
	return defaultCanonicalizer.Canonicalize(raw, base)
}

// Canonicalize resolves raw against base (when raw is not an absolute
// http(s) URL) and returns its canonical identity. base may be nil when raw
// is known to be absolute.
func (c *Canonicalizer) Canonicalize(raw string, base *url.URL) (URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty URL", ErrParse)
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrParse, raw, err)
	}
	if !hasHTTPScheme(trimmed) {
		if base == nil {
			return "", fmt.Errorf("%w: %q is relative and no base was given", ErrParse, raw)
		}
		u = base.ResolveReference(u)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: %q: unsupported scheme %q", ErrParse, raw, u.Scheme)
	}

	host, err := c.canonicalHost(scheme, u)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %w", ErrParse, raw, err)
	}

	// EscapedPath keeps the percent-encoding of the input, which keeps the
	// result stable when it is parsed again.
	return URL(scheme + "://" + host + canonicalPath(u.EscapedPath())), nil
}

// canonicalHost lowercases the host, converts it to its ASCII form, drops
// default ports and applies the prefix policy.
func (c *Canonicalizer) canonicalHost(scheme string, u *url.URL) (string, error) {
	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", errors.New("missing host")
	}
	port := u.Port()

	ip := net.ParseIP(hostname)
	if ip == nil {
		ascii, err := idna.Punycode.ToASCII(hostname)
		if err != nil {
			return "", fmt.Errorf("invalid host %q: %w", hostname, err)
		}
		hostname = strings.ToLower(ascii)
		if c.hostPrefix != "" && strings.Contains(hostname, ".") && !strings.HasPrefix(hostname, c.hostPrefix) {
			hostname = c.hostPrefix + hostname
		}
	}

	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	// IPv6 literals, including IPv4-mapped ones, need brackets to parse again.
	if strings.Contains(hostname, ":") {
		hostname = "[" + hostname + "]"
	}
	if port != "" {
		return hostname + ":" + port, nil
	}
	return hostname, nil
}

// canonicalPath maps "" to "/" and strips trailing slashes from non-root paths.
func canonicalPath(p string) string {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		return "/" + trimmed
	}
	return trimmed
}

// hasHTTPScheme reports whether raw starts with http:// or https://
// (case-insensitive).
func hasHTTPScheme(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
