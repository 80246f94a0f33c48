package canon

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// DefaultExcludedExtensions lists file extensions that are never crawled.
// Images and archives carry no page metadata worth recording.
var DefaultExcludedExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".ico", ".bmp", ".tif", ".tiff",
	".zip", ".gz", ".tgz", ".tar", ".rar", ".7z", ".bz2", ".xz",
}

// Scope is the set of URLs a crawl may visit: every URL whose canonical
// host equals the canonical host of the seed domain, minus excluded file
// types and ignored paths. A Scope is immutable after NewScope returns.
type Scope struct {
	canonicalizer  *Canonicalizer
	origin         *url.URL
	root           URL
	host           string
	excluded       []string
	ignorePatterns []string
	followPatterns []string
}

// ScopeOption configures a Scope.
type ScopeOption func(*Scope)

// WithCanonicalizer sets the canonicalization policy used by the scope.
func WithCanonicalizer(c *Canonicalizer) ScopeOption {
	return func(s *Scope) {
		if c != nil {
			s.canonicalizer = c
		}
	}
}

// WithExcludedExtensions adds file extensions (".pdf" or "pdf") to the
// default exclusion list.
func WithExcludedExtensions(exts []string) ScopeOption {
	return func(s *Scope) {
		for _, ext := range exts {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			s.excluded = append(s.excluded, ext)
		}
	}
}

// WithIgnorePatterns sets URL path patterns to skip.
// Patterns use glob syntax (e.g., "/admin/*", "*.pdf", "/logout*").
func WithIgnorePatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts the scope to URL paths matching at least one
// of the given glob patterns. The seed root is always in scope.
func WithFollowPatterns(patterns []string) ScopeOption {
	return func(s *Scope) {
		s.followPatterns = patterns
	}
}

// NewScope builds the scope of a crawl seeded at domain. The domain may be
// given with or without a scheme; "https" is assumed when it is missing.
// It returns an error wrapping ErrInvalidDomain when the domain has no
// canonical identity.
func NewScope(domain string, opts ...ScopeOption) (*Scope, error) {
	s := &Scope{
		canonicalizer: defaultCanonicalizer,
		excluded:      append([]string(nil), DefaultExcludedExtensions...),
	}
	for _, opt := range opts {
		opt(s)
	}

	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("%w: empty domain", ErrInvalidDomain)
	}
	if !hasHTTPScheme(domain) {
		domain = "https://" + domain
	}

	origin, err := url.Parse(domain)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	s.origin = &url.URL{Scheme: strings.ToLower(origin.Scheme), Host: origin.Host, Path: "/"}

	root, err := s.canonicalizer.Canonicalize(domain, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDomain, err)
	}
	s.root = root
	s.host = root.Host()
	return s, nil
}

// Root returns the canonical seed URL.
func (s *Scope) Root() URL {
	return s.root
}

// Host returns the canonical host every in-scope URL shares.
func (s *Scope) Host() string {
	return s.host
}

// Origin returns scheme://host/ of the domain exactly as the user supplied
// it, without the canonical prefix. Sitemap probes are made against it.
func (s *Scope) Origin() *url.URL {
	u := *s.origin
	return &u
}

// Canonicalize canonicalizes raw with the scope's policy, resolving relative
// references against the origin.
func (s *Scope) Canonicalize(raw string) (URL, error) {
	return s.canonicalizer.Canonicalize(raw, s.origin)
}

// Contains canonicalizes raw and reports whether the result is in scope.
// The canonical URL is returned even when it is out of scope, and is empty
// when raw cannot be canonicalized.
func (s *Scope) Contains(raw string) (URL, bool) {
	u, err := s.Canonicalize(raw)
	if err != nil {
		return "", false
	}
	return u, s.InScope(u, raw)
}

// InScope reports whether the canonical URL u, obtained from raw, may be
// crawled. The host must match exactly and the raw string must not end in
// an excluded extension.
func (s *Scope) InScope(u URL, raw string) bool {
	if u.Host() != s.host {
		return false
	}
	if s.hasExcludedExtension(raw) {
		return false
	}
	if u == s.root {
		return true
	}
	return s.shouldCrawl(u)
}

// hasExcludedExtension checks the raw URL, ignoring its query and fragment.
func (s *Scope) hasExcludedExtension(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range s.excluded {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// shouldCrawl applies ignore and follow patterns to the URL path.
// A path matching any ignore pattern is skipped; when follow patterns are
// set the path must match at least one of them.
func (s *Scope) shouldCrawl(u URL) bool {
	parsed, err := url.Parse(string(u))
	if err != nil {
		return false
	}
	p := parsed.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, p) {
			return false
		}
	}
	if len(s.followPatterns) == 0 {
		return true
	}
	for _, pattern := range s.followPatterns {
		if matchPattern(pattern, p) {
			return true
		}
	}
	return false
}

// matchPattern matches a URL path against a glob pattern.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in ".pdf"
//   - other patterns use path.Match, and patterns without a slash are
//     also tried against the last path segment
func matchPattern(pattern, p string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}
	if strings.HasPrefix(pattern, "*.") && strings.HasSuffix(p, strings.TrimPrefix(pattern, "*")) {
		return true
	}
	if matched, err := path.Match(pattern, p); err == nil && matched {
		return true
	}
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}
	return false
}
