package config

import (
	"strings"
	"time"
)

// SiteConfig holds site-specific configuration for a single domain.
type SiteConfig struct {
	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to include in requests to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"userAgent,omitempty"`

	// ExcludeExtensions adds file extensions that are never crawled.
	ExcludeExtensions []string `yaml:"excludeExtensions,omitempty"`

	// Workers overrides the number of concurrent fetches.
	Workers int `yaml:"workers,omitempty"`

	// Delay overrides the pause between requests, e.g. "500ms".
	Delay time.Duration `yaml:"delay,omitempty"`

	// MaxPages overrides the page limit.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are URL path globs that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict the crawl to matching URL paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .sitemapper configuration file.
type File struct {
	// Sites maps domains to their site-specific configurations.
	// Keys are hosts without scheme, e.g. "example.com".
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults contains configuration applied to all sites
	// unless overridden in the site-specific configuration.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for domain, merging the
// site-specific entry over the defaults. The lookup ignores the scheme,
// a trailing path, letter case and a leading "www.".
func (cf *File) GetSiteConfig(domain string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.lookup(domain)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.UserAgent != "" {
		result.UserAgent = siteConfig.UserAgent
	}
	if siteConfig.Workers != 0 {
		result.Workers = siteConfig.Workers
	}
	if siteConfig.Delay != 0 {
		result.Delay = siteConfig.Delay
	}
	if siteConfig.MaxPages != 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.ExcludeExtensions) > 0 {
		result.ExcludeExtensions = siteConfig.ExcludeExtensions
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

func (cf *File) lookup(domain string) (SiteConfig, bool) {
	key := SiteKey(domain)
	for k, sc := range cf.Sites {
		if SiteKey(k) == key {
			return sc, true
		}
	}
	return SiteConfig{}, false
}

// SiteKey reduces a domain or URL to its lowercase host without a leading
// "www." and without port, path or scheme. It names per-site config
// entries.
func SiteKey(domain string) string {
	host, _ := splitSite(domain)
	return host
}

// SiteID is SiteKey with the port kept, so that sites served on different
// ports of one host stay apart. It names per-domain output files and
// identifies repeated domains on the command line.
func SiteID(domain string) string {
	host, port := splitSite(domain)
	if port == "" {
		return host
	}
	return host + ":" + port
}

func splitSite(domain string) (host, port string) {
	s := strings.ToLower(strings.TrimSpace(domain))
	if _, rest, ok := strings.Cut(s, "://"); ok {
		s = rest
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if _, h, ok := strings.Cut(s, "@"); ok {
		s = h
	}
	if i := strings.LastIndex(s, ":"); i >= 0 && !strings.HasSuffix(s, "]") {
		s, port = s[:i], s[i+1:]
	}
	return strings.TrimPrefix(s, "www."), port
}
