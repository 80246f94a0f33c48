// Package fetcher retrieves pages over HTTP for the crawler and the sitemap
// resolver.
//
// It builds an http.Client with a fixed timeout, a cookie jar, a redirect
// limit, optional SOCKS5 or HTTP proxying, and per-site cookie and header
// injection. A Fetcher wraps that client with a shared request rate limit
// and a response size limit, and reports every failure (network error,
// timeout, non-2xx status) as an *Error.
package fetcher
