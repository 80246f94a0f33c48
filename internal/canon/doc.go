// Package canon turns raw URLs into canonical page identities and decides
// which of them belong to the crawled domain.
//
// Two URLs name the same page if and only if their canonical forms are
// equal. A canonical URL has a lowercase scheme, a lowercase host carrying
// the canonical subdomain prefix ("www." unless configured otherwise), no
// userinfo, no default port, no query string, no fragment, and a path
// without trailing slashes except for the root "/".
//
// Canonicalization is idempotent:
//
//	u, _ := canon.Canonicalize("HTTP://Example.com/a/?q=1#top", nil)
//	// u == "http://www.example.com/a"
//	v, _ := canon.Canonicalize(string(u), nil)
//	// v == u
//
// Query strings are dropped on purpose. Pages that differ only by their
// query (pagination, tracking parameters) collapse into one identity.
package canon
