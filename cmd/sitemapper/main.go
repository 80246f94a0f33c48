// Package main provides the entry point for the sitemapper CLI.
//
// sitemapper crawls a website, starting from its sitemaps or its homepage,
// and writes the title, meta description and first heading of every page
// to a CSV file.
//
// Usage:
//
//	sitemapper crawl <domain> -o <output>
//	sitemapper history <domain>
//
// See --help for all available options.
package main

// main is the entry point for sitemapper.
func main() {
	Execute()
}
