// Package sitemap discovers the page URLs a site publishes in its sitemaps.
//
// The Resolver probes a fixed list of conventional sitemap locations under
// the site origin, reads any "Sitemap:" directives from robots.txt, and
// expands sitemap indexes with a work-list. A visited-sitemap guard makes
// cyclic or self-referencing indexes terminate. Documents that cannot be
// fetched or parsed are skipped with a warning; they never abort discovery.
package sitemap
