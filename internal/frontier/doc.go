// Package frontier holds the set of URLs a crawl still has to visit and the
// set it has already visited.
//
// The Frontier is the only mutable structure shared by crawl workers. Every
// operation runs under a single mutex, so a URL is never observed in both
// sets and is never handed to two workers.
package frontier
