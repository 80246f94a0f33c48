// Package config provides configuration structures and utilities for
// sitemapper. It defines the crawl, output and history settings, their
// defaults and validation, and the optional .sitemapper YAML file with
// per-site overrides.
package config
