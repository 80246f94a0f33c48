package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the name of the configuration file looked up in the
// current and home directories.
const DefaultConfigFile = ".sitemapper"

// xdgConfigFile is the name of the configuration file inside XDGConfigDir.
const xdgConfigFile = "config.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a sitemapper YAML file. Unknown keys are rejected so
// that a misspelled setting such as "max_pages" does not pass silently.
// An empty file yields an empty File.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // the path comes from the user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cf := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}

	if err := cf.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cf, nil
}

// validate rejects values that Config.Validate would reject after merging.
func (cf *File) validate() error {
	if err := cf.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}
	for site, sc := range cf.Sites {
		if err := sc.validate(); err != nil {
			return fmt.Errorf("sites.%s: %w", site, err)
		}
	}
	return nil
}

func (sc SiteConfig) validate() error {
	switch {
	case sc.Workers < 0:
		return ErrInvalidWorkers
	case sc.Delay < 0:
		return ErrInvalidCrawlDelay
	case sc.MaxPages < 0:
		return ErrInvalidMaxPages
	}
	return nil
}

// SearchPaths lists the locations FindConfigFile tries, in order.
func SearchPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return append(paths, filepath.Join(XDGConfigDir(), xdgConfigFile))
}

// FindConfigFile returns configPath if it exists, or the first existing
// entry of SearchPaths when configPath is empty. It returns "" when there
// is no configuration file.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if isFile(configPath) {
			return configPath
		}
		return ""
	}
	for _, p := range SearchPaths() {
		if isFile(p) {
			return p
		}
	}
	return ""
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
