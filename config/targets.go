package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/use-agent/lazcrawl/models"
	"gopkg.in/yaml.v3"
)

// AppName names the per-user config directory.
const AppName = "lazcrawl"

// DefaultTargetsFile is looked up in the working directory and the XDG
// config directory.
const DefaultTargetsFile = "targets.yaml"

// Mode selects how the target list is interpreted.
type Mode string

const (
	ModeURLs       Mode = "urls"
	ModeCategories Mode = "categories"
)

// ParseMode accepts "urls" (also the empty string), "categories" and "category".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "urls", "url":
		return ModeURLs, nil
	case "categories", "category":
		return ModeCategories, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// Targets is the static list of what to crawl.
type Targets struct {
	URLs       []string              `yaml:"urls"`
	Categories []models.CategorySpec `yaml:"categories"`
}

// LoadTargets reads a YAML targets file.
func LoadTargets(path string) (*Targets, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrTargetsNotFound, path)
		}
		return nil, err
	}

	var t Targets
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &t, nil
}

// FindTargetsFile searches for the targets file in order:
//  1. the explicit path, if given
//  2. LAZCRAWL_TARGETS
//  3. targets.yaml in the working directory
//  4. $XDG_CONFIG_HOME/lazcrawl/targets.yaml
//
// It returns ErrTargetsNotFound when none exists.
func FindTargetsFile(explicit string) (string, error) {
	if explicit == "" {
		explicit = os.Getenv("LAZCRAWL_TARGETS")
	}
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrTargetsNotFound, explicit)
		}
		return explicit, nil
	}

	if cwd, err := os.Getwd(); err == nil {
		p := filepath.Join(cwd, DefaultTargetsFile)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	if p, err := xdg.SearchConfigFile(filepath.Join(AppName, DefaultTargetsFile)); err == nil {
		return p, nil
	}
	return "", ErrTargetsNotFound
}

// URLList returns the non-blank URLs in order, or ErrNoTargets.
func (t *Targets) URLList() ([]string, error) {
	urls := make([]string, 0, len(t.URLs))
	for _, u := range t.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: add product URLs under \"urls\"", ErrNoTargets)
	}
	return urls, nil
}

// CategoryList returns the categories in order with caps resolved, or
// ErrNoTargets / ErrInvalidCategory.
func (t *Targets) CategoryList() ([]models.CategorySpec, error) {
	if len(t.Categories) == 0 {
		return nil, fmt.Errorf("%w: add entries under \"categories\"", ErrNoTargets)
	}
	cats := make([]models.CategorySpec, 0, len(t.Categories))
	for i, c := range t.Categories {
		c.Label = strings.TrimSpace(c.Label)
		c.ListingURL = strings.TrimSpace(c.ListingURL)
		if c.Label == "" || c.ListingURL == "" {
			return nil, fmt.Errorf("%w (entry %d)", ErrInvalidCategory, i+1)
		}
		c.MaxProducts = c.Cap()
		cats = append(cats, c)
	}
	return cats, nil
}
