package feed

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/samber/lo"

	"github.com/ChuckBuilds/ledmatrix-news/pkg/config"
	"github.com/ChuckBuilds/ledmatrix-news/pkg/domain"
)

// predefined feeds shipped with the service, in display order
var predefinedFeeds = []domain.Feed{
	{Name: "MLB", URL: "http://espn.com/espn/rss/mlb/news"},
	{Name: "NFL", URL: "http://espn.go.com/espn/rss/nfl/news"},
	{Name: "NCAA FB", URL: "https://www.espn.com/espn/rss/ncf/news"},
	{Name: "NHL", URL: "https://www.espn.com/espn/rss/nhl/news"},
	{Name: "NBA", URL: "https://www.espn.com/espn/rss/nba/news"},
	{Name: "TOP SPORTS", URL: "https://www.espn.com/espn/rss/news"},
	{Name: "BIG10", URL: "https://www.espn.com/blog/feed?blog=bigten"},
	{Name: "NCAA", URL: "https://www.espn.com/espn/rss/ncaa/news"},
	{Name: "Other", URL: "https://www.coveringthecorner.com/rss/current.xml"},
}

// predefined feed name to logo file mapping
var predefinedLogos = map[string]string{
	"MLB":        "mlbn.png",
	"NFL":        "nfln.png",
	"NCAA FB":    "espn.png",
	"NHL":        "espn.png",
	"NBA":        "espn.png",
	"TOP SPORTS": "espn.png",
	"BIG10":      "espn.png",
	"NCAA":       "espn.png",
	"Other":      "espn.png",
}

var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)

// Registry merges predefined feeds with user-supplied custom feeds and
// resolves the logo file for each feed name.
type Registry struct {
	feeds    []domain.Feed
	logoDirs []string
	logoMap  map[string]string // user overrides, feed name to file name
}

// NewRegistry builds the merged feed list from configuration. Predefined
// feeds come first in their shipped order, followed by custom feeds in
// configuration order.
func NewRegistry(feedsCfg config.FeedsConfig, logosCfg config.LogosConfig) (*Registry, error) {
	feeds := make([]domain.Feed, 0, len(feedsCfg.Enabled)+len(feedsCfg.Custom))

	for _, name := range feedsCfg.Enabled {
		predefined, ok := lo.Find(predefinedFeeds, func(f domain.Feed) bool { return f.Name == name })
		if !ok {
			return nil, fmt.Errorf("unknown predefined feed %q", name)
		}
		predefined.Enabled = true
		feeds = append(feeds, predefined)
	}

	for _, custom := range feedsCfg.Custom {
		if _, exists := lo.Find(feeds, func(f domain.Feed) bool { return f.Name == custom.Name }); exists {
			return nil, fmt.Errorf("duplicate feed name %q", custom.Name)
		}
		feeds = append(feeds, domain.Feed{
			Name:    custom.Name,
			URL:     custom.URL,
			Enabled: custom.IsEnabled(),
			Logo:    custom.Logo,
			Custom:  true,
		})
	}

	if len(feeds) > feedsCfg.MaxFeeds {
		return nil, fmt.Errorf("too many feeds: %d, max %d", len(feeds), feedsCfg.MaxFeeds)
	}

	return &Registry{
		feeds:    feeds,
		logoDirs: logosCfg.Dirs,
		logoMap:  logosCfg.Map,
	}, nil
}

// All returns every registered feed
func (r *Registry) All() []domain.Feed {
	res := make([]domain.Feed, len(r.feeds))
	copy(res, r.feeds)
	return res
}

// Enabled returns feeds that should be fetched, in display order
func (r *Registry) Enabled() []domain.Feed {
	return lo.Filter(r.All(), func(f domain.Feed, _ int) bool { return f.Enabled })
}

// EnabledNames returns names of enabled feeds, in display order
func (r *Registry) EnabledNames() []string {
	return lo.Map(r.Enabled(), func(f domain.Feed, _ int) string { return f.Name })
}

// ResolveLogo returns the logo file name for a feed, or empty when no logo
// file exists on disk. Resolution order: explicit per-feed logo, user logo
// map, predefined map, name-based inference, normalized feed name.
func (r *Registry) ResolveLogo(feedName string) string {
	name := r.logoFileName(feedName)
	if name == "" {
		return ""
	}
	for _, dir := range r.logoDirs {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return name
		}
	}
	return ""
}

// logoFileName picks the candidate logo file for a feed name
func (r *Registry) logoFileName(feedName string) string {
	if f, ok := lo.Find(r.feeds, func(f domain.Feed) bool { return f.Name == feedName }); ok && f.Logo != "" {
		return f.Logo
	}
	if name, ok := r.logoMap[feedName]; ok && name != "" {
		return name
	}
	if name, ok := predefinedLogos[feedName]; ok {
		return name
	}
	return inferLogoName(feedName)
}

// inferLogoName guesses a logo file from well-known substrings, falling
// back to the normalized feed name
func inferLogoName(feedName string) string {
	lower := strings.ToLower(feedName)
	switch {
	case strings.Contains(lower, "espn"):
		return "espn.png"
	case strings.Contains(lower, "nfl"):
		return "nfln.png"
	case strings.Contains(lower, "mlb"):
		return "mlbn.png"
	case strings.Contains(lower, "nba"), strings.Contains(lower, "nhl"), strings.Contains(lower, "ncaa"):
		return "espn.png"
	}
	return nonAlphanumeric.ReplaceAllString(lower, "_") + ".png"
}
