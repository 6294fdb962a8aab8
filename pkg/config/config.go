package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Server struct {
		Listen  string        `yaml:"listen"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"server"`

	Cache struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns"`
		MaxIdleConns    int           `yaml:"max_idle_conns"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
		TTL             time.Duration `yaml:"ttl"` // freshness window for cached headlines
	} `yaml:"cache"`

	Schedule struct {
		UpdateInterval time.Duration `yaml:"update_interval"`
		MaxWorkers     int           `yaml:"max_workers"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		MaxRetries     int           `yaml:"max_retries"`
		PurgeSchedule  string        `yaml:"purge_schedule"` // cron spec for cache cleanup
		UserAgent      string        `yaml:"user_agent"`
	} `yaml:"schedule"`

	Feeds   FeedsConfig   `yaml:"feeds"`
	Display DisplayConfig `yaml:"display"`
}

// FeedsConfig selects predefined feeds and adds user-supplied ones
type FeedsConfig struct {
	Enabled          []string    `yaml:"enabled"` // names of predefined feeds to activate
	Custom           CustomFeeds `yaml:"custom"`
	HeadlinesPerFeed int         `yaml:"headlines_per_feed"`
	MaxFeeds         int         `yaml:"max_feeds"`
	TitleLimit       int         `yaml:"title_limit"` // max headline length in characters
}

// CustomFeed is a user-supplied RSS source
type CustomFeed struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled *bool  `yaml:"enabled"` // nil means enabled
	Logo    string `yaml:"logo"`
}

// IsEnabled reports whether the feed should be fetched, defaulting to true
func (f CustomFeed) IsEnabled() bool { return f.Enabled == nil || *f.Enabled }

// CustomFeeds accepts two encodings: the current list-of-objects form and
// the deprecated name->url mapping. The mapping form is migrated on load,
// preserving name/url pairs with enabled defaulting to true.
type CustomFeeds []CustomFeed

// UnmarshalYAML implements yaml.Unmarshaler to support both encodings
func (c *CustomFeeds) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.SequenceNode:
		var feeds []CustomFeed
		if err := node.Decode(&feeds); err != nil {
			return fmt.Errorf("decode custom feeds list: %w", err)
		}
		*c = feeds
		return nil
	case yaml.MappingNode:
		// legacy format, mapping preserves document order in node.Content
		feeds := make([]CustomFeed, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			feeds = append(feeds, CustomFeed{
				Name: node.Content[i].Value,
				URL:  node.Content[i+1].Value,
			})
		}
		*c = feeds
		return nil
	default:
		return fmt.Errorf("custom feeds must be a list or a name to url mapping")
	}
}

// DisplayConfig holds pixel display and ticker rendering settings
type DisplayConfig struct {
	Width     int            `yaml:"width"`
	Height    int            `yaml:"height"`
	FontSize  int            `yaml:"font_size"`
	TargetFPS float64        `yaml:"target_fps"`
	Scroll    ScrollConfig   `yaml:"scroll"`
	Duration  DurationConfig `yaml:"duration"`
	Rotation  RotationConfig `yaml:"rotation"`
	Colors    ColorsConfig   `yaml:"colors"`
	Logos     LogosConfig    `yaml:"logos"`
}

// ScrollConfig controls ticker movement. Either frame-based (speed px/frame
// at delay per frame) or time-based (pixels_per_second) when set.
type ScrollConfig struct {
	Speed           float64       `yaml:"speed"`
	Delay           time.Duration `yaml:"delay"`
	PixelsPerSecond float64       `yaml:"pixels_per_second"`
}

// EffectivePixelsPerSecond returns the scroll rate in px/s regardless of mode
func (s ScrollConfig) EffectivePixelsPerSecond() float64 {
	if s.PixelsPerSecond > 0 {
		return s.PixelsPerSecond
	}
	if s.Delay > 0 {
		return s.Speed / s.Delay.Seconds()
	}
	return s.Speed * 100
}

// DurationConfig sets how long the ticker is displayed
type DurationConfig struct {
	Seconds time.Duration   `yaml:"seconds"` // fixed duration when dynamic is off
	Dynamic DynamicDuration `yaml:"dynamic"`
}

// DynamicDuration computes display time from content width. The deprecated
// encoding is a bare boolean, migrated on load with default bounds.
type DynamicDuration struct {
	Enabled bool          `yaml:"enabled"`
	Min     time.Duration `yaml:"min_duration_seconds"`
	Max     time.Duration `yaml:"max_duration_seconds"`
	Buffer  float64       `yaml:"buffer_ratio"`
}

// UnmarshalYAML implements yaml.Unmarshaler to accept the legacy bool form
func (d *DynamicDuration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var enabled bool
		if err := node.Decode(&enabled); err != nil {
			return fmt.Errorf("decode dynamic duration flag: %w", err)
		}
		d.Enabled = enabled
		return nil
	}
	type plain DynamicDuration
	var p plain
	if err := node.Decode(&p); err != nil {
		return fmt.Errorf("decode dynamic duration: %w", err)
	}
	*d = DynamicDuration(p)
	return nil
}

// RotationConfig controls advancing to the next headline batch
type RotationConfig struct {
	Enabled   *bool `yaml:"enabled"`    // nil means enabled
	Threshold int   `yaml:"threshold"`  // full display cycles before rotating
	BatchSize int   `yaml:"batch_size"` // headlines per batch, 0 shows all at once
}

// IsEnabled reports whether rotation is active, defaulting to true
func (r RotationConfig) IsEnabled() bool { return r.Enabled == nil || *r.Enabled }

// ColorsConfig holds RGB colors for ticker text
type ColorsConfig struct {
	Text      RGB `yaml:"text"`
	Separator RGB `yaml:"separator"`
}

// RGB is a color encoded in YAML as a three-element list
type RGB [3]uint8

// UnmarshalYAML implements yaml.Unmarshaler with a length check
func (c *RGB) UnmarshalYAML(node *yaml.Node) error {
	var vals []uint8
	if err := node.Decode(&vals); err != nil {
		return fmt.Errorf("decode color: %w", err)
	}
	if len(vals) != 3 {
		return fmt.Errorf("color must have exactly 3 components, got %d", len(vals))
	}
	copy(c[:], vals)
	return nil
}

// LogosConfig controls source logo display
type LogosConfig struct {
	Enabled *bool             `yaml:"enabled"` // nil means enabled
	Size    int               `yaml:"size"`    // defaults to display height minus margin
	Dirs    []string          `yaml:"dirs"`    // searched in priority order
	Map     map[string]string `yaml:"map"`     // feed name to logo file overrides
}

// ShowLogos reports whether logos should be rendered, defaulting to true
func (l LogosConfig) ShowLogos() bool { return l.Enabled == nil || *l.Enabled }

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// setDefaults fills in zero values, matching the documented defaults
func setDefaults(cfg *Config) {
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
	if cfg.Server.Timeout == 0 {
		cfg.Server.Timeout = 30 * time.Second
	}

	if cfg.Cache.DSN == "" {
		cfg.Cache.DSN = "file:newsticker.db?cache=shared&mode=rwc&_txlock=immediate"
	}
	if cfg.Cache.MaxOpenConns == 0 {
		cfg.Cache.MaxOpenConns = 10
	}
	if cfg.Cache.MaxIdleConns == 0 {
		cfg.Cache.MaxIdleConns = 5
	}
	if cfg.Cache.ConnMaxLifetime == 0 {
		cfg.Cache.ConnMaxLifetime = time.Hour
	}

	if cfg.Schedule.UpdateInterval == 0 {
		cfg.Schedule.UpdateInterval = 5 * time.Minute
	}
	if cfg.Cache.TTL == 0 {
		// cache entries stay valid twice as long as the update interval
		cfg.Cache.TTL = 2 * cfg.Schedule.UpdateInterval
	}
	if cfg.Schedule.MaxWorkers == 0 {
		cfg.Schedule.MaxWorkers = 5
	}
	if cfg.Schedule.RequestTimeout == 0 {
		cfg.Schedule.RequestTimeout = 30 * time.Second
	}
	if cfg.Schedule.MaxRetries == 0 {
		cfg.Schedule.MaxRetries = 3
	}
	if cfg.Schedule.PurgeSchedule == "" {
		cfg.Schedule.PurgeSchedule = "@every 10m"
	}
	if cfg.Schedule.UserAgent == "" {
		cfg.Schedule.UserAgent = "LEDMatrix-News/1.0"
	}

	if cfg.Feeds.HeadlinesPerFeed == 0 {
		cfg.Feeds.HeadlinesPerFeed = 2
	}
	if cfg.Feeds.MaxFeeds == 0 {
		cfg.Feeds.MaxFeeds = 20
	}
	if cfg.Feeds.TitleLimit == 0 {
		cfg.Feeds.TitleLimit = 100
	}

	if cfg.Display.Width == 0 {
		cfg.Display.Width = 64
	}
	if cfg.Display.Height == 0 {
		cfg.Display.Height = 32
	}
	if cfg.Display.FontSize == 0 {
		cfg.Display.FontSize = 12
	}
	if cfg.Display.TargetFPS == 0 {
		cfg.Display.TargetFPS = 100
	}
	if cfg.Display.Scroll.Speed == 0 {
		cfg.Display.Scroll.Speed = 1.0
	}
	if cfg.Display.Scroll.Delay == 0 {
		cfg.Display.Scroll.Delay = 10 * time.Millisecond
	}
	if cfg.Display.Duration.Seconds == 0 {
		cfg.Display.Duration.Seconds = 30 * time.Second
	}
	if cfg.Display.Duration.Dynamic.Min == 0 {
		cfg.Display.Duration.Dynamic.Min = 30 * time.Second
	}
	if cfg.Display.Duration.Dynamic.Max == 0 {
		cfg.Display.Duration.Dynamic.Max = 300 * time.Second
	}
	if cfg.Display.Duration.Dynamic.Buffer == 0 {
		cfg.Display.Duration.Dynamic.Buffer = 0.1
	}
	if cfg.Display.Rotation.Threshold == 0 {
		cfg.Display.Rotation.Threshold = 3
	}
	if cfg.Display.Colors.Text == (RGB{}) {
		cfg.Display.Colors.Text = RGB{255, 255, 255}
	}
	if cfg.Display.Colors.Separator == (RGB{}) {
		cfg.Display.Colors.Separator = RGB{255, 0, 0}
	}
	if cfg.Display.Logos.Size == 0 {
		cfg.Display.Logos.Size = cfg.Display.Height - 4
		if cfg.Display.Logos.Size <= 0 {
			cfg.Display.Logos.Size = cfg.Display.Height
		}
	}
	if len(cfg.Display.Logos.Dirs) == 0 {
		cfg.Display.Logos.Dirs = []string{"assets/news_logos", "assets/broadcast_logos", "assets/logos"}
	}
}

// validate checks configuration for correctness
func validate(cfg *Config) error {
	if cfg.Server.Timeout < time.Second {
		return fmt.Errorf("server timeout must be at least 1 second")
	}

	if cfg.Schedule.UpdateInterval < time.Second {
		return fmt.Errorf("schedule update_interval must be at least 1 second")
	}
	if cfg.Schedule.MaxRetries < 1 {
		return fmt.Errorf("schedule max_retries must be at least 1")
	}

	if len(cfg.Feeds.Enabled)+len(cfg.Feeds.Custom) > cfg.Feeds.MaxFeeds {
		return fmt.Errorf("too many feeds: %d configured, max %d",
			len(cfg.Feeds.Enabled)+len(cfg.Feeds.Custom), cfg.Feeds.MaxFeeds)
	}
	for _, f := range cfg.Feeds.Custom {
		if f.Name == "" {
			return fmt.Errorf("custom feed name is required")
		}
		if len(f.Name) > 50 {
			return fmt.Errorf("custom feed name %q exceeds 50 characters", f.Name)
		}
		u, err := url.Parse(f.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("custom feed %q has invalid url %q", f.Name, f.URL)
		}
	}

	d := cfg.Display.Duration.Dynamic
	if d.Min > d.Max {
		return fmt.Errorf("duration min %v exceeds max %v", d.Min, d.Max)
	}
	if d.Buffer < 0 {
		return fmt.Errorf("duration buffer_ratio must be non-negative")
	}
	if cfg.Display.Rotation.Threshold < 1 {
		return fmt.Errorf("rotation threshold must be at least 1")
	}
	if cfg.Display.TargetFPS < 0 {
		return fmt.Errorf("target_fps must be non-negative")
	}

	return nil
}

// GetServerConfig returns server configuration
func (c *Config) GetServerConfig() (listen string, timeout time.Duration) {
	return c.Server.Listen, c.Server.Timeout
}

// GetFeedsConfig returns feed selection configuration
func (c *Config) GetFeedsConfig() FeedsConfig {
	return c.Feeds
}

// GetDisplayConfig returns display configuration
func (c *Config) GetDisplayConfig() DisplayConfig {
	return c.Display
}
