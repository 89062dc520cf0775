package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "UTC"
	configPathEnv     = "TRAVEL_REPORT_CONFIG"
	databaseDSNEnv    = "DATABASE_DSN"
	openAIAPIKeyEnv   = "OPENAI_API_KEY"
	openAIModelEnv    = "OPENAI_MODEL"
	unsplashAccessEnv = "UNSPLASH_ACCESS_KEY"
	httpListenAddrEnv = "HTTP_LISTEN_ADDR"
)

// Duration wraps time.Duration so YAML accepts "20s"-style strings.
type Duration time.Duration

// UnmarshalYAML parses the usual time.ParseDuration forms.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std converts back to the standard library type.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Unsplash  UnsplashConfig  `yaml:"unsplash"`
	Feeds     []FeedConfig    `yaml:"feeds"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Quality   QualityConfig   `yaml:"quality"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// LoggingConfig controls slog verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig describes Postgres connection details. An empty DSN keeps
// the pipeline on the in-memory repository.
type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

// SchedulerConfig defines when automation runs execute.
type SchedulerConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Interval Duration       `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// OpenAIConfig defines how to contact the chat completion API.
type OpenAIConfig struct {
	Endpoint     string `yaml:"endpoint"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"apiKey"`
	SystemPrompt string `yaml:"systemPrompt"`
}

// UnsplashConfig wires the stock image provider.
type UnsplashConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
}

// FeedConfig describes a single syndication feed to ingest.
type FeedConfig struct {
	Name     string `yaml:"name"`
	URL      string `yaml:"url"`
	Category string `yaml:"category"`
	Enabled  bool   `yaml:"enabled"`
}

// PipelineConfig tunes the automation orchestrator.
type PipelineConfig struct {
	MaxStoriesPerRun int     `yaml:"maxStoriesPerRun"`
	Workers          int     `yaml:"workers"`
	QualityThreshold float64 `yaml:"qualityThreshold"`
	// RewriteStrict drops candidates whose rewrite fails instead of falling
	// back to the original text.
	RewriteStrict  bool          `yaml:"rewriteStrict"`
	RequestTimeout Duration      `yaml:"requestTimeout"`
}

// QualityConfig exposes the scorer's aggregate weights.
type QualityConfig struct {
	Weights QualityWeights `yaml:"weights"`
}

// QualityWeights are the per-dimension contributions to the aggregate score.
type QualityWeights struct {
	Originality float64 `yaml:"originality"`
	Readability float64 `yaml:"readability"`
	SEO         float64 `yaml:"seo"`
	Accuracy    float64 `yaml:"accuracy"`
	Brand       float64 `yaml:"brand"`
}

// HTTPConfig describes the control surface listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultConfig().Feeds
	}

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}

	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(unsplashAccessEnv); v != "" {
		c.Unsplash.AccessKey = v
	}

	if v := os.Getenv(httpListenAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.DSN != "" {
		base.Database = override.Database
	}

	if override.Scheduler.Enabled {
		base.Scheduler.Enabled = true
	}
	if override.Scheduler.Interval != 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}
	if override.OpenAI.SystemPrompt != "" {
		base.OpenAI.SystemPrompt = override.OpenAI.SystemPrompt
	}

	if override.Unsplash.Endpoint != "" {
		base.Unsplash.Endpoint = override.Unsplash.Endpoint
	}
	if override.Unsplash.AccessKey != "" {
		base.Unsplash.AccessKey = override.Unsplash.AccessKey
	}

	if override.Pipeline.MaxStoriesPerRun != 0 {
		base.Pipeline.MaxStoriesPerRun = override.Pipeline.MaxStoriesPerRun
	}
	if override.Pipeline.Workers != 0 {
		base.Pipeline.Workers = override.Pipeline.Workers
	}
	if override.Pipeline.QualityThreshold != 0 {
		base.Pipeline.QualityThreshold = override.Pipeline.QualityThreshold
	}
	if override.Pipeline.RewriteStrict {
		base.Pipeline.RewriteStrict = true
	}
	if override.Pipeline.RequestTimeout != 0 {
		base.Pipeline.RequestTimeout = override.Pipeline.RequestTimeout
	}

	if override.Quality.Weights != (QualityWeights{}) {
		base.Quality.Weights = override.Quality.Weights
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if len(override.Feeds) > 0 {
		base.Feeds = override.Feeds
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{DSN: ""},
		Scheduler: SchedulerConfig{
			Enabled:  false,
			Interval: Duration(24 * time.Hour),
			Timezone: defaultTimezone,
			location: tz,
		},
		OpenAI: OpenAIConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			SystemPrompt: "You are a professional travel editor writing in Australian English.",
		},
		Unsplash: UnsplashConfig{
			Endpoint:  "https://api.unsplash.com",
			AccessKey: "",
		},
		Pipeline: PipelineConfig{
			MaxStoriesPerRun: 8,
			Workers:          1,
			QualityThreshold: 0.6,
			RewriteStrict:    false,
			RequestTimeout:   Duration(20 * time.Second),
		},
		Quality: QualityConfig{
			Weights: QualityWeights{
				Originality: 0.25,
				Readability: 0.25,
				SEO:         0.2,
				Accuracy:    0.15,
				Brand:       0.15,
			},
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Feeds: []FeedConfig{
			{
				Name:     "travel-wire",
				URL:      "https://feeds.example.org/travel/stories.rss",
				Category: "Destinations",
				Enabled:  true,
			},
		},
	}
}
