package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/country"
)

type LogConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // json|text
}

type HTTPConfig struct {
	Enable bool   `yaml:"enable"`
	Addr   string `yaml:"addr"` // :8080
}

type CommonHTTP struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

type ScheduleConfig struct {
	Interval   time.Duration `yaml:"interval"`     // default 15m
	RunOnStart *bool         `yaml:"run_on_start"` // default true
	// Maintenance jobs, robfig/cron specs such as "@every 6h" or "0 3 * * *".
	PruneSchedule string        `yaml:"prune_schedule"`
	Retention     time.Duration `yaml:"retention"` // default 720h (30d)
	CacheCleanup  string        `yaml:"cache_cleanup"`
}

type PipelineConfig struct {
	Workers       int           `yaml:"workers"`       // concurrent connector calls
	FetchTimeout  time.Duration `yaml:"fetch_timeout"` // per connector call
	MaxQueries    int           `yaml:"max_queries"`   // per search connector per cycle
	MaxCities     int           `yaml:"max_cities"`    // cities substituted into {city} templates
	IncludeGlobal bool          `yaml:"include_global"`
}

type CountriesConfig struct {
	Default   string            `yaml:"default"`
	Available []string          `yaml:"available"`  // empty means all registered
	StatePath string            `yaml:"state_path"` // persisted active pointer
	Profiles  []country.Profile `yaml:"profiles"`   // overrides or additions to the built-ins
}

type DedupConfig struct {
	Strategy  string  `yaml:"strategy"`  // token_set|edit_ratio
	Threshold float64 `yaml:"threshold"` // 0 keeps the strategy default
}

type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type StoreConfig struct {
	Driver   string         `yaml:"driver"` // file|postgres
	Path     string         `yaml:"path"`   // file driver
	Postgres PostgresConfig `yaml:"postgres"`
}

type CacheConfig struct {
	Driver   string        `yaml:"driver"` // memory|redis|none
	MaxKeys  int           `yaml:"max_keys"`
	RedisURL string        `yaml:"redis_url"`
	Prefix   string        `yaml:"prefix"`
	Search   time.Duration `yaml:"search_ttl"` // default 2h
	Social   time.Duration `yaml:"social_ttl"` // default 4h
	News     time.Duration `yaml:"news_ttl"`   // default 1h
}

type QuotaConfig struct {
	DailyLimit   int    `yaml:"daily_limit"`   // default 100
	SafetyBuffer int    `yaml:"safety_buffer"` // default 10
	StatePath    string `yaml:"state_path"`
}

type ResilienceConfig struct {
	MaxRetries       int           `yaml:"max_retries"`
	Backoff          time.Duration `yaml:"backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	FailureThreshold uint          `yaml:"failure_threshold"` // failures within FailureWindow that open the breaker
	FailureWindow    uint          `yaml:"failure_window"`
	BreakerDelay     time.Duration `yaml:"breaker_delay"`
}

type SearchConfig struct {
	Provider        string     `yaml:"provider"` // brave|searxng|google
	BaseURL         string     `yaml:"base_url"`
	APIKey          string     `yaml:"api_key"`
	EngineID        string     `yaml:"engine_id"` // google cx
	ResultsPerQuery int        `yaml:"results_per_query"`
	Sites           []string   `yaml:"sites"` // site: filters, social mode
	HTTP            CommonHTTP `yaml:"http"`
}

// FeedEntry is one RSS/Atom or ICS URL. A non-empty Country marks its items
// as scoped while that country is active and skips the entry otherwise.
type FeedEntry struct {
	URL      string `yaml:"url"`
	Country  string `yaml:"country"`
	Location string `yaml:"location"` // default location for items without one
}

type FeedConfig struct {
	Feeds []FeedEntry `yaml:"feeds"`
	HTTP  CommonHTTP  `yaml:"http"`
}

type SourceConfig struct {
	Type       string           `yaml:"type"` // search|social|feed|ics
	Name       string           `yaml:"name"`
	Search     SearchConfig     `yaml:"search"`
	Feed       FeedConfig       `yaml:"feed"`
	Resilience ResilienceConfig `yaml:"resilience"`
}

type KeywordRule struct {
	When   []string          `yaml:"when"`   // any of these substrings (case-insensitive) in title/summary
	All    bool              `yaml:"all"`    // require every substring instead of any
	Labels map[string]string `yaml:"labels"` // labels to add when matched
}

type RegexRule struct {
	Field  string            `yaml:"field"` // title|summary|url|location|source
	Expr   string            `yaml:"expr"`
	Labels map[string]string `yaml:"labels"`
}

type MapRule struct {
	Field   string            `yaml:"field"`   // e.g. country
	Mapping map[string]string `yaml:"mapping"` // e.g. "Nigeria":"West Africa"
	OutKey  string            `yaml:"out_key"` // label key to write, e.g. region
}

type PostProcessConfig struct {
	Builtin  *bool         `yaml:"builtin_categories"` // default true
	Keywords []KeywordRule `yaml:"keywords"`
	Regex    []RegexRule   `yaml:"regex"`
	Maps     []MapRule     `yaml:"maps"`
}

type MetricsConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"` // default /metrics
}

type Config struct {
	Log       LogConfig         `yaml:"log"`
	HTTP      HTTPConfig        `yaml:"http"`
	Schedule  ScheduleConfig    `yaml:"schedule"`
	Pipeline  PipelineConfig    `yaml:"pipeline"`
	Countries CountriesConfig   `yaml:"countries"`
	Dedup     DedupConfig       `yaml:"dedup"`
	Store     StoreConfig       `yaml:"store"`
	Cache     CacheConfig       `yaml:"cache"`
	Quota     QuotaConfig       `yaml:"quota"`
	Sources   []SourceConfig    `yaml:"sources"`
	Post      PostProcessConfig `yaml:"postprocess"`
	Metrics   MetricsConfig     `yaml:"metrics"`
}

// Load reads path, expands ${VAR} references from the environment, applies
// environment overrides and defaults, and validates. An empty path yields
// the defaults.
func Load(path string) (Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(b))), &c); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnv(&c)
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnv(c *Config) {
	if v := GetEnv("DEFAULT_COUNTRY", ""); v != "" {
		c.Countries.Default = v
	}
	if v := GetEnv("SEARCH_COUNTRIES", ""); v != "" {
		c.Countries.Available = splitList(v)
	}
	c.Pipeline.IncludeGlobal = GetEnvBool("INCLUDE_GLOBAL_EVENTS", c.Pipeline.IncludeGlobal)
	c.Pipeline.Workers = GetEnvInt("PIPELINE_WORKERS", c.Pipeline.Workers)
	if v := GetEnv("LOG_LEVEL", ""); v != "" {
		c.Log.Level = v
	}
	if v := GetEnv("DATABASE_URL", ""); v != "" {
		c.Store.Postgres.DSN = v
		if c.Store.Driver == "" {
			c.Store.Driver = "postgres"
		}
	}
	if v := GetEnv("REDIS_URL", ""); v != "" {
		c.Cache.RedisURL = v
		if c.Cache.Driver == "" {
			c.Cache.Driver = "redis"
		}
	}
	if v := GetEnv("HTTP_ADDR", ""); v != "" {
		c.HTTP.Addr = v
		c.HTTP.Enable = true
	}
	for i := range c.Sources {
		s := &c.Sources[i].Search
		switch strings.ToLower(s.Provider) {
		case "brave":
			if s.APIKey == "" {
				s.APIKey = GetEnv("BRAVE_API_KEY", "")
			}
		case "google":
			if s.APIKey == "" {
				s.APIKey = GetEnv("GOOGLE_API_KEY", "")
			}
			if s.EngineID == "" {
				s.EngineID = GetEnv("GOOGLE_CSE_ID", "")
			}
		}
	}
}

func applyDefaults(c *Config) {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.Schedule.Interval <= 0 {
		c.Schedule.Interval = 15 * time.Minute
	}
	if c.Schedule.RunOnStart == nil {
		t := true
		c.Schedule.RunOnStart = &t
	}
	if c.Schedule.PruneSchedule == "" {
		c.Schedule.PruneSchedule = "@every 6h"
	}
	if c.Schedule.Retention <= 0 {
		c.Schedule.Retention = 30 * 24 * time.Hour
	}
	if c.Schedule.CacheCleanup == "" {
		c.Schedule.CacheCleanup = "@every 1h"
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = 4
	}
	if c.Pipeline.FetchTimeout <= 0 {
		c.Pipeline.FetchTimeout = 30 * time.Second
	}
	if c.Pipeline.MaxQueries <= 0 {
		c.Pipeline.MaxQueries = 10
	}
	if c.Pipeline.MaxCities <= 0 {
		c.Pipeline.MaxCities = 5
	}
	if c.Countries.Default == "" {
		c.Countries.Default = "Nigeria"
	}
	if c.Dedup.Strategy == "" {
		c.Dedup.Strategy = "token_set"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "file"
	}
	if c.Store.Driver == "file" && c.Store.Path == "" {
		c.Store.Path = "data/events.json"
	}
	if c.Store.Postgres.MaxOpenConns <= 0 {
		c.Store.Postgres.MaxOpenConns = 10
	}
	if c.Store.Postgres.MaxIdleConns <= 0 {
		c.Store.Postgres.MaxIdleConns = 5
	}
	if c.Store.Postgres.ConnMaxLifetime <= 0 {
		c.Store.Postgres.ConnMaxLifetime = 5 * time.Minute
	}
	if c.Cache.Driver == "" {
		c.Cache.Driver = "memory"
	}
	if c.Cache.MaxKeys <= 0 {
		c.Cache.MaxKeys = 5000
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "eventpipe:"
	}
	if c.Cache.Search <= 0 {
		c.Cache.Search = 2 * time.Hour
	}
	if c.Cache.Social <= 0 {
		c.Cache.Social = 4 * time.Hour
	}
	if c.Cache.News <= 0 {
		c.Cache.News = time.Hour
	}
	if c.Quota.DailyLimit <= 0 {
		c.Quota.DailyLimit = 100
	}
	if c.Quota.SafetyBuffer < 0 {
		c.Quota.SafetyBuffer = 0
	} else if c.Quota.SafetyBuffer == 0 {
		c.Quota.SafetyBuffer = 10
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Post.Builtin == nil {
		t := true
		c.Post.Builtin = &t
	}
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
		if s.Search.HTTP.Timeout <= 0 {
			s.Search.HTTP.Timeout = 15 * time.Second
		}
		if s.Feed.HTTP.Timeout <= 0 {
			s.Feed.HTTP.Timeout = 15 * time.Second
		}
		if s.Resilience.MaxRetries <= 0 {
			s.Resilience.MaxRetries = 2
		}
		if s.Resilience.Backoff <= 0 {
			s.Resilience.Backoff = 500 * time.Millisecond
		}
		if s.Resilience.MaxBackoff <= 0 {
			s.Resilience.MaxBackoff = 5 * time.Second
		}
		if s.Resilience.FailureThreshold == 0 {
			s.Resilience.FailureThreshold = 5
		}
		if s.Resilience.FailureWindow < s.Resilience.FailureThreshold {
			s.Resilience.FailureWindow = 2 * s.Resilience.FailureThreshold
		}
		if s.Resilience.BreakerDelay <= 0 {
			s.Resilience.BreakerDelay = time.Minute
		}
	}
}

// Validate checks what defaults cannot repair.
func (c Config) Validate() error {
	var errs []error
	switch c.Store.Driver {
	case "file", "postgres":
	default:
		errs = append(errs, fmt.Errorf("store.driver: unknown %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.Postgres.DSN == "" {
		errs = append(errs, errors.New("store.postgres.dsn: required for postgres driver"))
	}
	switch c.Cache.Driver {
	case "memory", "redis", "none":
	default:
		errs = append(errs, fmt.Errorf("cache.driver: unknown %q", c.Cache.Driver))
	}
	if c.Cache.Driver == "redis" && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.redis_url: required for redis driver"))
	}
	for i, s := range c.Sources {
		switch s.Type {
		case "search", "social":
			if s.Search.Provider == "" {
				errs = append(errs, fmt.Errorf("sources[%d].search.provider: required", i))
			}
		case "feed", "ics":
			if len(s.Feed.Feeds) == 0 {
				errs = append(errs, fmt.Errorf("sources[%d].feed.feeds: at least one feed required", i))
			}
		default:
			errs = append(errs, fmt.Errorf("sources[%d].type: unknown %q", i, s.Type))
		}
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
