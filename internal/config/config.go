package config

import (
	"time"

	"github.com/formrelay/formrelay/internal/content"
)

// CurrentVersion is the configVersion this build reads. Older documents go
// through Migrate first.
const CurrentVersion = 2

type Config struct {
	ConfigVersion int            `yaml:"configVersion"`
	Server        ServerConfig   `yaml:"server"`
	Dispatch      DispatchConfig `yaml:"dispatch"`
	Logging       LoggingConfig  `yaml:"logging"`
	Metrics       MetricsConfig  `yaml:"metrics"`
	Tracing       TracingConfig  `yaml:"tracing"`
	Routes        []Route        `yaml:"routes"`

	baseDir string `yaml:"-"`
}

type ServerConfig struct {
	Listen       string          `yaml:"listen"`
	MaxBodyBytes int64           `yaml:"maxBodyBytes"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled"`
	Key     string  `yaml:"key"`
	RPS     float64 `yaml:"rps"`
	Burst   int     `yaml:"burst"`
}

type DispatchConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Format      string `yaml:"format"`
	Output      string `yaml:"output"`
	DispatchLog string `yaml:"dispatchLog"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Route is one configured distribution target.
type Route struct {
	Name    string         `yaml:"name"`
	Enabled *bool          `yaml:"enabled"`
	Match   RouteMatch     `yaml:"match"`
	URL     content.Source `yaml:"url"`
	Method  string         `yaml:"method"`
	Cookies RuleSet        `yaml:"cookies"`
	Headers RuleSet        `yaml:"headers"`
	Fields  content.Mapper `yaml:"fields"`
}

type RouteMatch struct {
	Host       string `yaml:"host"`
	PathPrefix string `yaml:"pathPrefix"`
}

const (
	defaultListen       = ":8080"
	defaultMaxBodyBytes = 1 << 20
	defaultTimeout      = 10 * time.Second
	defaultMethod       = "POST"
)

// IsEnabled reports whether the route takes part in distribution. Routes are
// enabled unless disabled explicitly.
func (r Route) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// HTTPMethod returns the configured method, POST when unset.
func (r Route) HTTPMethod() string {
	if r.Method == "" {
		return defaultMethod
	}
	return r.Method
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = defaultListen
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.Dispatch.Timeout == 0 {
		c.Dispatch.Timeout = defaultTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
}

// Route returns the route named name.
func (c *Config) Route(name string) (Route, bool) {
	for _, r := range c.Routes {
		if r.Name == name {
			return r, true
		}
	}
	return Route{}, false
}

func (c *Config) BaseDir() string {
	return c.baseDir
}

func (c *Config) ResolvePath(path string) string {
	return c.resolvePath(path)
}
