// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/ecom-product-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/ecom-product-crawler/internal/storage/postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Crawler CrawlerConfig `mapstructure:"crawler"`
	Browser BrowserConfig `mapstructure:"browser"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// CrawlerConfig governs the crawl loop.
type CrawlerConfig struct {
	MaxConcurrency       int           `mapstructure:"max_concurrency"`
	BaseDelay            time.Duration `mapstructure:"base_delay"`
	MaxRetries           int           `mapstructure:"max_retries"`
	RetryBase            time.Duration `mapstructure:"retry_base"`
	BatchSize            int           `mapstructure:"batch_size"`
	FalsePositiveRate    float64       `mapstructure:"false_positive_rate"`
	DedupInitialCapacity uint          `mapstructure:"dedup_initial_capacity"`
	MaxPages             int           `mapstructure:"max_pages"`
	DenyDomains          []string      `mapstructure:"deny_domains"`
	UserAgents           []string      `mapstructure:"user_agents"`
}

// BrowserConfig configures the headless rendering path and its pool.
type BrowserConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	MaxInstances      int           `mapstructure:"max_instances"`
	Headless          bool          `mapstructure:"headless"`
	ExecPath          string        `mapstructure:"exec_path"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	NavigationStep    time.Duration `mapstructure:"navigation_step"`
	WaitTimeout       time.Duration `mapstructure:"wait_timeout"`
	WaitStep          time.Duration `mapstructure:"wait_step"`
	BlockResources    bool          `mapstructure:"block_resources"`
	Stealth           bool          `mapstructure:"stealth"`
	ViewportWidth     int           `mapstructure:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height"`
	EscalateSPAShells bool          `mapstructure:"escalate_spa_shells"`
}

// HTTPConfig configures the plain HTTP path.
type HTTPConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	RespectRobots   bool          `mapstructure:"respect_robots"`
	MinContentBytes int           `mapstructure:"min_content_bytes"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// LoggingConfig toggles zap development features and the level floor.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// MetricsConfig toggles the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 30*time.Minute)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("crawler.max_concurrency", 100)
	v.SetDefault("crawler.base_delay", time.Second)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.retry_base", time.Second)
	v.SetDefault("crawler.batch_size", 10)
	v.SetDefault("crawler.false_positive_rate", 0.001)
	v.SetDefault("crawler.dedup_initial_capacity", 100000)
	v.SetDefault("crawler.max_pages", 0)
	v.SetDefault("crawler.deny_domains", []string{})
	v.SetDefault("crawler.user_agents", headless.DefaultUserAgents)
	v.SetDefault("browser.enabled", true)
	v.SetDefault("browser.max_instances", 20)
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.navigation_timeout", 30*time.Second)
	v.SetDefault("browser.navigation_step", 10*time.Second)
	v.SetDefault("browser.wait_timeout", 15*time.Second)
	v.SetDefault("browser.wait_step", 5*time.Second)
	v.SetDefault("browser.block_resources", true)
	v.SetDefault("browser.stealth", true)
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.escalate_spa_shells", false)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.min_content_bytes", 2048)
	v.SetDefault("db.enabled", true)
	v.SetDefault("db.table", postgres.DefaultTable)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics.enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Crawler.MaxConcurrency <= 0 {
		return fmt.Errorf("crawler.max_concurrency must be > 0")
	}
	if c.Crawler.BaseDelay < 0 {
		return fmt.Errorf("crawler.base_delay must be >= 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return fmt.Errorf("crawler.max_retries must be > 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if c.Crawler.FalsePositiveRate <= 0 || c.Crawler.FalsePositiveRate >= 1 {
		return fmt.Errorf("crawler.false_positive_rate must be in (0,1)")
	}
	if c.Crawler.DedupInitialCapacity == 0 {
		return fmt.Errorf("crawler.dedup_initial_capacity must be > 0")
	}
	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("crawler.max_pages must be >= 0")
	}
	if c.Browser.Enabled && c.Browser.MaxInstances <= 0 {
		return fmt.Errorf("browser.max_instances must be > 0 when the browser is enabled")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.DB.Enabled && !postgres.ValidTableName(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid identifier", c.DB.Table)
	}
	return nil
}
