package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Search    SearchConfig    `toml:"search"`
	Fetcher   FetcherConfig   `toml:"fetcher"`
	Browser   BrowserConfig   `toml:"browser"`
	Crawler   CrawlerConfig   `toml:"crawler"`
	Eviction  EvictionConfig  `toml:"eviction"`
	Proxy     ProxyConfig     `toml:"proxy"`
	Logging   LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StorageConfig selects the index layout. AgentID switches the store into
// agent mode: a per-agent writable tier plus the shared index read-only.
type StorageConfig struct {
	IndexDir   string `toml:"index_dir"`   // Shared/server index directory
	AgentID    string `toml:"agent_id"`    // Non-empty enables agent mode
	AgentsDir  string `toml:"agents_dir"`  // Root for per-agent tiers
	MaxEntries int    `toml:"max_entries"` // Cap before the eviction shed kicks in
}

type EmbeddingConfig struct {
	Provider  string `toml:"provider"`  // "local" (default) or "gemini"
	Dimension int    `toml:"dimension"` // Vector dimensionality (default 384)
	APIKey    string `toml:"api_key"`   // API providers only
	Model     string `toml:"model"`     // API providers only
}

type SearchConfig struct {
	Provider         string  `toml:"provider"`           // "scraping" (default) or "brave"
	CacheThreshold   float64 `toml:"cache_threshold"`    // Semantic cache hit threshold
	BraveAPIKey      string  `toml:"brave_api_key"`
	RotateEvery      int     `toml:"rotate_every"`       // Proxy stream rotation period in requests
	RetryOnEmpty     bool    `toml:"retry_on_empty"`     // Rotate and retry once on zero results
	RateLimit        string  `toml:"rate_limit"`         // Min interval between provider calls, e.g. "1s"
	RequestTimeout   string  `toml:"request_timeout"`    // Provider HTTP timeout
	WriteBackEnabled bool    `toml:"write_back_enabled"` // Cache live results
}

type FetcherConfig struct {
	UserAgent       string        `toml:"user_agent"`
	MobileUserAgent string        `toml:"mobile_user_agent"`
	RequestTimeout  time.Duration `toml:"request_timeout"`
	MaxBodySize     int64         `toml:"max_body_size"`
	Chain           []string      `toml:"chain"`        // Fallback chain order
	DomainRules     []DomainRule  `toml:"domain_rules"` // Checked in order, first match wins
}

// DomainRule pins URLs matching a glob pattern to one fetcher. `*` matches
// within a path segment, `**` matches across segments, `.` is literal.
type DomainRule struct {
	Pattern string `toml:"pattern"`
	Fetcher string `toml:"fetcher"`
}

type BrowserConfig struct {
	ExecPath     string        `toml:"exec_path"`     // Explicit browser binary; auto-detected when empty
	PoolSize     int           `toml:"pool_size"`     // Max pooled browser instances
	Headless     bool          `toml:"headless"`
	NoSandbox    bool          `toml:"no_sandbox"`
	AcquireWait  time.Duration `toml:"acquire_wait"`  // Max wait for a pooled browser
	ProxyServer  string        `toml:"proxy_server"`  // Single --proxy-server argument
	StealthExtra bool          `toml:"stealth_extra"` // Inject the full stealth script
}

type CrawlerConfig struct {
	MaxConcurrency int           `toml:"max_concurrency"`
	RateLimitMs    int           `toml:"rate_limit_ms"`
	TaskTimeout    time.Duration `toml:"task_timeout"`
	MaxURLs        int           `toml:"max_urls"`
	AutoChunk      bool          `toml:"auto_chunk"`
	MapTimeout     time.Duration `toml:"map_timeout"` // Short per-page timeout for BFS mapping
}

type EvictionConfig struct {
	Schedule       string `toml:"schedule"`         // Cron expression (default hourly)
	SearchTTL      string `toml:"search_ttl"`       // search_result TTL (default "24h")
	QueryCacheTTL  string `toml:"query_cache_ttl"`  // query_cache TTL (default "6h")
	CrawlChunkTTL  string `toml:"crawl_chunk_ttl"`  // crawl_chunk TTL (default "168h")
	RunOnStartup   bool   `toml:"run_on_startup"`
	DisableSweeper bool   `toml:"disable_sweeper"`  // One-shot commands skip the scheduler
}

type ProxyConfig struct {
	Type    string `toml:"type"`    // "none", "http", "socks4", "socks5"
	Address string `toml:"address"` // host:port
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file", "stderr"
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters live here; only user-facing settings belong in websearch.toml.
func NewDefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".websearch")

	return &Config{
		Server: ServerConfig{
			Port: 8181,
			Host: "localhost",
		},
		Storage: StorageConfig{
			IndexDir:   filepath.Join(base, "index"),
			AgentsDir:  filepath.Join(base, "agents"),
			MaxEntries: 100000,
		},
		Embedding: EmbeddingConfig{
			Provider:  "local",
			Dimension: 384,
		},
		Search: SearchConfig{
			Provider:         "scraping",
			CacheThreshold:   0.92,
			RotateEvery:      10,
			RetryOnEmpty:     true,
			RateLimit:        "1s",
			RequestTimeout:   "15s",
			WriteBackEnabled: true,
		},
		Fetcher: FetcherConfig{
			UserAgent:       "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			MobileUserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
			RequestTimeout:  30 * time.Second,
			MaxBodySize:     10 * 1024 * 1024,
			Chain:           []string{"static", "dynamic", "api"},
		},
		Browser: BrowserConfig{
			PoolSize:    2,
			Headless:    true,
			NoSandbox:   false,
			AcquireWait: 30 * time.Second,
		},
		Crawler: CrawlerConfig{
			MaxConcurrency: 4,
			RateLimitMs:    500,
			TaskTimeout:    60 * time.Second,
			MaxURLs:        100,
			AutoChunk:      true,
			MapTimeout:     10 * time.Second,
		},
		Eviction: EvictionConfig{
			Schedule:      "@hourly",
			SearchTTL:     "24h",
			QueryCacheTTL: "6h",
			CrawlChunkTTL: "168h",
		},
		Proxy: ProxyConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadFromFile loads configuration from a TOML file over the defaults and
// then applies environment overrides. A missing path is not an error; the
// defaults stand.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnvOverrides(config)
				return config, nil
			}
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// DiscoverConfigPath returns websearch.toml from the working directory when
// present, otherwise the empty string.
func DiscoverConfigPath() string {
	if _, err := os.Stat("websearch.toml"); err == nil {
		return "websearch.toml"
	}
	return ""
}

// applyEnvOverrides layers environment variables over file values.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("WEBSEARCH_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("WEBSEARCH_INDEX_DIR"); v != "" {
		config.Storage.IndexDir = v
	}
	if v := os.Getenv("WEBSEARCH_AGENT_ID"); v != "" {
		config.Storage.AgentID = v
	}
	if v := os.Getenv("WEBSEARCH_EMBEDDING_PROVIDER"); v != "" {
		config.Embedding.Provider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Embedding.APIKey == "" {
		config.Embedding.APIKey = v
	}
	if v := os.Getenv("WEBSEARCH_SEARCH_PROVIDER"); v != "" {
		config.Search.Provider = v
	}
	if v := os.Getenv("BRAVE_API_KEY"); v != "" && config.Search.BraveAPIKey == "" {
		config.Search.BraveAPIKey = v
	}
	if v := os.Getenv("WEBSEARCH_PROXY"); v != "" {
		config.Proxy.Type = "socks5"
		config.Proxy.Address = v
	}
	if v := os.Getenv("WEBSEARCH_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}

// ApplyFlagOverrides applies command-line values; they take precedence over
// file and environment.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// AgentMode reports whether the store should run with a per-agent writable
// tier plus the shared read-only index.
func (c *Config) AgentMode() bool {
	return c.Storage.AgentID != ""
}

// AgentIndexDir returns the writable tier directory for the configured
// agent.
func (c *Config) AgentIndexDir() string {
	return filepath.Join(c.Storage.AgentsDir, c.Storage.AgentID)
}
