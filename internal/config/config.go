package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone    = "UTC"
	configPathEnv      = "CONTENT_AGENT_CONFIG"
	dataRootEnv        = "DATA_ROOT"
	xAPIKeyEnv         = "X_RAPIDAPI_KEY"
	xAPIHostEnv        = "X_RAPIDAPI_HOST"
	xUsernameEnv       = "X_USERNAME"
	openRouterKeyEnv   = "OPENROUTER_API_KEY"
	openRouterModelEnv = "OPENROUTER_MODEL"
	githubTokenEnv     = "GITHUB_TOKEN"
	githubRepoEnv      = "GITHUB_REPO"
)

// Config holds high-level settings required across the application. It is
// constructed once at process start and passed explicitly to every component.
type Config struct {
	DataRoot  string          `yaml:"dataRoot"`
	XAPI      XAPIConfig      `yaml:"xApi"`
	LLM       LLMConfig       `yaml:"llm"`
	GitHub    GitHubConfig    `yaml:"github"`
	Curation  CurationConfig  `yaml:"curation"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retry     RetryConfig     `yaml:"retry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// XAPIConfig describes the X/Twitter API gateway.
type XAPIConfig struct {
	Key  string `yaml:"key"`
	Host string `yaml:"host"`
}

// LLMConfig defines how to contact the evaluation/generation model API.
type LLMConfig struct {
	Endpoint    string  `yaml:"endpoint"`
	Model       string  `yaml:"model"`
	EmbedModel  string  `yaml:"embedModel"`
	APIKey      string  `yaml:"apiKey"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"maxTokens"`
}

// GitHubConfig wires the issue-sync workflow.
type GitHubConfig struct {
	Token string `yaml:"token"`
	Repo  string `yaml:"repo"`
}

// CurationConfig bounds the evaluation stage.
type CurationConfig struct {
	MinScore     int  `yaml:"minScore"`
	TopK         int  `yaml:"topK"`
	MaxEvaluate  int  `yaml:"maxEvaluate"`
	GenerateBlog bool `yaml:"generateBlog"`
}

// IngestionConfig bounds per-source fetching.
type IngestionConfig struct {
	MaxItemsPerSource int `yaml:"maxItemsPerSource"`
}

// CacheConfig controls the optional fast index cache.
type CacheConfig struct {
	Enabled bool   `yaml:"enabled"`
	Dir     string `yaml:"dir"`
}

// MetricsConfig names the account the metrics workflow tracks. UserID is
// optional; when empty it is resolved from the username on each run.
type MetricsConfig struct {
	Username string `yaml:"username"`
	UserID   string `yaml:"userId"`
	Count    int    `yaml:"count"`
}

// SchedulerConfig defines when the content workflow runs.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// RetryConfig bounds collaborator retries. Interval defaults to zero: a
// failed call is retried immediately up to the attempt limit.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Interval time.Duration `yaml:"interval"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// CacheDir returns the cache location, defaulting under the data root.
func (c Config) CacheDir() string {
	if c.Cache.Dir != "" {
		return c.Cache.Dir
	}
	return filepath.Join(c.DataRoot, "index")
}

// Load reads an optional .env file, YAML configuration (if present), and
// applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

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

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(dataRootEnv); v != "" {
		c.DataRoot = v
	}

	if v := os.Getenv(xAPIKeyEnv); v != "" {
		c.XAPI.Key = v
	}
	if v := os.Getenv(xAPIHostEnv); v != "" {
		c.XAPI.Host = v
	}
	if v := os.Getenv(xUsernameEnv); v != "" {
		c.Metrics.Username = v
	}

	if v := os.Getenv(openRouterKeyEnv); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv(openRouterModelEnv); v != "" {
		c.LLM.Model = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv(githubRepoEnv); v != "" {
		c.GitHub.Repo = v
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
	if override.DataRoot != "" {
		base.DataRoot = override.DataRoot
	}

	if override.XAPI.Key != "" {
		base.XAPI.Key = override.XAPI.Key
	}
	if override.XAPI.Host != "" {
		base.XAPI.Host = override.XAPI.Host
	}

	if override.LLM.Endpoint != "" {
		base.LLM.Endpoint = override.LLM.Endpoint
	}
	if override.LLM.Model != "" {
		base.LLM.Model = override.LLM.Model
	}
	if override.LLM.EmbedModel != "" {
		base.LLM.EmbedModel = override.LLM.EmbedModel
	}
	if override.LLM.APIKey != "" {
		base.LLM.APIKey = override.LLM.APIKey
	}
	if override.LLM.Temperature != 0 {
		base.LLM.Temperature = override.LLM.Temperature
	}
	if override.LLM.MaxTokens != 0 {
		base.LLM.MaxTokens = override.LLM.MaxTokens
	}

	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.Repo != "" {
		base.GitHub.Repo = override.GitHub.Repo
	}

	if override.Curation.MinScore != 0 {
		base.Curation.MinScore = override.Curation.MinScore
	}
	if override.Curation.TopK != 0 {
		base.Curation.TopK = override.Curation.TopK
	}
	if override.Curation.MaxEvaluate != 0 {
		base.Curation.MaxEvaluate = override.Curation.MaxEvaluate
	}
	base.Curation.GenerateBlog = base.Curation.GenerateBlog || override.Curation.GenerateBlog

	if override.Ingestion.MaxItemsPerSource != 0 {
		base.Ingestion.MaxItemsPerSource = override.Ingestion.MaxItemsPerSource
	}

	base.Cache.Enabled = base.Cache.Enabled || override.Cache.Enabled
	if override.Cache.Dir != "" {
		base.Cache.Dir = override.Cache.Dir
	}

	if override.Metrics.Username != "" {
		base.Metrics.Username = override.Metrics.Username
	}
	if override.Metrics.UserID != "" {
		base.Metrics.UserID = override.Metrics.UserID
	}
	if override.Metrics.Count != 0 {
		base.Metrics.Count = override.Metrics.Count
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Retry.Attempts != 0 {
		base.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Interval != 0 {
		base.Retry.Interval = override.Retry.Interval
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		DataRoot: "data",
		XAPI: XAPIConfig{
			Host: "twitter241.p.rapidapi.com",
		},
		LLM: LLMConfig{
			Endpoint:    "https://openrouter.ai/api/v1",
			Model:       "anthropic/claude-3.5-sonnet",
			EmbedModel:  "openai/text-embedding-3-small",
			Temperature: 0.3,
			MaxTokens:   2000,
		},
		Curation: CurationConfig{
			MinScore:     60,
			TopK:         10,
			MaxEvaluate:  50,
			GenerateBlog: true,
		},
		Ingestion: IngestionConfig{MaxItemsPerSource: 20},
		Cache:     CacheConfig{Enabled: true},
		Metrics:   MetricsConfig{Count: 20},
		Scheduler: SchedulerConfig{CronExpression: "0 8 * * *", Timezone: defaultTimezone, location: tz},
		Retry:     RetryConfig{Attempts: 3, Interval: 0},
		Logging:   LoggingConfig{Level: "info"},
	}
}
