package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "Europe/Paris"
	configPathEnv   = "TUBEDIGEST_CONFIG"
	databaseDSNEnv  = "DATABASE_DSN"
	localStoreEnv   = "TUBEDIGEST_LOCAL_STORE"
	openAIKeyEnv    = "OPENAI_API_KEY"
	openAIModelEnv  = "OPENAI_MODEL"
	listenAddrEnv   = "TUBEDIGEST_LISTEN"
)

// webhookEnvs maps delivery channel names to their env override variables.
var webhookEnvs = map[string]string{
	"uploads":     "DISCORD_WEBHOOK_UPLOADS",
	"transcripts": "DISCORD_WEBHOOK_TRANSCRIPTS",
	"summaries":   "DISCORD_WEBHOOK_SUMMARIES",
	"report":      "DISCORD_WEBHOOK_REPORT",
}

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig    `yaml:"database"`
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	Fetcher   FetcherConfig     `yaml:"fetcher"`
	Poller    PollerConfig      `yaml:"poller"`
	OpenAI    OpenAIConfig      `yaml:"openai"`
	Webhooks  map[string]string `yaml:"webhooks"`
	HTTP      HTTPConfig        `yaml:"http"`
	Logging   LoggingConfig     `yaml:"logging"`
}

// DatabaseConfig describes the primary Postgres backend and the local
// SQLite fallback used when the primary is unreachable.
type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	LocalPath string `yaml:"localPath"`
}

// SchedulerConfig defines the sweep cadence and the daily report fire time.
type SchedulerConfig struct {
	SweepInterval time.Duration  `yaml:"sweepInterval"`
	ReportAt      string         `yaml:"reportAt"`
	Timezone      string         `yaml:"timezone"`
	SweepTimeout  time.Duration  `yaml:"sweepTimeout"`
	location      *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// FetcherConfig bounds transcript retrieval.
type FetcherConfig struct {
	ProviderTimeout time.Duration `yaml:"providerTimeout"`
	MaxAttempts     int           `yaml:"maxAttempts"`
	MaxChars        int           `yaml:"maxChars"`
	Languages       []string      `yaml:"languages"`
}

// PollerConfig bounds sweep parallelism and per-source backlog work.
type PollerConfig struct {
	MaxConcurrency   int `yaml:"maxConcurrency"`
	MaxItemsPerSweep int `yaml:"maxItemsPerSweep"`
}

// OpenAIConfig defines how to contact the completion API.
type OpenAIConfig struct {
	Endpoint      string `yaml:"endpoint"`
	Model         string `yaml:"model"`
	APIKey        string `yaml:"apiKey"`
	SummaryPrompt string `yaml:"summaryPrompt"`
	ReportPrompt  string `yaml:"reportPrompt"`
	ChunkSize     int    `yaml:"chunkSize"`
	ChunkOverlap  int    `yaml:"chunkOverlap"`
}

// HTTPConfig describes the manual trigger surface.
type HTTPConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// LoggingConfig controls the slog level.
type LoggingConfig struct {
	Level string `yaml:"level"`
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

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}
	if v := os.Getenv(localStoreEnv); v != "" {
		c.Database.LocalPath = v
	}
	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv(listenAddrEnv); v != "" {
		c.HTTP.ListenAddr = v
	}
	for channel, env := range webhookEnvs {
		if v := os.Getenv(env); v != "" {
			if c.Webhooks == nil {
				c.Webhooks = map[string]string{}
			}
			c.Webhooks[channel] = v
		}
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
	if override.Database.DSN != "" {
		base.Database.DSN = override.Database.DSN
	}
	if override.Database.LocalPath != "" {
		base.Database.LocalPath = override.Database.LocalPath
	}

	if override.Scheduler.SweepInterval > 0 {
		base.Scheduler.SweepInterval = override.Scheduler.SweepInterval
	}
	if override.Scheduler.ReportAt != "" {
		base.Scheduler.ReportAt = override.Scheduler.ReportAt
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.SweepTimeout > 0 {
		base.Scheduler.SweepTimeout = override.Scheduler.SweepTimeout
	}

	if override.Fetcher.ProviderTimeout > 0 {
		base.Fetcher.ProviderTimeout = override.Fetcher.ProviderTimeout
	}
	if override.Fetcher.MaxAttempts > 0 {
		base.Fetcher.MaxAttempts = override.Fetcher.MaxAttempts
	}
	if override.Fetcher.MaxChars > 0 {
		base.Fetcher.MaxChars = override.Fetcher.MaxChars
	}
	if len(override.Fetcher.Languages) > 0 {
		base.Fetcher.Languages = override.Fetcher.Languages
	}

	if override.Poller.MaxConcurrency > 0 {
		base.Poller.MaxConcurrency = override.Poller.MaxConcurrency
	}
	if override.Poller.MaxItemsPerSweep > 0 {
		base.Poller.MaxItemsPerSweep = override.Poller.MaxItemsPerSweep
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
	if override.OpenAI.SummaryPrompt != "" {
		base.OpenAI.SummaryPrompt = override.OpenAI.SummaryPrompt
	}
	if override.OpenAI.ReportPrompt != "" {
		base.OpenAI.ReportPrompt = override.OpenAI.ReportPrompt
	}
	if override.OpenAI.ChunkSize > 0 {
		base.OpenAI.ChunkSize = override.OpenAI.ChunkSize
	}
	if override.OpenAI.ChunkOverlap > 0 {
		base.OpenAI.ChunkOverlap = override.OpenAI.ChunkOverlap
	}

	if len(override.Webhooks) > 0 {
		base.Webhooks = override.Webhooks
	}

	if override.HTTP.ListenAddr != "" {
		base.HTTP.ListenAddr = override.HTTP.ListenAddr
	}
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{
			DSN:       "",
			LocalPath: "data/tubedigest.db",
		},
		Scheduler: SchedulerConfig{
			SweepInterval: 30 * time.Minute,
			ReportAt:      "18:00",
			Timezone:      defaultTimezone,
			SweepTimeout:  20 * time.Minute,
			location:      tz,
		},
		Fetcher: FetcherConfig{
			ProviderTimeout: 30 * time.Second,
			MaxAttempts:     4,
			MaxChars:        120000,
			Languages:       []string{"en"},
		},
		Poller: PollerConfig{
			MaxConcurrency:   4,
			MaxItemsPerSweep: 5,
		},
		OpenAI: OpenAIConfig{
			Endpoint:     "https://api.openai.com/v1/chat/completions",
			Model:        "gpt-4o-mini",
			APIKey:       "",
			ChunkSize:    8000,
			ChunkOverlap: 500,
		},
		Webhooks: map[string]string{},
		HTTP: HTTPConfig{
			ListenAddr: ":8085",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}
