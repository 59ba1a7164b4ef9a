// Package config loads application configuration from a YAML file with
// environment-variable overrides. Required credentials are validated at
// startup so a misconfigured deployment fails before any side effects.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the outreach agent.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Bedrock   BedrockConfig   `yaml:"bedrock"`
	SES       SESConfig       `yaml:"ses"`
	Gmail     GmailConfig     `yaml:"gmail"`
	Scorer    ScorerConfig    `yaml:"scorer"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Qualifier QualifierConfig `yaml:"qualifier"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Sender    SenderConfig    `yaml:"sender"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GetHost returns the bind host, defaulting to all interfaces.
func (s ServerConfig) GetHost() string {
	if s.Host == "" {
		return "0.0.0.0"
	}
	return s.Host
}

// DatabaseConfig holds the Postgres connection settings.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig holds the optional Redis settings (dispatcher lock).
type RedisConfig struct {
	URL string `yaml:"url"`
}

// BedrockConfig holds the text-generation collaborator settings.
type BedrockConfig struct {
	Region  string `yaml:"region"`
	ModelID string `yaml:"model_id"`
}

// SESConfig holds AWS SES credentials for the outbound transport.
type SESConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
}

// GmailConfig holds OAuth credentials for the mailbox collaborator.
// When enabled, Gmail is used for both threaded sends and reply polling.
type GmailConfig struct {
	Enabled      bool   `yaml:"enabled"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	SenderEmail  string `yaml:"sender_email"`
	SenderName   string `yaml:"sender_name"`
}

// ScorerConfig holds the optional draft self-assessment service settings.
type ScorerConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// DispatchConfig holds the safety limits for the dispatcher.
type DispatchConfig struct {
	Secret              string `yaml:"secret"`
	DailySendLimit      int    `yaml:"daily_send_limit"`
	MinSendIntervalSecs int    `yaml:"min_send_interval_seconds"`
}

// MinSendInterval returns the pacing delay between consecutive sends.
func (d DispatchConfig) MinSendInterval() time.Duration {
	return time.Duration(d.MinSendIntervalSecs) * time.Second
}

// QualifierConfig holds the ICP scoring settings.
type QualifierConfig struct {
	ICPScoreThreshold int `yaml:"icp_score_threshold"`
}

// DiscoveryConfig holds crawl politeness and validation settings.
type DiscoveryConfig struct {
	UserAgent        string   `yaml:"user_agent"`
	MaxDepth         int      `yaml:"max_depth"`
	MaxLinksPerPage  int      `yaml:"max_links_per_page"`
	ConcurrentFetch  int      `yaml:"concurrent_fetch"`
	FetchTimeoutSecs int      `yaml:"fetch_timeout_seconds"`
	DenylistDomains  []string `yaml:"denylist_domains"`
}

// SenderConfig holds identity fields stamped on outbound messages.
type SenderConfig struct {
	FromName  string `yaml:"from_name"`
	FromEmail string `yaml:"from_email"`
	Product   string `yaml:"product"`
}

// Load reads configuration from a YAML file. A missing file yields defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromEnv loads the YAML config and applies environment overrides.
// A .env file is loaded first if present.
func LoadFromEnv(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DISPATCH_SECRET"); v != "" {
		cfg.Dispatch.Secret = v
	}
	if v := os.Getenv("DAILY_SEND_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.DailySendLimit = n
		}
	}
	if v := os.Getenv("MIN_SEND_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dispatch.MinSendIntervalSecs = n
		}
	}
	if v := os.Getenv("ICP_SCORE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Qualifier.ICPScoreThreshold = n
		}
	}
	if v := os.Getenv("BEDROCK_REGION"); v != "" {
		cfg.Bedrock.Region = v
	}
	if v := os.Getenv("BEDROCK_MODEL_ID"); v != "" {
		cfg.Bedrock.ModelID = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.SES.AccessKey = v
		cfg.SES.Enabled = true
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.SES.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.SES.Region = v
	}
	if v := os.Getenv("GMAIL_CLIENT_ID"); v != "" {
		cfg.Gmail.ClientID = v
		cfg.Gmail.Enabled = true
	}
	if v := os.Getenv("GMAIL_CLIENT_SECRET"); v != "" {
		cfg.Gmail.ClientSecret = v
	}
	if v := os.Getenv("GMAIL_REFRESH_TOKEN"); v != "" {
		cfg.Gmail.RefreshToken = v
	}
	if v := os.Getenv("SENDER_EMAIL"); v != "" {
		cfg.Gmail.SenderEmail = v
		cfg.Sender.FromEmail = v
	}
	if v := os.Getenv("SENDER_NAME"); v != "" {
		cfg.Gmail.SenderName = v
		cfg.Sender.FromName = v
	}
	if v := os.Getenv("SCORER_BASE_URL"); v != "" {
		cfg.Scorer.BaseURL = v
		cfg.Scorer.Enabled = true
	}
	if v := os.Getenv("SCORER_API_KEY"); v != "" {
		cfg.Scorer.APIKey = v
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Dispatch.DailySendLimit == 0 {
		c.Dispatch.DailySendLimit = 20
	}
	if c.Dispatch.MinSendIntervalSecs == 0 {
		c.Dispatch.MinSendIntervalSecs = 60
	}
	if c.Qualifier.ICPScoreThreshold == 0 {
		c.Qualifier.ICPScoreThreshold = 40
	}
	if c.Bedrock.Region == "" {
		c.Bedrock.Region = "us-east-1"
	}
	if c.Bedrock.ModelID == "" {
		c.Bedrock.ModelID = "anthropic.claude-3-sonnet-20240229-v1:0"
	}
	if c.Discovery.UserAgent == "" {
		c.Discovery.UserAgent = "outreach-discovery/1.0"
	}
	if c.Discovery.MaxDepth == 0 {
		c.Discovery.MaxDepth = 2
	}
	if c.Discovery.MaxLinksPerPage == 0 {
		c.Discovery.MaxLinksPerPage = 20
	}
	if c.Discovery.ConcurrentFetch == 0 {
		c.Discovery.ConcurrentFetch = 3
	}
	if c.Discovery.FetchTimeoutSecs == 0 {
		c.Discovery.FetchTimeoutSecs = 15
	}
}

// Validate fails fast on missing required settings. Called once at startup
// before anything with side effects runs.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url (DATABASE_URL) is required")
	}
	if c.Dispatch.Secret == "" {
		return fmt.Errorf("dispatch.secret (DISPATCH_SECRET) is required")
	}
	if c.Dispatch.DailySendLimit < 0 {
		return fmt.Errorf("dispatch.daily_send_limit must be >= 0")
	}
	if c.Dispatch.MinSendIntervalSecs < 0 {
		return fmt.Errorf("dispatch.min_send_interval_seconds must be >= 0")
	}
	if !c.Gmail.Enabled && !c.SES.Enabled {
		return fmt.Errorf("at least one mail transport (gmail or ses) must be configured")
	}
	if c.Gmail.Enabled {
		if c.Gmail.ClientID == "" || c.Gmail.ClientSecret == "" || c.Gmail.RefreshToken == "" {
			return fmt.Errorf("gmail transport enabled but client_id/client_secret/refresh_token incomplete")
		}
		if c.Gmail.SenderEmail == "" {
			return fmt.Errorf("gmail transport requires sender_email")
		}
	}
	if c.SES.Enabled && (c.SES.AccessKey == "" || c.SES.SecretKey == "" || c.SES.Region == "") {
		return fmt.Errorf("ses transport enabled but access_key/secret_key/region incomplete")
	}
	return nil
}
