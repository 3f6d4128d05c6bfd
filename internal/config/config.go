package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Storage
	DBPath string `envconfig:"DB_PATH" default:"pulsetrack.db"`

	// Anthropic
	AnthropicAPIKey string `envconfig:"ANTHROPIC_API_KEY"`
	AnthropicModel  string `envconfig:"ANTHROPIC_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens       int    `envconfig:"ANTHROPIC_MAX_TOKENS" default:"2048"`

	// Update processing
	ProcessAttempts  int           `envconfig:"PROCESS_ATTEMPTS" default:"5"`
	ProcessBaseDelay time.Duration `envconfig:"PROCESS_BASE_DELAY" default:"500ms"`
	ProcessMaxDelay  time.Duration `envconfig:"PROCESS_MAX_DELAY" default:"8s"`
	AttemptTimeout   time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"60s"`

	// Risk detection: optional YAML file overriding the regression keyword set.
	RiskRulesPath string `envconfig:"RISK_RULES_PATH"`

	// API auth
	AuthMode  string `envconfig:"AUTH_MODE" default:"none"` // "none", "api-key" or "jwt"
	APIKey    string `envconfig:"API_KEY"`
	JWTSecret string `envconfig:"JWT_SECRET"`

	// API limits
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"200"`
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`

	// Retention sweep interval for alert pruning and orphan cleanup.
	RetentionInterval time.Duration `envconfig:"RETENTION_INTERVAL" default:"1h"`

	// Slack (optional — high-severity alerts are posted when configured)
	SlackBotToken string `envconfig:"SLACK_BOT_TOKEN"`
	SlackChannel  string `envconfig:"SLACK_CHANNEL" default:"#project-alerts"`

	// GitHub (optional — seeds initial context from a repository README)
	GitHubToken string `envconfig:"GITHUB_TOKEN"`
}

// SlackEnabled returns true if Slack notification is configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackChannel != ""
}

// GitHubEnabled returns true if README seeding is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubToken != ""
}

// CORSOriginList returns the parsed list of allowed origins, nil if unset.
func (c *Config) CORSOriginList() []string {
	if c.CORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, o := range parts {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.AuthMode {
	case "none":
	case "api-key":
		if c.APIKey == "" {
			return fmt.Errorf("AUTH_MODE=api-key requires API_KEY")
		}
	case "jwt":
		if c.JWTSecret == "" {
			return fmt.Errorf("AUTH_MODE=jwt requires JWT_SECRET")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q", c.AuthMode)
	}
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.ProcessAttempts < 1 {
		return fmt.Errorf("PROCESS_ATTEMPTS must be at least 1")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
