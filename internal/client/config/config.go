package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/flagx"
	"github.com/dmitrijs2005/syntheticsoul/internal/logging"
)

// Config holds runtime settings for the SyntheticSoul client.
//
// Intervals and timeouts are time.Duration values; ChatURL defaults to
// "<APIBaseURL>/messages/submit" when not set by any source.
type Config struct {
	APIBaseURL          string
	ChatURL             string
	Username            string
	ConversationType    string
	DatabasePath        string
	RequestTimeout      time.Duration
	AgentPollInterval   time.Duration
	ThoughtPollInterval time.Duration
	LogLevel            string
	LogBackend          string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.ChatURL = ""
	c.Username = ""
	c.ConversationType = "dm"
	c.DatabasePath = "syntheticsoul.db"
	c.RequestTimeout = 30 * time.Second
	c.AgentPollInterval = 30 * time.Second
	c.ThoughtPollInterval = 60 * time.Second
	c.LogLevel = "warn"
	c.LogBackend = logging.BackendSlog
}

// LoadConfig builds a Config from defaults, then .env and the environment,
// then the file named by -c/-config, then args. Later sources take
// precedence over earlier ones.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	parseEnv(cfg, lookupEnv)

	if err := parseFile(cfg, flagx.ConfigPath(args)); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}

	cfg.finalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) finalize() {
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.ChatURL == "" && c.APIBaseURL != "" {
		c.ChatURL = c.APIBaseURL + "/messages/submit"
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return errors.New("api base url cannot be empty")
	}
	if c.RequestTimeout < 0 {
		return errors.New("request timeout cannot be negative")
	}
	if c.AgentPollInterval <= 0 || c.ThoughtPollInterval <= 0 {
		return errors.New("poll intervals must be > 0")
	}
	switch c.LogBackend {
	case logging.BackendSlog, logging.BackendZap:
	default:
		return fmt.Errorf("unknown log backend %q", c.LogBackend)
	}
	return nil
}
