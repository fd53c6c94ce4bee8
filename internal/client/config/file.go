package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/syntheticsoul/internal/timex"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk form of Config. Absent keys leave the current
// value untouched; intervals use timex.Duration ("30s" or nanoseconds).
type fileConfig struct {
	APIBaseURL          *string         `json:"api_base_url" yaml:"api_base_url"`
	ChatURL             *string         `json:"chat_url" yaml:"chat_url"`
	Username            *string         `json:"username" yaml:"username"`
	ConversationType    *string         `json:"conversation_type" yaml:"conversation_type"`
	DatabasePath        *string         `json:"database_path" yaml:"database_path"`
	RequestTimeout      *timex.Duration `json:"request_timeout" yaml:"request_timeout"`
	AgentPollInterval   *timex.Duration `json:"agent_poll_interval" yaml:"agent_poll_interval"`
	ThoughtPollInterval *timex.Duration `json:"thought_poll_interval" yaml:"thought_poll_interval"`
	LogLevel            *string         `json:"log_level" yaml:"log_level"`
	LogBackend          *string         `json:"log_backend" yaml:"log_backend"`
}

// parseFile overlays cfg with the JSON or YAML file at path. An empty path
// is a no-op. YAML is chosen by the .yaml/.yml extension.
func parseFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &fc)
	default:
		err = json.Unmarshal(data, &fc)
	}
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	fc.apply(cfg)
	return nil
}

func (fc *fileConfig) apply(cfg *Config) {
	setString(&cfg.APIBaseURL, fc.APIBaseURL)
	setString(&cfg.ChatURL, fc.ChatURL)
	setString(&cfg.Username, fc.Username)
	setString(&cfg.ConversationType, fc.ConversationType)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.LogBackend, fc.LogBackend)

	if fc.RequestTimeout != nil {
		cfg.RequestTimeout = fc.RequestTimeout.Duration
	}
	if fc.AgentPollInterval != nil {
		cfg.AgentPollInterval = fc.AgentPollInterval.Duration
	}
	if fc.ThoughtPollInterval != nil {
		cfg.ThoughtPollInterval = fc.ThoughtPollInterval.Duration
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
