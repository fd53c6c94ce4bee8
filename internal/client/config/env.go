package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables understood by the client.
const (
	EnvBaseURL    = "SYNTHETIC_SOUL_BASE_URL"
	EnvChatURL    = "SYNTHETIC_SOUL_CHAT_URL"
	EnvGuestUser  = "SYNTHETIC_SOUL_GUEST_USER"
	EnvDMType     = "SYNTHETIC_SOUL_DM_TYPE"
	EnvDB         = "SYNTHETIC_SOUL_DB"
	EnvLogLevel   = "SYNTHETIC_SOUL_LOG_LEVEL"
	EnvLogBackend = "SYNTHETIC_SOUL_LOG_BACKEND"
)

func lookupEnv(key string) (string, bool) { return os.LookupEnv(key) }

// loadDotEnv copies variables from path into the environment. Variables
// already set win; a missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// parseEnv overlays cfg with the variables lookup knows about.
func parseEnv(cfg *Config, lookup func(string) (string, bool)) {
	getEnv := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	getEnv(EnvBaseURL, &cfg.APIBaseURL)
	getEnv(EnvChatURL, &cfg.ChatURL)
	getEnv(EnvGuestUser, &cfg.Username)
	getEnv(EnvDMType, &cfg.ConversationType)
	getEnv(EnvDB, &cfg.DatabasePath)
	getEnv(EnvLogLevel, &cfg.LogLevel)
	getEnv(EnvLogBackend, &cfg.LogBackend)
}
