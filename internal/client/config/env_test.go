package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	env := map[string]string{
		EnvBaseURL:    "https://soul.example",
		EnvChatURL:    "https://soul.example/chat",
		EnvGuestUser:  "neo",
		EnvDMType:     "group",
		EnvDB:         "/tmp/ss.db",
		EnvLogLevel:   "info",
		EnvLogBackend: "zap",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	var c Config
	c.LoadDefaults()
	parseEnv(&c, lookup)

	assert.Equal(t, "https://soul.example", c.APIBaseURL)
	assert.Equal(t, "https://soul.example/chat", c.ChatURL)
	assert.Equal(t, "neo", c.Username)
	assert.Equal(t, "group", c.ConversationType)
	assert.Equal(t, "/tmp/ss.db", c.DatabasePath)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "zap", c.LogBackend)
}

func TestParseEnv_EmptyValuesIgnored(t *testing.T) {
	lookup := func(k string) (string, bool) { return "", true }

	var c Config
	c.LoadDefaults()
	parseEnv(&c, lookup)
	assert.Equal(t, "dm", c.ConversationType)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "SYNTHETIC_SOUL_TEST_DOTENV"
	os.Unsetenv(key)
	t.Cleanup(func() { os.Unsetenv(key) })

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv(key))

	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	const key = "SYNTHETIC_SOUL_TEST_DOTENV_SET"
	t.Setenv(key, "from-env")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=from-file\n"), 0o600))

	require.NoError(t, loadDotEnv(path))
	assert.Equal(t, "from-env", os.Getenv(key))
}
