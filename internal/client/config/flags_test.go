package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected *Config
		name     string
		args     []string
		wantErr  bool
	}{
		{
			name: "all flags",
			args: []string{"-a", "https://soul.example", "-u", "https://soul.example/chat", "-n", "neo", "-t", "group", "-d", "x.db", "-i", "10", "-l", "debug"},
			expected: &Config{
				APIBaseURL:        "https://soul.example",
				ChatURL:           "https://soul.example/chat",
				Username:          "neo",
				ConversationType:  "group",
				DatabasePath:      "x.db",
				AgentPollInterval: 10 * time.Second,
				LogLevel:          "debug",
			},
		},
		{
			name:     "unknown flags are ignored",
			args:     []string{"-c", "cfg.json", "-x", "-n=neo"},
			expected: &Config{Username: "neo"},
		},
		{
			name:    "incorrect poll interval",
			args:    []string{"-i", "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
