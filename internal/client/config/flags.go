package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags:
//
//	-a string   API base URL
//	-u string   chat submission URL
//	-n string   username sent with messages
//	-t string   conversation type
//	-d string   local database path
//	-i int      agent poll interval (seconds)
//	-l string   log level
//
// args is filtered with flagx.FilterArgs so flags owned by other components
// do not interfere.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-u", "-n", "-t", "-d", "-i", "-l"})

	fs := flag.NewFlagSet("syntheticsoul", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "API base URL")
	fs.StringVar(&cfg.ChatURL, "u", cfg.ChatURL, "chat submission URL")
	fs.StringVar(&cfg.Username, "n", cfg.Username, "username sent with messages")
	fs.StringVar(&cfg.ConversationType, "t", cfg.ConversationType, "conversation type")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "local database path")
	agentInterval := fs.Int("i", int(cfg.AgentPollInterval.Seconds()), "agent poll interval (in seconds)")
	fs.StringVar(&cfg.LogLevel, "l", cfg.LogLevel, "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg.AgentPollInterval = time.Duration(*agentInterval) * time.Second
	return nil
}
