// Package config loads runtime configuration for the SyntheticSoul client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. A .env file in the working directory, then the environment:
//     SYNTHETIC_SOUL_BASE_URL, SYNTHETIC_SOUL_CHAT_URL,
//     SYNTHETIC_SOUL_GUEST_USER, SYNTHETIC_SOUL_DM_TYPE, SYNTHETIC_SOUL_DB,
//     SYNTHETIC_SOUL_LOG_LEVEL, SYNTHETIC_SOUL_LOG_BACKEND.
//  3. Optional JSON or YAML file selected via -c or -config.
//  4. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string   API base URL
//	-u string   chat submission URL
//	-n string   username sent with messages
//	-t string   conversation type
//	-d string   local database path
//	-i int      agent poll interval (seconds)
//	-l string   log level
//
// # File schema
//
// Intervals use timex.Duration, so values can be either strings like "30s"
// or integer nanoseconds:
//
//	{
//	  "api_base_url": "https://soul.example/api",
//	  "conversation_type": "dm",
//	  "agent_poll_interval": "30s",
//	  "thought_poll_interval": "1m",
//	  "log_backend": "zap"
//	}
package config
