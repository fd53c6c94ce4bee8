// Package cli provides the interactive SyntheticSoul terminal client.
//
// It wires configuration, the local store, the HTTP client and the services
// into an App, boots a session, starts the telemetry watcher and runs a REPL.
// Plain lines are sent to the agent; lines starting with '/' are commands:
//
//	/help              show available commands
//	/login             sign in with email and password
//	/claim             turn the guest session into an account
//	/logout            end the session and start a new guest session
//	/whoami            show the current identity
//	/agent             show the agent's personality and emotions
//	/thought           show the agent's latest thought
//	/version           show the API version
//	/history           reload the conversation from the server
//	/exit | /quit      leave the program
//
// Ctrl-C while a message is in flight cancels it.
package cli
