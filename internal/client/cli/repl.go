package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	Help(ctx context.Context) error
	Login(ctx context.Context) error
	Claim(ctx context.Context) error
	Logout(ctx context.Context) error
	WhoAmI(ctx context.Context) error
	Agent(ctx context.Context) error
	Thought(ctx context.Context) error
	Version(ctx context.Context) error
	History(ctx context.Context) error
	Send(ctx context.Context, text string) error
}

const helpText = `Type a message and press Enter to share it. Ctrl-C cancels a pending reply.

Commands:
  /login           sign in with email and password
  /claim           turn the guest session into an account
  /logout          sign out and start a new guest session
  /whoami          show the current identity
  /agent           show the agent's personality and emotions
  /thought         show the agent's latest thought
  /version         show the server version
  /history         reload the stored conversation
  /help            show this help
  /exit | /quit    leave the program`

// runREPL reads lines from reader until EOF or /exit. Lines starting with a
// slash are commands; anything else is a message for the agent.
//
// Errors returned by handlers are ignored here; handlers report them to the
// user themselves.
func runREPL(ctx context.Context, a execIface, promptFn func() string, reader *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprint(out, promptFn())

		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			fmt.Fprintln(out)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if !strings.HasPrefix(line, "/") {
			_ = a.Send(ctx, line)
			continue
		}

		cmd := strings.ToLower(strings.Fields(line)[0])
		switch cmd {
		case "/help", "/?":
			_ = a.Help(ctx)
		case "/login":
			_ = a.Login(ctx)
		case "/claim":
			_ = a.Claim(ctx)
		case "/logout":
			_ = a.Logout(ctx)
		case "/whoami":
			_ = a.WhoAmI(ctx)
		case "/agent":
			_ = a.Agent(ctx)
		case "/thought":
			_ = a.Thought(ctx)
		case "/version":
			_ = a.Version(ctx)
		case "/history":
			_ = a.History(ctx)
		case "/exit", "/quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}
	}
}
