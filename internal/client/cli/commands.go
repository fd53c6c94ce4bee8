package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/services"
	"github.com/dmitrijs2005/syntheticsoul/internal/common"
)

var errSendPending = errors.New("a reply is still pending")

func (a *App) Help(ctx context.Context) error {
	a.println(helpText)
	return nil
}

// Send shares text with the agent and prints the reply. Failures become
// conversation lines; the conversation always continues.
func (a *App) Send(ctx context.Context, text string) error {
	if !a.sending.CompareAndSwap(false, true) {
		a.println(a.render.Muted(errSendPending.Error()))
		return errSendPending
	}
	defer a.sending.Store(false)

	a.remember(models.ChatMessage{Role: models.RoleUser, Text: text, Timestamp: time.Now()})

	askCtx, stop := a.interrupts(ctx)
	defer stop()

	agent := a.agent()
	a.println(a.render.Muted(agent + " is thinking... (Ctrl-C to cancel)"))

	res, err := a.chat.Ask(askCtx, text)
	if err != nil {
		a.log.Warn(ctx, "send failed", "error", err)
		a.post(models.RoleAssistant, fmt.Sprintf("%s %s THOUGHT FUNCTION FAILED. PLEASE CHECK SERVER.", errorPrefix, agent))
		a.post(models.RoleSystem, describeError(err))
		return err
	}

	if strings.TrimSpace(res.Text) == "" {
		a.post(models.RoleSystem, agent+" has chosen to ignore your correspondence.")
		return nil
	}
	a.post(models.RoleAssistant, res.Text)
	if l := a.render.Latency(res); l != "" {
		a.println(l)
	}
	return nil
}

// describeError explains a failed send in one line.
func describeError(err error) string {
	var jobErr *services.JobFailedError
	var httpErr *client.HTTPError

	switch {
	case errors.Is(err, services.ErrPollTimeout):
		return "Timed out waiting for the reply."
	case errors.Is(err, services.ErrAborted):
		return "Request cancelled."
	case errors.As(err, &jobErr):
		if jobErr.Message != "" {
			return "Job failed: " + jobErr.Message
		}
		return "Job failed."
	case errors.Is(err, services.ErrJobNotFound):
		return "The reply job no longer exists."
	case errors.Is(err, services.ErrNoJobID):
		return "The server queued the message without a job id."
	case errors.Is(err, services.ErrNoLocation):
		return "The server gave no way to follow the reply job."
	case errors.Is(err, client.ErrUnavailable):
		return "Server unavailable."
	case errors.As(err, &httpErr):
		if httpErr.Message != "" {
			return fmt.Sprintf("HTTP %d: %s", httpErr.StatusCode, httpErr.Message)
		}
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}
	return err.Error()
}

func (a *App) Login(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Login(ctx, email, password); err != nil {
		a.println(a.render.errorLine.Render("Login failed: " + client.UserMessage(err)))
		return err
	}
	a.println(a.render.Muted("Signed in as " + a.session.Identity().DisplayName()))
	a.resumeSession(ctx)
	return nil
}

func (a *App) Claim(ctx context.Context) error {
	email, err := GetSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	username, err := GetSimpleText(a.reader, "Choose a username", a.out)
	if err != nil {
		return err
	}
	password, err := GetPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.session.Claim(ctx, email, username, password); err != nil {
		a.println(a.render.errorLine.Render("Claim failed: " + client.UserMessage(err)))
		return err
	}
	a.println(a.render.Muted("Account claimed: " + a.session.Identity().DisplayName()))
	a.resumeSession(ctx)
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		a.println(a.render.errorLine.Render("Logout: " + client.UserMessage(err)))
		return err
	}
	a.println(a.render.Muted("Signed out. A new guest session has started."))
	a.resumeSession(ctx)
	return nil
}

func (a *App) WhoAmI(ctx context.Context) error {
	snap := a.session.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)", snap.Identity.DisplayName(), snap.State)
	if id := snap.Identity; id != nil {
		if id.ID != "" {
			fmt.Fprintf(&b, "\nid:      %s", id.ID)
		}
		if id.Email != nil && *id.Email != "" {
			fmt.Fprintf(&b, "\nemail:   %s", *id.Email)
		}
	}
	if !snap.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, "\nexpires: %s", snap.ExpiresAt.Local().Format(time.RFC1123))
	}
	a.println(b.String())
	return nil
}

// Agent prints a fresh agent panel, falling back to the last polled one.
func (a *App) Agent(ctx context.Context) error {
	agent, err := a.telemetry.Agent(ctx)
	if err != nil {
		a.log.Debug(ctx, "agent fetch failed", "error", err)
		agent = a.watcher.Agent()
	}
	a.setAgent(agent)
	a.println(a.render.AgentCard(agent))
	return nil
}

func (a *App) Thought(ctx context.Context) error {
	thought, err := a.telemetry.LatestThought(ctx)
	if err != nil {
		a.log.Debug(ctx, "thought fetch failed", "error", err)
		thought = a.watcher.Thought()
	}
	a.println(a.render.Muted(a.agent() + " IS THINKING: ") + thought)
	return nil
}

func (a *App) Version(ctx context.Context) error {
	v, err := a.telemetry.Version(ctx)
	if err != nil {
		a.println(a.render.errorLine.Render("Version unavailable: " + client.UserMessage(err)))
		return err
	}
	a.mu.Lock()
	a.version = v
	a.mu.Unlock()
	a.println("VERSION " + v)
	return nil
}

func (a *App) History(ctx context.Context) error {
	n, err := a.loadHistory(ctx)
	switch {
	case err != nil:
		a.println(a.render.Muted("No stored conversation."))
	case n == 0:
		a.println(a.render.Muted("No new messages."))
	}
	return nil
}
