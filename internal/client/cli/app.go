package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/config"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/ids"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/services"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/store"
	"github.com/dmitrijs2005/syntheticsoul/internal/logging"
)

// App is the terminal client: one session, one conversation.
type App struct {
	cfg *config.Config
	log logging.Logger

	db        *sql.DB
	api       client.Client
	session   *services.SessionManager
	chat      *services.ChatService
	telemetry *services.TelemetryService
	watcher   *services.TelemetryWatcher
	render    *Renderer

	reader *bufio.Reader
	out    io.Writer

	// interrupts derives the context of one send; Ctrl-C cancels it.
	interrupts func(ctx context.Context) (context.Context, context.CancelFunc)
	sending    atomic.Bool

	mu          sync.Mutex
	agentName   string
	version     string
	who         string
	lastThought string
	history     []models.ChatMessage
	nextID      int64

	// loaded holds the ids of stored messages already shown.
	loaded map[int64]struct{}
}

// NewApp opens the local store and builds the HTTP client and services for
// cfg. The caller must Close the App.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	db, err := store.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	repo := store.NewSQLiteRepository(db)

	api, err := client.NewHTTPClient(client.Options{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		ClientID:  ids.ClientID(ctx, repo),
		SessionID: ids.SessionID(ctx, store.NewMemoryRepository()),
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	a := newApp(cfg, log, api, repo, os.Stdin, os.Stdout)
	a.db = db
	return a, nil
}

func newApp(cfg *config.Config, log logging.Logger, api client.Client, repo store.Repository, in io.Reader, out io.Writer) *App {
	session := services.NewSessionManager(api, repo, log.With("component", "session"))
	telemetry := services.NewTelemetryService(session)

	return &App{
		cfg:     cfg,
		log:     log,
		api:     api,
		session: session,
		chat: services.NewChatService(session, services.ChatConfig{
			SubmitURL:        api.URL(cfg.ChatURL),
			BaseURL:          cfg.APIBaseURL,
			Username:         cfg.Username,
			ConversationType: cfg.ConversationType,
		}, log.With("component", "chat")),
		telemetry: telemetry,
		watcher: services.NewTelemetryWatcher(telemetry, log.With("component", "telemetry"),
			cfg.AgentPollInterval, cfg.ThoughtPollInterval),
		render: NewRenderer(out),
		reader: bufio.NewReader(in),
		out:    &syncWriter{w: out},
		interrupts: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
		agentName: agentDefault,
		loaded:    make(map[int64]struct{}),
	}
}

// Run boots the session, loads the agent and the conversation, then runs
// the REPL until the user exits or input ends.
func (a *App) Run(ctx context.Context) error {
	if err := a.session.Boot(ctx); err != nil {
		a.log.Warn(ctx, "boot", "error", err)
		a.post(models.RoleSystem, "Could not start a session: "+client.UserMessage(err))
	}
	a.mu.Lock()
	a.who = a.session.Identity().DisplayName()
	a.mu.Unlock()
	unsubscribe := a.session.Subscribe(a.onSession)
	defer unsubscribe()

	a.loadVersion(ctx)
	a.loadAgent(ctx)
	a.greet()
	_, _ = a.loadHistory(ctx)

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.watcher.OnChange(func() { a.onTelemetry(watchCtx) })
	go func() {
		defer close(done)
		_ = a.watcher.Run(watchCtx)
	}()

	runREPL(ctx, a, a.promptText, a.reader, a.out)

	cancel()
	<-done
	return nil
}

func (a *App) Close() error {
	err := a.api.Close()
	if a.db != nil {
		if dbErr := a.db.Close(); err == nil {
			err = dbErr
		}
	}
	return err
}

func (a *App) agent() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.agentName
}

func (a *App) promptText() string {
	return a.render.Prompt(a.session.Identity().DisplayName())
}

func (a *App) greet() {
	a.mu.Lock()
	version, who, agent := a.version, a.who, a.agentName
	a.mu.Unlock()

	if version == "" {
		version = "UNKNOWN"
	}
	a.post(models.RoleSystem, fmt.Sprintf("VERSION %s | YOU ARE BEING MONITORED FOR YOUR SAFETY | %s", version, who))
	a.post(models.RoleAssistant, fmt.Sprintf("WELCOME, USER. I AM %s. WHAT THOUGHT WOULD YOU LIKE TO SHARE?", agent))
}

func (a *App) loadVersion(ctx context.Context) {
	v, err := a.telemetry.Version(ctx)
	if err != nil {
		a.log.Debug(ctx, "version unavailable", "error", err)
		return
	}
	a.mu.Lock()
	a.version = v
	a.mu.Unlock()
}

func (a *App) loadAgent(ctx context.Context) {
	agent, err := a.telemetry.Agent(ctx)
	if err != nil {
		a.log.Warn(ctx, "agent fetch failed", "error", err)
		return
	}
	a.setAgent(agent)
}

func (a *App) setAgent(agent *models.AgentStatus) {
	if agent == nil || agent.Name == "" {
		return
	}
	a.mu.Lock()
	a.agentName = agent.Name
	a.mu.Unlock()
}

// loadHistory prints the stored messages not shown yet and returns how
// many there were.
func (a *App) loadHistory(ctx context.Context) (int, error) {
	msgs, err := a.telemetry.Conversation(ctx)
	if err != nil {
		a.log.Debug(ctx, "no conversation history", "error", err)
		return 0, err
	}

	agent := a.agent()
	n := 0
	for _, m := range msgs {
		if !a.markLoaded(m.ID) {
			continue
		}
		a.remember(m)
		a.println(a.render.Message(agent, m))
		n++
	}
	return n, nil
}

func (a *App) markLoaded(id int64) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.loaded[id]; ok {
		return false
	}
	a.loaded[id] = struct{}{}
	return true
}

// resumeSession starts the conversation over after the principal changed:
// a fresh greeting, then the new principal's stored messages.
func (a *App) resumeSession(ctx context.Context) {
	a.mu.Lock()
	a.loaded = make(map[int64]struct{})
	a.mu.Unlock()

	a.greet()
	_, _ = a.loadHistory(ctx)
}

func (a *App) onSession(snap services.Snapshot) {
	if snap.Loading {
		return
	}
	who := snap.Identity.DisplayName()

	a.mu.Lock()
	changed := snap.Identity != nil && who != a.who
	if snap.Identity != nil {
		a.who = who
	}
	a.mu.Unlock()

	if changed {
		a.post(models.RoleSystem, "SESSION: "+who)
	}
}

func (a *App) onTelemetry(ctx context.Context) {
	a.setAgent(a.watcher.Agent())

	thought := a.watcher.Thought()
	a.mu.Lock()
	fresh := thought != models.NoThought && thought != a.lastThought
	if fresh {
		a.lastThought = thought
	}
	a.mu.Unlock()

	if fresh && ctx.Err() == nil {
		a.println(a.render.Muted(fmt.Sprintf("%s'S LATEST THOUGHT: %s", a.agent(), thought)))
	}
}

// post records a line in the conversation and prints it.
func (a *App) post(role models.Role, text string) models.ChatMessage {
	m := models.ChatMessage{Role: role, Text: text, Timestamp: time.Now()}
	m = a.remember(m)
	a.println(a.render.Message(a.agent(), m))
	return m
}

func (a *App) remember(m models.ChatMessage) models.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	if m.ID == 0 {
		a.nextID++
		m.ID = a.nextID
	}
	a.history = append(a.history, m)
	return m
}

func (a *App) lines() []models.ChatMessage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.ChatMessage(nil), a.history...)
}

func (a *App) println(s string) {
	fmt.Fprintln(a.out, s)
}

// syncWriter serialises writes from the REPL and the telemetry watcher.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
