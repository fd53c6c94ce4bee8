package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/logging"
	"golang.org/x/sync/errgroup"
)

// TelemetryService reads the agent's best-effort status endpoints.
type TelemetryService struct {
	fetch Fetcher
}

func NewTelemetryService(fetch Fetcher) *TelemetryService {
	return &TelemetryService{fetch: fetch}
}

func (t *TelemetryService) get(ctx context.Context, op, path string, v any) error {
	resp, err := t.fetch.AuthFetch(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return err
	}
	body, err := client.ReadBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return client.NewHTTPError(op, resp, body)
	}
	if err := body.Decode(v); err != nil {
		return fmt.Errorf("%s: decode: %w", op, err)
	}
	return nil
}

type agentResponse struct {
	Agent struct {
		Name        string `json:"name"`
		Identity    string `json:"identity"`
		Expression  string `json:"expression"`
		Personality struct {
			MyersBriggsDash  string        `json:"myers-briggs"`
			MyersBriggsCamel string        `json:"myersBriggs"`
			MBTI             string        `json:"mbti"`
			Matrix           models.Matrix `json:"personality_matrix"`
		} `json:"personality"`
		EmotionalStatus struct {
			Emotions   models.Matrix `json:"emotions"`
			Expression string        `json:"expression"`
		} `json:"emotional_status"`
	} `json:"agent"`
}

// Agent returns the active agent. The name is upper-cased for display.
func (t *TelemetryService) Agent(ctx context.Context) (*models.AgentStatus, error) {
	var r agentResponse
	if err := t.get(ctx, "agent", "/agents/active", &r); err != nil {
		return nil, err
	}

	a := r.Agent
	mbti := a.Personality.MyersBriggsDash
	if mbti == "" {
		mbti = a.Personality.MyersBriggsCamel
	}
	if mbti == "" {
		mbti = a.Personality.MBTI
	}
	expression := a.Expression
	if expression == "" {
		expression = a.EmotionalStatus.Expression
	}

	return &models.AgentStatus{
		Name:        strings.ToUpper(a.Name),
		Identity:    a.Identity,
		MBTI:        mbti,
		Personality: a.Personality.Matrix,
		Emotions:    a.EmotionalStatus.Emotions,
		Expression:  expression,
	}, nil
}

// LatestThought returns the agent's most recent thought, or NoThought.
func (t *TelemetryService) LatestThought(ctx context.Context) (string, error) {
	var r struct {
		LatestThought struct {
			Thought string `json:"thought"`
		} `json:"latest_thought"`
	}
	if err := t.get(ctx, "thought", "/thoughts/latest", &r); err != nil {
		return "", err
	}
	if r.LatestThought.Thought == "" {
		return models.NoThought, nil
	}
	return r.LatestThought.Thought, nil
}

func (t *TelemetryService) Version(ctx context.Context) (string, error) {
	var r struct {
		Version string `json:"version"`
	}
	if err := t.get(ctx, "version", "/meta/version", &r); err != nil {
		return "", err
	}
	return r.Version, nil
}

// Conversation returns the stored history oldest first. Lines are
// identified by their timestamp in milliseconds; duplicates are dropped.
func (t *TelemetryService) Conversation(ctx context.Context) ([]models.ChatMessage, error) {
	var r struct {
		Conversation struct {
			Messages []struct {
				Message   string `json:"message"`
				FromAgent bool   `json:"from_agent"`
				Timestamp string `json:"timestamp"`
			} `json:"messages"`
		} `json:"conversation"`
	}
	if err := t.get(ctx, "conversation", "/messages/conversation", &r); err != nil {
		return nil, err
	}

	out := make([]models.ChatMessage, 0, len(r.Conversation.Messages))
	for _, m := range r.Conversation.Messages {
		msg := models.ChatMessage{Role: models.RoleUser, Text: m.Message, Timestamp: parseTimestamp(m.Timestamp)}
		if m.FromAgent {
			msg.Role = models.RoleAssistant
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })

	seen := make(map[int64]bool, len(out))
	uniq := out[:0]
	for i, m := range out {
		m.ID = m.Timestamp.UnixMilli()
		if m.Timestamp.IsZero() {
			m.ID = int64(i)
		}
		if seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		uniq = append(uniq, m)
	}
	return uniq, nil
}

func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// TelemetryWatcher keeps the last known agent status and thought fresh.
// Failures are logged and the previous values kept.
type TelemetryWatcher struct {
	svc          *TelemetryService
	log          logging.Logger
	agentEvery   time.Duration
	thoughtEvery time.Duration
	onChange     func()

	mu      sync.RWMutex
	agent   *models.AgentStatus
	thought string
}

func NewTelemetryWatcher(svc *TelemetryService, log logging.Logger, agentEvery, thoughtEvery time.Duration) *TelemetryWatcher {
	return &TelemetryWatcher{
		svc:          svc,
		log:          log,
		agentEvery:   agentEvery,
		thoughtEvery: thoughtEvery,
		thought:      models.NoThought,
	}
}

// OnChange registers fn to run after each successful refresh. Call before
// Run.
func (w *TelemetryWatcher) OnChange(fn func()) {
	w.onChange = fn
}

func (w *TelemetryWatcher) Agent() *models.AgentStatus {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.agent
}

func (w *TelemetryWatcher) Thought() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.thought
}

// Run polls until ctx is done. It always returns nil on cancellation.
func (w *TelemetryWatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.loop(ctx, w.agentEvery, w.refreshAgent) })
	g.Go(func() error { return w.loop(ctx, w.thoughtEvery, w.refreshThought) })
	return g.Wait()
}

func (w *TelemetryWatcher) loop(ctx context.Context, every time.Duration, refresh func(context.Context)) error {
	refresh(ctx)

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refresh(ctx)
		}
	}
}

func (w *TelemetryWatcher) refreshAgent(ctx context.Context) {
	agent, err := w.svc.Agent(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn(ctx, "agent fetch failed", "error", err)
		}
		return
	}
	w.mu.Lock()
	w.agent = agent
	w.mu.Unlock()
	w.changed()
}

func (w *TelemetryWatcher) refreshThought(ctx context.Context) {
	thought, err := w.svc.LatestThought(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.log.Warn(ctx, "thought fetch failed", "error", err)
		}
		return
	}
	w.mu.Lock()
	w.thought = thought
	w.mu.Unlock()
	w.changed()
}

func (w *TelemetryWatcher) changed() {
	if w.onChange != nil {
		w.onChange()
	}
}
