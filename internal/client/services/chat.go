package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/syntheticsoul/internal/client/client"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
	"github.com/dmitrijs2005/syntheticsoul/internal/common"
	"github.com/dmitrijs2005/syntheticsoul/internal/logging"
)

// Poll schedule for asynchronous replies.
const (
	maxPollAttempts = 40
	pollBaseDelay   = 1200 * time.Millisecond
	pollFactor      = 1.25
	pollMaxDelay    = 8 * time.Second
)

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Session is what the chat service needs from the session manager.
type Session interface {
	Fetcher
	Identity() *models.Identity
}

// ChatConfig locates the chat endpoints.
type ChatConfig struct {
	// SubmitURL is the absolute submission endpoint.
	SubmitURL string
	// BaseURL is used to build "<base>/jobs/<id>" when the server sends no
	// Location.
	BaseURL string
	// Username overrides the identity's username in submissions.
	Username         string
	ConversationType string
}

type ChatOption func(*ChatService)

// WithSleeper replaces the timer used between polls.
func WithSleeper(s Sleeper) ChatOption {
	return func(c *ChatService) { c.sleep = s }
}

// WithClock replaces the clock used to measure reply latency.
func WithClock(now func() time.Time) ChatOption {
	return func(c *ChatService) { c.now = now }
}

// ChatService delivers messages to the agent and resolves their replies.
// Ask does not serialise callers; the front-end keeps one send in flight.
type ChatService struct {
	session Session
	cfg     ChatConfig
	log     logging.Logger
	sleep   Sleeper
	now     func() time.Time
}

func NewChatService(session Session, cfg ChatConfig, log logging.Logger, opts ...ChatOption) *ChatService {
	c := &ChatService{
		session: session,
		cfg:     cfg,
		log:     log,
		sleep:   sleep,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ask submits message and waits for the normalised reply, polling the job
// when the server answers asynchronously.
func (c *ChatService) Ask(ctx context.Context, message string) (models.AskResult, error) {
	started := c.now()

	sub, err := c.submit(ctx, message, started)
	if err != nil {
		return models.AskResult{}, err
	}

	switch v := sub.(type) {
	case models.Immediate:
		return v.Result, nil
	case models.Accepted:
		statusURL, err := c.statusURL(v)
		if err != nil {
			return models.AskResult{}, err
		}
		c.log.Debug(ctx, "reply queued", "job_id", v.JobID, "status_url", statusURL)

		p := &poller{chat: c, jobID: v.JobID, url: statusURL, started: started}
		return p.run(ctx)
	default:
		return models.AskResult{}, fmt.Errorf("unexpected submission %T", sub)
	}
}

func (c *ChatService) username() string {
	if c.cfg.Username != "" {
		return c.cfg.Username
	}
	if id := c.session.Identity(); id != nil {
		return id.Username
	}
	return ""
}

// submit posts the message and classifies the response.
func (c *ChatService) submit(ctx context.Context, message string, started time.Time) (models.Submission, error) {
	payload, err := json.Marshal(models.SubmitRequest{
		Message:  message,
		Username: c.username(),
		Type:     c.cfg.ConversationType,
	})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}

	resp, err := c.session.AuthFetch(ctx, http.MethodPost, c.cfg.SubmitURL, payload, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil, aborted(ctx.Err())
		}
		return nil, err
	}
	body, err := client.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, client.NewHTTPError("submit", resp, body)

	case resp.StatusCode == http.StatusAccepted:
		var accepted struct {
			JobID string `json:"job_id"`
		}
		_ = body.Decode(&accepted)
		if accepted.JobID == "" {
			return nil, ErrNoJobID
		}
		return models.Accepted{JobID: accepted.JobID, Location: resp.Header.Get("Location")}, nil

	default:
		var v any = body.Text
		if body.IsJSON {
			v = body.JSON
		}
		return models.Immediate{Result: normalize(v, c.now().Sub(started))}, nil
	}
}

// statusURL prefers the server's Location (resolved against the submission
// URL) and falls back to "<base>/jobs/<id>".
func (c *ChatService) statusURL(job models.Accepted) (string, error) {
	if job.Location != "" {
		loc, err := url.Parse(job.Location)
		if err != nil {
			return "", fmt.Errorf("job location %q: %w", job.Location, err)
		}
		if loc.IsAbs() {
			return loc.String(), nil
		}
		base, err := url.Parse(c.cfg.SubmitURL)
		if err != nil || !base.IsAbs() {
			return "", fmt.Errorf("resolve job location %q: %w", job.Location, ErrNoLocation)
		}
		return base.ResolveReference(loc).String(), nil
	}

	if c.cfg.BaseURL == "" {
		return "", ErrNoLocation
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/jobs/" + url.PathEscape(job.JobID), nil
}

// backoff is the wait before the next poll after attempt pending answers
// (counting from zero).
func backoff(attempt int, retryAfter time.Duration) time.Duration {
	d := time.Duration(float64(pollBaseDelay) * math.Pow(pollFactor, float64(attempt)))
	if d > pollMaxDelay {
		d = pollMaxDelay
	}
	if retryAfter > d {
		d = retryAfter
	}
	return d
}

// parseRetryAfter reads delta-seconds or an HTTP-date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		if secs >= math.MaxInt64/float64(time.Second) {
			return math.MaxInt64
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

type pollState int

const (
	pollPending pollState = iota
	pollSucceeded
	pollFailed
	pollTimedOut
	pollCancelled
)

func (s pollState) String() string {
	switch s {
	case pollPending:
		return "pending"
	case pollSucceeded:
		return "succeeded"
	case pollFailed:
		return "failed"
	case pollTimedOut:
		return "timed_out"
	case pollCancelled:
		return "cancelled"
	}
	return "unknown"
}

// poller drives one job from pending to a terminal state. Polls are strictly
// sequential.
type poller struct {
	chat    *ChatService
	jobID   string
	url     string
	started time.Time

	state   pollState
	attempt int
	result  models.AskResult
	err     error
}

func (p *poller) run(ctx context.Context) (models.AskResult, error) {
	for p.state == pollPending {
		p.step(ctx)
	}
	p.chat.log.Debug(ctx, "job done", "job_id", p.jobID, "state", p.state, "polls", p.attempt)

	if p.state == pollSucceeded {
		return p.result, nil
	}
	return models.AskResult{}, p.err
}

// step issues one poll and, while the job is still pending, waits before
// the next.
func (p *poller) step(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		p.finish(pollCancelled, aborted(err))
		return
	}

	resp, err := p.chat.session.AuthFetch(ctx, http.MethodGet, p.url, nil, nil)
	if err != nil {
		if ctx.Err() != nil {
			p.finish(pollCancelled, aborted(ctx.Err()))
		} else {
			p.finish(pollFailed, err)
		}
		return
	}
	body, err := client.ReadBody(resp)
	if err != nil {
		p.finish(pollFailed, err)
		return
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		p.finish(pollFailed, fmt.Errorf("%w: %s", ErrJobNotFound, p.jobID))
		return
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		p.finish(pollFailed, client.NewHTTPError("job status", resp, body))
		return
	}

	var job models.Job
	_ = body.Decode(&job)

	switch {
	case job.Status.Succeeded():
		p.result = normalize(decodeRaw(job.Result), p.chat.now().Sub(p.started))
		p.finish(pollSucceeded, nil)
		return
	case job.Status.Failed():
		p.finish(pollFailed, &JobFailedError{JobID: p.jobID, Message: failureMessage(job.Error)})
		return
	}

	retryAfter := parseRetryAfter(resp.Header.Get(common.RetryAfterHeader), p.chat.now())
	delay := backoff(p.attempt, retryAfter)
	p.attempt++
	if p.attempt >= maxPollAttempts {
		p.finish(pollTimedOut, fmt.Errorf("%w after %d polls", ErrPollTimeout, p.attempt))
		return
	}

	p.chat.log.Debug(ctx, "job pending", "job_id", p.jobID, "attempt", p.attempt, "delay", delay)
	if err := p.chat.sleep(ctx, delay); err != nil {
		p.finish(pollCancelled, aborted(err))
	}
}

func (p *poller) finish(state pollState, err error) {
	p.state = state
	p.err = err
}

func decodeRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

// failureMessage reads a job error given as a string or an error object.
func failureMessage(raw json.RawMessage) string {
	switch v := decodeRaw(raw).(type) {
	case string:
		return v
	case map[string]any:
		if s := client.MessageOf(map[string]any{"error": v}); s != "" {
			return s
		}
		return client.MessageOf(v)
	}
	return ""
}

// normalize turns any reply shape into an AskResult. Text comes from
// response, reply or text (or the value itself when it is a string); the
// latency from time, elapsed or latency in seconds, else measured.
func normalize(v any, measured time.Duration) models.AskResult {
	var r models.AskResult

	switch x := v.(type) {
	case string:
		r.Text = x
	case map[string]any:
		r.Text = firstString(x, "response", "reply", "text")
		r.Expression = firstString(x, "expression", "mood")
		if secs, ok := firstNumber(x, "time", "elapsed", "latency"); ok {
			r.Time = &secs
		}
	}

	if r.Time == nil {
		secs := measured.Seconds()
		r.Time = &secs
	}
	return r
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func firstNumber(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch n := m[k].(type) {
		case float64:
			return n, true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
