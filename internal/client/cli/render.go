package cli

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dmitrijs2005/syntheticsoul/internal/client/models"
)

// Terminal palette.
var (
	colorNeon   = lipgloss.Color("#00FFB4")
	colorCyan   = lipgloss.Color("#7DF9FF")
	colorAmber  = lipgloss.Color("#FFD166")
	colorDanger = lipgloss.Color("#FF4D6D")
	colorMuted  = lipgloss.Color("#5C6B73")
	colorBorder = lipgloss.Color("#1E5F4F")
)

const (
	barWidth     = 20
	errorPrefix  = "ERROR:"
	agentDefault = "AGENT"
)

// Renderer formats conversation lines and panels for one output. Colours are
// dropped automatically when the output is not a terminal.
type Renderer struct {
	user      lipgloss.Style
	assistant lipgloss.Style
	system    lipgloss.Style
	errorLine lipgloss.Style
	prompt    lipgloss.Style
	muted     lipgloss.Style
	title     lipgloss.Style
	card      lipgloss.Style
}

func NewRenderer(w io.Writer) *Renderer {
	r := lipgloss.NewRenderer(w)
	return &Renderer{
		user:      r.NewStyle().Foreground(colorCyan),
		assistant: r.NewStyle().Foreground(colorNeon),
		system:    r.NewStyle().Foreground(colorAmber).Italic(true),
		errorLine: r.NewStyle().Foreground(colorDanger).Bold(true),
		prompt:    r.NewStyle().Foreground(colorNeon).Bold(true),
		muted:     r.NewStyle().Foreground(colorMuted),
		title:     r.NewStyle().Foreground(colorNeon).Bold(true).Underline(true),
		card:      r.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
	}
}

// Message renders one conversation line.
func (r *Renderer) Message(agent string, m models.ChatMessage) string {
	switch m.Role {
	case models.RoleUser:
		return r.user.Render("YOU: " + m.Text)
	case models.RoleSystem:
		return r.system.Render("* " + m.Text)
	default:
		if strings.HasPrefix(m.Text, errorPrefix) {
			return r.errorLine.Render(m.Text)
		}
		return r.assistant.Render(agent + ": " + m.Text)
	}
}

// Prompt renders the input prompt, e.g. "[@NEO] > ".
func (r *Renderer) Prompt(who string) string {
	return r.prompt.Render("["+who+"]") + " > "
}

func (r *Renderer) Muted(s string) string {
	return r.muted.Render(s)
}

// Latency renders a reply's latency and mood, if known.
func (r *Renderer) Latency(res models.AskResult) string {
	var parts []string
	if res.Time != nil {
		parts = append(parts, fmt.Sprintf("%.2fs", *res.Time))
	}
	if res.Expression != "" {
		parts = append(parts, "mood: "+res.Expression)
	}
	if len(parts) == 0 {
		return ""
	}
	return r.muted.Render("(" + strings.Join(parts, ", ") + ")")
}

// Bar renders pct (0..100) as a fixed-width gauge.
func Bar(pct float64) string {
	pct = math.Max(0, math.Min(100, pct))
	filled := int(math.Round(pct / 100 * float64(barWidth)))
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled) + fmt.Sprintf(" %3.0f%%", pct)
}

// AgentCard renders the agent telemetry panel.
func (r *Renderer) AgentCard(a *models.AgentStatus) string {
	if a == nil {
		return r.system.Render("* Agent status unavailable.")
	}

	var b strings.Builder
	header := a.Name
	if a.MBTI != "" {
		header += " · " + a.MBTI
	}
	b.WriteString(r.title.Render(header))
	if a.Identity != "" {
		b.WriteString("\n" + a.Identity)
	}
	if a.Expression != "" {
		b.WriteString("\n" + r.muted.Render("expression: "+a.Expression))
	}
	writeMatrix(&b, r, "PERSONALITY", a.Personality)
	writeMatrix(&b, r, "EMOTIONS", a.Emotions)

	return r.card.Render(b.String())
}

func writeMatrix(b *strings.Builder, r *Renderer, title string, m models.Matrix) {
	if len(m) == 0 {
		return
	}

	names := make([]string, 0, len(m))
	width := 0
	for name := range m {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	b.WriteString("\n\n" + r.muted.Render(title))
	for _, name := range names {
		fmt.Fprintf(b, "\n%-*s %s", width, name, Bar(m[name].Percent()))
	}
}
