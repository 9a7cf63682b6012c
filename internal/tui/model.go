// Package tui is a terminal chat client for the X-me API.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aktraiser/X-me/internal/client"
	"github.com/aktraiser/X-me/internal/domain"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ChatPort is the subset of the API client used by the model
type ChatPort interface {
	Stream(ctx context.Context, req domain.ChatRequest, handler client.EventHandler) (*client.StreamInfo, error)
}

type turn struct {
	question    string
	answer      strings.Builder
	sources     []domain.Source
	suggestions []string
	experts     []domain.Expert
	err         string
}

type eventMsg struct{ event client.Event }

type doneMsg struct {
	info *client.StreamInfo
	err  error
}

// Model is the Bubble Tea model of the chat client
type Model struct {
	chat     ChatPort
	input    textinput.Model
	viewport viewport.Model
	ready    bool

	chatID    string
	focusMode string
	mode      string
	sector    *domain.SectorSelection

	turns     []*turn
	streaming bool
	events    chan tea.Msg
	cancel    context.CancelFunc
	status    string
}

// New creates the model
func New(chat ChatPort, focusMode, mode string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Posez votre question (/help pour les commandes)"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		chat:      chat,
		input:     ti,
		viewport:  viewport.New(0, 0),
		focusMode: focusMode,
		mode:      mode,
		status:    "Prêt.",
	}
}

// Init starts the cursor blink
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles keys, window changes and stream events
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := historyBoxStyle.GetFrameSize()
		_, ih := inputBoxStyle.GetFrameSize()
		reserved := 2 + ih + 1
		m.viewport.Width = max(20, msg.Width-2)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		case tea.KeyEsc:
			if m.streaming && m.cancel != nil {
				m.cancel()
				m.status = "Annulé."
			}
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input.Value())
			if text == "" || m.streaming {
				return m, nil
			}
			m.input.SetValue("")
			if strings.HasPrefix(text, "/") {
				return m.command(text)
			}
			return m.send(text)
		}

	case eventMsg:
		m.apply(msg.event)
		m.refresh()
		return m, wait(m.events)

	case doneMsg:
		m.streaming = false
		m.cancel = nil
		if msg.info != nil && msg.info.ChatID != "" {
			m.chatID = msg.info.ChatID
		}
		if msg.err != nil && len(m.turns) > 0 {
			last := m.turns[len(m.turns)-1]
			if last.err == "" {
				last.err = msg.err.Error()
			}
			m.status = "Erreur."
		} else if m.status == "Réponse en cours..." {
			m.status = "Prêt."
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// send starts streaming the answer to text
func (m Model) send(text string) (tea.Model, tea.Cmd) {
	t := &turn{question: text}
	m.turns = append(m.turns, t)

	req := domain.ChatRequest{
		ChatID:           m.chatID,
		Message:          m.message(text),
		FocusMode:        m.focusMode,
		OptimizationMode: m.mode,
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan tea.Msg, 16)
	m.events = events
	m.cancel = cancel
	m.streaming = true
	m.status = "Réponse en cours..."
	m.refresh()

	go func() {
		info, err := m.chat.Stream(ctx, req, func(ev client.Event) error {
			select {
			case events <- eventMsg{event: ev}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		events <- doneMsg{info: info, err: err}
		close(events)
	}()

	return m, wait(events)
}

// message wraps text in a sector research message when a sector is selected
func (m Model) message(text string) string {
	if m.sector == nil {
		return text
	}
	msg := domain.SectorResearchMessage{
		Type:   domain.SectorResearchType,
		Sector: m.sector.Sector,
		Query:  text,
	}
	if m.sector.Subsector != "" {
		sub := m.sector.Subsector
		msg.Subsector = &sub
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return text
	}
	return string(data)
}

func (m Model) command(text string) (tea.Model, tea.Cmd) {
	name, arg, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "exit":
		return m, tea.Quit
	case "new":
		m.chatID = ""
		m.turns = nil
		m.status = "Nouvelle conversation."
	case "focus":
		switch arg {
		case domain.FocusWebSearch, domain.FocusMarketResearch, domain.FocusUploads:
			m.focusMode = arg
			m.status = "Focus : " + arg
		default:
			m.status = "Focus inconnu : " + arg
		}
	case "mode":
		switch arg {
		case domain.ModeSpeed, domain.ModeBalanced, domain.ModeQuality:
			m.mode = arg
			m.status = "Mode : " + arg
		default:
			m.status = "Mode inconnu : " + arg
		}
	case "sector":
		if arg == "" {
			m.sector = nil
			m.status = "Secteur retiré."
			break
		}
		sector, sub, _ := strings.Cut(arg, "/")
		m.sector = &domain.SectorSelection{Sector: strings.TrimSpace(sector), Subsector: strings.TrimSpace(sub)}
		m.status = "Secteur : " + arg
	default:
		m.status = "Commandes : /new /focus <mode> /mode <speed|balanced|quality> /sector <secteur[/sous-secteur]> /quit"
	}
	m.refresh()
	return m, nil
}

func (m *Model) apply(ev client.Event) {
	if len(m.turns) == 0 {
		return
	}
	t := m.turns[len(m.turns)-1]

	switch ev.Type {
	case domain.EventSources:
		if sources, err := ev.Sources(); err == nil {
			t.sources = sources
		}
	case domain.EventResponse:
		t.answer.WriteString(ev.Text())
	case domain.EventSuggestions:
		if s, err := ev.Suggestions(); err == nil {
			t.suggestions = s.Suggestions
			t.experts = s.SuggestedExperts
		}
	case domain.EventError:
		t.err = ev.Text()
	}
}

func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.render())
	m.viewport.GotoBottom()
}

func (m Model) render() string {
	if len(m.turns) == 0 {
		return mutedStyle.Render("Aucun message.")
	}

	var b strings.Builder
	for i, t := range m.turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(questionStyle.Render("Vous : " + t.question))
		b.WriteString("\n")
		if len(t.sources) > 0 {
			b.WriteString(mutedStyle.Render(renderSources(t.sources)))
			b.WriteString("\n")
		}
		b.WriteString(lipgloss.NewStyle().Width(m.viewport.Width).Render(t.answer.String()))
		if len(t.experts) > 0 {
			b.WriteString("\n")
			for _, e := range t.experts {
				b.WriteString(expertStyle.Render(fmt.Sprintf("Expert : %s %s - %s (%s)", e.FirstName, e.LastName, e.Specialty, e.City)))
				b.WriteString("\n")
			}
		}
		for _, s := range t.suggestions {
			b.WriteString("\n")
			b.WriteString(suggestionStyle.Render("→ " + s))
		}
		if t.err != "" {
			b.WriteString("\n")
			b.WriteString(errorStyle.Render(t.err))
		}
	}
	return b.String()
}

func renderSources(sources []domain.Source) string {
	parts := make([]string, 0, len(sources))
	for i, s := range sources {
		label := s.Metadata.Title
		if label == "" {
			label = s.Metadata.URL
		}
		parts = append(parts, fmt.Sprintf("[%d] %s", i+1, label))
	}
	return "Sources : " + strings.Join(parts, " · ")
}

// View renders the history, the input and the status line
func (m Model) View() string {
	if !m.ready {
		return "Chargement..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("X-me")
	settings := fmt.Sprintf("focus=%s mode=%s", m.focusMode, m.mode)
	if m.sector != nil {
		settings += " secteur=" + m.sector.Sector
		if m.sector.Subsector != "" {
			settings += "/" + m.sector.Subsector
		}
	}
	return header + " " + mutedStyle.Render(settings) + "\n" +
		historyBoxStyle.Render(m.viewport.View()) + "\n" +
		inputBoxStyle.Render(m.input.View()) + "\n" +
		statusStyle.Render(m.status)
}

func wait(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-events
		if !ok {
			return nil
		}
		return msg
	}
}

var (
	historyBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputBoxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	questionStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	mutedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	expertStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	suggestionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
)
