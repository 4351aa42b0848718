package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/harness"
	"github.com/SageKnoll/Azure-Language-OpenAI-Conversational-Agent-Accelerator/internal/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat interface",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(0)
	defer stop()

	stack, err := bootStack(ctx, cfg)
	if err != nil {
		return err
	}
	defer stack.Close()

	p := tea.NewProgram(newChatModel(ctx, stack.Harness), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// exchanger is the part of the harness the chat needs.
type exchanger interface {
	Execute(ctx context.Context, question string, history []types.HistoryEntry) harness.Response
}

// Message is one rendered line of the transcript.
type Message struct {
	Role    string
	Content string
	Time    time.Time
}

type answerMsg harness.Response

var (
	brand     = lipgloss.Color("#1F6FB2")
	warnColor = lipgloss.Color("#FFC107")
	errColor  = lipgloss.Color("#e53935")
	mutedText = lipgloss.Color("#8a94a6")

	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffffff")).Background(brand).Padding(0, 1)
	clarifyStyle = lipgloss.NewStyle().Bold(true).Foreground(warnColor)
	userStyle    = lipgloss.NewStyle().Bold(true).Foreground(brand)
	errorStyle   = lipgloss.NewStyle().Foreground(errColor)
	footerStyle  = lipgloss.NewStyle().Foreground(mutedText)
	inputStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(brand).Padding(0, 1)
)

// chatModel is the bubbletea model of `iris chat`.
//
// A responder that needs more details suspends the exchange; the model then
// enters the clarification state and the next input is sent as a new
// exchange carrying the whole conversation as history.
type chatModel struct {
	ctx      context.Context
	harness  exchanger
	input    textinput.Model
	viewport viewport.Model
	renderer *glamour.TermRenderer

	transcript []Message
	history    []types.HistoryEntry

	clarifying bool
	loading    bool
	ready      bool
	width      int
	height     int
	err        error
}

func newChatModel(ctx context.Context, h exchanger) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Ask a recordkeeping question..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.Focus()
	return chatModel{ctx: ctx, harness: h, input: ti}
}

func (m chatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case answerMsg:
		m.receive(harness.Response(msg))
	}

	if !m.loading {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *chatModel) resize(width, height int) {
	m.width, m.height = width, height
	const chrome = 7 // header, footer, bordered input

	w := max(width-2, 10)
	h := max(height-chrome, 1)
	if !m.ready {
		m.viewport = viewport.New(w, h)
		m.ready = true
	} else {
		m.viewport.Width, m.viewport.Height = w, h
	}
	m.input.Width = max(w-6, 10)

	m.renderer, _ = glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(w-4),
	)
	m.refresh()
}

func (m chatModel) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if m.loading || text == "" {
		return m, nil
	}
	m.input.Reset()

	switch text {
	case "/quit", "/exit":
		return m, tea.Quit
	case "/clear":
		m.transcript, m.history = nil, nil
		m.clarifying, m.err = false, nil
		m.setPlaceholder()
		m.refresh()
		return m, nil
	}

	m.transcript = append(m.transcript, Message{Role: "user", Content: text, Time: time.Now()})
	m.loading = true
	m.err = nil
	m.refresh()
	return m, m.ask(text, slices.Clone(m.history))
}

func (m chatModel) ask(question string, history []types.HistoryEntry) tea.Cmd {
	ctx, h := m.ctx, m.harness
	return func() tea.Msg {
		return answerMsg(h.Execute(ctx, question, history))
	}
}

func (m *chatModel) receive(resp harness.Response) {
	m.loading = false
	m.history = append(m.history, types.HistoryEntry{Role: "user", Content: resp.Question})

	if resp.Error != nil {
		m.err = resp.Err()
		m.transcript = append(m.transcript, Message{
			Role:    "error",
			Content: fmt.Sprintf("%s after %d attempts: %s", resp.Error.Type, resp.Error.Attempts, resp.Error.Message),
			Time:    time.Now(),
		})
		m.clarifying = false
	} else {
		m.history = append(m.history, types.HistoryEntry{Role: "assistant", Content: resp.Answer})
		role := "assistant"
		if resp.NeedMoreInfo {
			role = "clarify"
		}
		m.transcript = append(m.transcript, Message{Role: role, Content: resp.Answer, Time: time.Now()})
		m.clarifying = resp.NeedMoreInfo
	}
	m.setPlaceholder()
	m.refresh()
}

func (m *chatModel) setPlaceholder() {
	if m.clarifying {
		m.input.Placeholder = "Add the details requested above..."
		return
	}
	m.input.Placeholder = "Ask a recordkeeping question..."
}

func (m *chatModel) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m chatModel) renderTranscript() string {
	var sb strings.Builder
	for _, msg := range m.transcript {
		switch msg.Role {
		case "user":
			sb.WriteString(userStyle.Render("You: ") + msg.Content + "\n\n")
		case "clarify":
			sb.WriteString(clarifyStyle.Render("IRIS needs more information") + "\n")
			sb.WriteString(m.renderMarkdown(msg.Content))
		case "error":
			sb.WriteString(errorStyle.Render("Error: "+msg.Content) + "\n\n")
		default:
			sb.WriteString(m.renderMarkdown(msg.Content))
		}
	}
	if m.loading {
		sb.WriteString(footerStyle.Render("IRIS is consulting the agents...") + "\n")
	}
	return sb.String()
}

// renderMarkdown renders with glamour, falling back to plain text.
func (m chatModel) renderMarkdown(content string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = content + "\n\n"
		}
	}()
	if m.renderer != nil && content != "" {
		if rendered, err := m.renderer.Render(content); err == nil {
			return rendered
		}
	}
	return content + "\n\n"
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	title := "IRIS - OSHA Recordkeeping"
	if m.clarifying {
		title += "  " + clarifyStyle.Render("[clarification]")
	}
	footer := "enter send - pgup/pgdn scroll - /clear reset - esc quit"
	if m.err != nil {
		footer = errorStyle.Render(m.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(title),
		m.viewport.View(),
		inputStyle.Width(m.viewport.Width-2).Render(m.input.View()),
		footerStyle.Render(footer),
	)
}
