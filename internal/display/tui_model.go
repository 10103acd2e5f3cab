package display

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"overkill/internal/appinfo"
	"overkill/internal/workflow"
)

const defaultPlaceholder = "Type your message and press Enter..."

type phaseMsg struct{ Phase workflow.Phase }

type statusMsg struct{ Name, Status string }

type activityMsg struct{ Icon, Message string }

type chatMsg struct {
	Role    workflow.Role
	Content string
}

type promptMsg struct{ Question string }

type promptClearedMsg struct{}

type finishedMsg struct{ Err error }

type activityEntry struct{ icon, message string }

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	hintStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	currentStyle   = lipgloss.NewStyle().Bold(true).Reverse(true).Foreground(lipgloss.Color("2"))
	completedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	agentStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

type tuiModel struct {
	events  <-chan tea.Msg
	closing <-chan struct{}
	slot    *inputSlot
	runID   string
	md      *markdownRenderer

	width  int
	height int

	phase       workflow.Phase
	agentName   string
	agentStatus string
	activity    []activityEntry
	chat        []chatMsg

	activityView viewport.Model
	chatView     viewport.Model
	input        textinput.Model
	spinner      spinner.Model

	prompting bool
	finished  bool
	finishErr error
}

func newTUIModel(events <-chan tea.Msg, closing <-chan struct{}, slot *inputSlot, opts TUIOptions) tuiModel {
	inp := textinput.New()
	inp.Placeholder = defaultPlaceholder
	inp.Prompt = "› "
	inp.CharLimit = 0

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return tuiModel{
		events:       events,
		closing:      closing,
		slot:         slot,
		runID:        opts.RunID,
		md:           &markdownRenderer{style: opts.MarkdownStyle},
		phase:        workflow.PhaseNone,
		activityView: viewport.New(0, 0),
		chatView:     viewport.New(0, 0),
		input:        inp,
		spinner:      sp,
	}
}

// waitAsyncCmd delivers the next queued surface update. It yields nil once
// the surface is closing so no goroutine stays parked on the queue.
func waitAsyncCmd(events <-chan tea.Msg, closing <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-events:
			return msg
		case <-closing:
			return nil
		}
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(waitAsyncCmd(m.events, m.closing), m.spinner.Tick, textinput.Blink)
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		m.rerenderActivity()
		m.rerenderChat()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if handled, cmd := m.handleAsync(msg); handled {
		return m, tea.Batch(cmd, waitAsyncCmd(m.events, m.closing))
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleAsync applies an update queued from outside the program.
func (m *tuiModel) handleAsync(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case phaseMsg:
		// Phases only move forward.
		if msg.Phase.Index() > m.phase.Index() {
			m.phase = msg.Phase
		}
	case statusMsg:
		m.agentName, m.agentStatus = msg.Name, msg.Status
	case activityMsg:
		m.activity = append(m.activity, activityEntry{icon: msg.Icon, message: msg.Message})
		m.rerenderActivity()
	case chatMsg:
		m.chat = append(m.chat, msg)
		m.rerenderChat()
	case promptMsg:
		if _, ok := m.slot.armed(); !ok {
			return true, nil
		}
		m.prompting = true
		m.input.Placeholder = defaultPlaceholder
		if q := strings.TrimSpace(msg.Question); q != "" {
			m.input.Placeholder = q
		}
		return true, m.input.Focus()
	case promptClearedMsg:
		if _, ok := m.slot.armed(); !ok {
			m.endPrompt()
		}
	case finishedMsg:
		m.finished = true
		m.finishErr = msg.Err
		m.endPrompt()
	default:
		return false, nil
	}
	return true, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "ctrl+q":
		return m, tea.Quit
	case "pgup":
		m.chatView.PageUp()
		return m, nil
	case "pgdown":
		m.chatView.PageDown()
		return m, nil
	case "enter":
		if !m.prompting {
			return m, nil
		}
		if m.slot.resolve(m.input.Value()) {
			m.endPrompt()
		}
		return m, nil
	}
	if !m.prompting {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) endPrompt() {
	m.prompting = false
	m.input.Reset()
	m.input.Blur()
	m.input.Placeholder = defaultPlaceholder
}

func (m tuiModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	leftW, rightW := m.columnWidths()
	bodyH := m.bodyHeight()

	header := lipgloss.NewStyle().Padding(0, 1).Render(strings.Join([]string{
		truncateANSI(titleStyle.Render(appinfo.Display())+hintStyle.Render("  "+appinfo.Tagline), m.width-2),
		truncateANSI(m.renderPhases(), m.width-2),
	}, "\n"))

	left := m.renderActivity(leftW, bodyH)
	right := m.renderConversation(rightW, bodyH)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	return lipgloss.JoinVertical(lipgloss.Left, header, "", body, m.renderFooter())
}

func (m *tuiModel) renderPhases() string {
	parts := make([]string, 0, len(workflow.Phases))
	for _, p := range workflow.Phases {
		switch workflow.ProgressOf(p, m.phase) {
		case workflow.ProgressCompleted:
			parts = append(parts, completedStyle.Render("✓ "+p.Label()))
		case workflow.ProgressCurrent:
			parts = append(parts, currentStyle.Render(" "+p.Label()+" "))
		default:
			parts = append(parts, hintStyle.Render(p.Label()))
		}
	}
	return strings.Join(parts, " → ")
}

func (m *tuiModel) renderActivity(width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height).BorderRight(true).BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("8"))
	inner := max(1, width-1)

	name := strings.TrimSpace(m.agentName)
	if name == "" {
		name = "-"
	}
	lines := []string{
		truncateANSI(lipgloss.NewStyle().Bold(true).Render("🤖 "+name), inner),
		truncateANSI(hintStyle.Render("   "+m.agentStatus), inner),
		"",
		lipgloss.NewStyle().Bold(true).Render("📋 Activity"),
		m.activityView.View(),
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *tuiModel) renderConversation(width, height int) string {
	style := lipgloss.NewStyle().Width(width).Height(height).PaddingLeft(1)
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("💬 Conversation"),
		m.chatView.View(),
		m.renderInputLine(max(10, width-1)),
	}
	return style.Render(strings.Join(lines, "\n"))
}

func (m *tuiModel) renderInputLine(width int) string {
	if m.prompting {
		m.input.Width = max(10, width-3)
		return m.input.View()
	}
	if m.finished {
		return hintStyle.Render("Session finished.")
	}
	return hintStyle.Render("Working " + m.spinner.View())
}

func (m *tuiModel) renderFooter() string {
	var text string
	switch {
	case m.finished && m.finishErr != nil:
		text = errorStyle.Render("Stopped with an error. Press Ctrl+C to exit.")
	case m.finished:
		text = completedStyle.Render("Complete! Press Ctrl+C to exit.")
	default:
		hint := "Ctrl+C/Ctrl+Q quit | PgUp/PgDn scroll"
		if m.runID != "" {
			hint += " | run " + m.runID
		}
		text = hintStyle.Render(hint)
	}
	return lipgloss.NewStyle().Padding(0, 1).Render(truncateANSI(text, max(10, m.width-2)))
}

func (m *tuiModel) columnWidths() (leftW, rightW int) {
	leftW = clamp(28, m.width*2/5, 64)
	if leftW > m.width {
		leftW = m.width
	}
	return leftW, max(0, m.width-leftW)
}

// bodyHeight leaves room for the two header lines, a spacer and the footer.
func (m *tuiModel) bodyHeight() int {
	return max(0, m.height-4)
}

func (m *tuiModel) resize() {
	leftW, rightW := m.columnWidths()
	bodyH := m.bodyHeight()
	m.activityView.Width = max(0, leftW-1)
	m.activityView.Height = max(0, bodyH-4)
	m.chatView.Width = max(0, rightW-1)
	m.chatView.Height = max(0, bodyH-2)
}

func (m *tuiModel) rerenderActivity() {
	width := m.activityView.Width
	if width <= 0 {
		width = 40
	}
	var lines []string
	for _, e := range m.activity {
		style := lipgloss.NewStyle()
		if e.icon == IconError {
			style = errorStyle
		}
		prefix := ""
		if e.icon != "" {
			prefix = e.icon + " "
		}
		for _, line := range wrapPrefixedLines(prefix, style, e.message, width) {
			lines = append(lines, truncateANSI(line, width))
		}
	}
	setFollowing(&m.activityView, lines)
}

func (m *tuiModel) rerenderChat() {
	width := m.chatView.Width
	if width <= 0 {
		width = 60
	}
	var lines []string
	for i, msg := range m.chat {
		if i > 0 {
			lines = append(lines, "")
		}
		for _, line := range m.chatLines(msg, width) {
			lines = append(lines, truncateANSI(line, width))
		}
	}
	setFollowing(&m.chatView, lines)
}

func (m *tuiModel) chatLines(msg chatMsg, width int) []string {
	if msg.Role != workflow.RoleAgent {
		return wrapPrefixedLines(msg.Role.Prefix(), userStyle, msg.Content, width)
	}
	if rendered, ok := m.md.render(msg.Content, width); ok && strings.TrimSpace(rendered) != "" {
		label := agentStyle.Render(strings.TrimSpace(msg.Role.Prefix()))
		return append([]string{label}, strings.Split(rendered, "\n")...)
	}
	return wrapPrefixedLines(msg.Role.Prefix(), lipgloss.NewStyle(), msg.Content, width)
}

// setFollowing replaces the viewport content, staying pinned to the bottom
// when the reader was already there.
func setFollowing(vp *viewport.Model, lines []string) {
	follow := vp.AtBottom()
	vp.SetContent(strings.Join(lines, "\n"))
	if follow {
		vp.GotoBottom()
	}
}
