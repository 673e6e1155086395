package chat

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"mythbuster/pkg/bus"
	"mythbuster/pkg/compose"
	"mythbuster/pkg/pipeline"
	providertypes "mythbuster/pkg/provider/types"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type mode int

const (
	modeInteractive mode = iota
	modeOneShot
)

const (
	roleUser  = "user"
	roleBot   = "bot"
	roleError = "error"

	mediaCommand     = "/media"
	mouseScrollLines = 3
)

type chatMessage struct {
	role    string
	content string
	details string
}

type replyMsg struct {
	reply bus.OutboundMessage
	err   error
}

type model struct {
	ctx      context.Context
	reply    ReplyFunc
	mode     mode
	oneShot  Message
	runtime  RuntimeInfo
	sequence int

	theme      theme
	spinner    spinner.Model
	input      textinput.Model
	viewport   viewport.Model
	messages   []chatMessage
	width      int
	height     int
	isReady    bool
	isLoading  bool
	lastErr    string
	followLog  bool
	factChecks int
	usageTotal int64
}

func newModel(ctx context.Context, reply ReplyFunc, runMode mode, oneShot Message, info RuntimeInfo) *model {
	spin := spinner.New()
	spin.Spinner = spinner.Points
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	in := textinput.New()
	in.Prompt = ""
	in.Placeholder = "Send a claim to fact-check..."
	in.Focus()
	in.CharLimit = 0

	return &model{
		ctx:       ctx,
		reply:     reply,
		mode:      runMode,
		oneShot:   Message{Text: strings.TrimSpace(oneShot.Text), HasMedia: oneShot.HasMedia},
		runtime:   info,
		theme:     defaultTheme(),
		spinner:   spin,
		input:     in,
		viewport:  viewport.New(80, 12),
		width:     100,
		height:    28,
		followLog: true,
	}
}

func (m *model) Init() tea.Cmd {
	if m.mode == modeOneShot {
		return m.send(m.oneShot)
	}

	return textinput.Blink
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.resizeComponents()
		m.refreshViewport(false)
		m.isReady = true
		return m, nil
	case tea.MouseMsg:
		m.handleViewportMouse(typed)
		return m, nil
	case tea.KeyMsg:
		switch typed.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		}

		if m.mode == modeOneShot {
			return m, nil
		}
		if handled := m.handleViewportKey(typed); handled {
			return m, nil
		}

		if typed.String() == "enter" {
			if m.isLoading {
				return m, nil
			}

			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			if isExitCommand(text) {
				return m, tea.Quit
			}

			m.input.SetValue("")
			return m, m.send(parseInput(text))
		}
	case spinner.TickMsg:
		if !m.isLoading {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(typed)
		return m, cmd
	case replyMsg:
		m.applyReply(typed)
		if m.mode == modeOneShot {
			return m, tea.Quit
		}
		return m, nil
	}

	if m.mode == modeInteractive {
		m.input, cmd = m.input.Update(msg)
	}

	return m, cmd
}

func (m *model) send(message Message) tea.Cmd {
	m.sequence++
	display := message.Text
	if message.HasMedia {
		display = strings.TrimSpace("📎 " + display)
	}

	m.lastErr = ""
	m.messages = append(m.messages, chatMessage{role: roleUser, content: display})
	m.isLoading = true
	m.followLog = true
	m.refreshViewport(true)

	inbound := inboundMessage(message, m.sequence)
	return tea.Batch(m.spinner.Tick, replyCmd(m.ctx, m.reply, inbound))
}

func (m *model) applyReply(msg replyMsg) {
	m.isLoading = false

	content := strings.TrimSpace(msg.reply.Content)
	if content == "" && msg.err != nil {
		m.lastErr = msg.err.Error()
		m.messages = append(m.messages, chatMessage{role: roleError, content: msg.err.Error()})
		m.refreshViewport(false)
		return
	}

	if msg.err != nil {
		m.lastErr = msg.err.Error()
	}

	metadata := msg.reply.Metadata
	if metadata[pipeline.MetaRouteKey] == "fact_check" {
		m.factChecks++
	}
	if usage := providertypes.UsageFromMetadata(metadata); usage != nil {
		m.usageTotal += usage.TotalTokens
	}

	m.messages = append(m.messages, chatMessage{role: roleBot, content: content, details: replyDetails(metadata)})
	m.refreshViewport(false)
}

func (m *model) View() string {
	if !m.isReady {
		m.resizeComponents()
		m.refreshViewport(false)
	}
	if m.mode == modeOneShot {
		return m.oneShotView()
	}

	header := m.theme.header.Width(m.width - 2).Render("🔍 Myth-Buster Simulator")
	meta := m.theme.headerMeta.Render(fmt.Sprintf(
		"provider:%s · model:%s · messages:%d · fact-checks:%d · tokens:%d",
		displayOrNA(m.runtime.Provider),
		displayOrNA(m.runtime.Model),
		conversationTurns(m.messages),
		m.factChecks,
		m.usageTotal,
	))
	line := m.theme.divider.Width(m.width - 2).Render(strings.Repeat("─", max(8, m.width-2)))

	status := m.theme.status.Render("Enter send  ·  /media <caption> attach  ·  PgUp/PgDn scroll  ·  Ctrl+C/Esc quit")
	if m.isLoading {
		status = m.theme.statusBusy.Render(fmt.Sprintf("%s checking...", m.spinner.View()))
	}
	if m.lastErr != "" {
		status = m.theme.statusErr.Render("last message hit a fallback: " + m.lastErr)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		meta,
		line,
		m.theme.viewport.Width(m.width-2).Render(m.viewport.View()),
		status,
		m.theme.inputLabel.Render("You")+" "+m.theme.hint.Render("(type /exit, quit, or :q)"),
		m.theme.input.Width(m.width-2).Render(m.input.View()),
	)
}

func (m *model) resizeComponents() {
	w := max(50, m.width-6)
	h := m.height - 10
	if m.mode == modeOneShot {
		h = m.height - 6
	}

	m.viewport.Width = w
	m.viewport.Height = max(8, h)
	m.input.Width = w - 2
}

func (m *model) refreshViewport(forceBottom bool) {
	previousOffset := m.viewport.YOffset
	sections := make([]string, 0, len(m.messages))
	for _, item := range m.messages {
		sections = append(sections, m.renderMessage(item, m.viewport.Width))
	}

	m.viewport.SetContent(strings.Join(sections, "\n\n"))
	if m.followLog || forceBottom {
		m.viewport.GotoBottom()
		m.followLog = true
		return
	}

	maxOffset := max(0, m.viewport.TotalLineCount()-m.viewport.Height)
	m.viewport.SetYOffset(min(previousOffset, maxOffset))
}

func (m *model) renderMessage(item chatMessage, width int) string {
	switch item.role {
	case roleUser:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.userTitle.Render("You"),
			m.theme.userBox.Width(width).Render(item.content),
		)
	case roleBot:
		body := item.content
		if item.details != "" {
			body += "\n\n" + m.theme.hint.Render(item.details)
		}
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.botTitle.Render("Myth-Buster"),
			m.theme.botBox.Width(width).Render(body),
		)
	default:
		return lipgloss.JoinVertical(lipgloss.Left,
			m.theme.errorTitle.Render("Error"),
			m.theme.errorBox.Width(width).Render(item.content),
		)
	}
}

func (m *model) oneShotView() string {
	width := max(40, m.width-6)
	parts := make([]string, 0, len(m.messages)+1)
	for _, item := range m.messages {
		parts = append(parts, m.renderMessage(item, width))
	}

	if m.isLoading {
		parts = append(parts, m.theme.statusBusy.Render(fmt.Sprintf("%s checking...", m.spinner.View())))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...) + "\n\n"
}

func (m *model) handleViewportKey(msg tea.KeyMsg) bool {
	switch msg.String() {
	case "pgup", "ctrl+b", "alt+up", "ctrl+up":
		m.viewport.PageUp()
		m.followLog = false
		return true
	case "pgdown", "ctrl+f", "alt+down", "ctrl+down":
		m.viewport.PageDown()
		m.followLog = m.viewport.AtBottom()
		return true
	case "home":
		m.viewport.GotoTop()
		m.followLog = false
		return true
	case "end":
		m.viewport.GotoBottom()
		m.followLog = true
		return true
	default:
		return false
	}
}

func (m *model) handleViewportMouse(msg tea.MouseMsg) bool {
	if msg.Action != tea.MouseActionPress {
		return false
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		m.viewport.ScrollUp(mouseScrollLines)
		m.followLog = false
		return true
	case tea.MouseButtonWheelDown:
		m.viewport.ScrollDown(mouseScrollLines)
		m.followLog = m.viewport.AtBottom()
		return true
	default:
		return false
	}
}

func replyCmd(ctx context.Context, reply ReplyFunc, inbound bus.InboundMessage) tea.Cmd {
	return func() tea.Msg {
		outbound, err := reply(ctx, inbound)
		return replyMsg{reply: outbound, err: err}
	}
}

// parseInput turns "/media caption" into a media message.
func parseInput(text string) Message {
	if rest, ok := strings.CutPrefix(text, mediaCommand); ok && (rest == "" || rest[0] == ' ') {
		return Message{Text: strings.TrimSpace(rest), HasMedia: true}
	}

	return Message{Text: text}
}

func inboundMessage(message Message, sequence int) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:   ChannelName,
		MessageID: ChannelName + "-" + strconv.Itoa(sequence),
		SenderID:  localSender,
		ChatID:    localSender,
		Content:   message.Text,
		HasMedia:  message.HasMedia,
	}
}

func replyDetails(metadata map[string]string) string {
	route := metadata[pipeline.MetaRouteKey]
	if route == "" {
		return ""
	}

	parts := []string{"route: " + route}
	if raw := metadata[pipeline.MetaConfidenceKey]; raw != "" {
		if confidence, err := strconv.ParseFloat(raw, 64); err == nil {
			parts = append(parts, fmt.Sprintf("confidence: %d%%", compose.Percent(confidence)))
		}
	}
	if metadata[pipeline.MetaFallbackKey] == "true" {
		parts = append(parts, "fallback")
	}
	if usage := providertypes.UsageFromMetadata(metadata); usage != nil {
		parts = append(parts, fmt.Sprintf("tokens: %d", usage.TotalTokens))
	}

	return strings.Join(parts, " · ")
}

func displayOrNA(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "n/a"
	}

	return trimmed
}

func conversationTurns(messages []chatMessage) int {
	count := 0
	for _, message := range messages {
		if message.role == roleUser {
			count++
		}
	}

	return count
}

func isExitCommand(input string) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "exit", "/exit", "quit", ":q":
		return true
	default:
		return false
	}
}
