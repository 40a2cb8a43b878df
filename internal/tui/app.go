// Package tui implements the interactive inbox: a conversation list pane, a
// thread pane, and a composer, rendered with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tablee/tablee/internal/auth"
	"github.com/tablee/tablee/internal/messaging"
	"github.com/tablee/tablee/internal/models"
)

type pane int

const (
	paneList pane = iota
	paneThread
)

// Config holds TUI display settings.
type Config struct {
	Theme          string
	ShowTimestamps bool
	CompactMode    bool
}

type refreshMsg struct{}

type openedMsg struct {
	err error
}

type sendResultMsg struct {
	text string
	err  error
}

type signedOutMsg struct{}

// Model is the root bubbletea model for the inbox.
type Model struct {
	inbox    *messaging.Inbox
	provider *auth.Provider
	theme    Theme

	showTimestamps bool
	compact        bool

	input  textinput.Model
	search textinput.Model

	focus     pane
	searching bool
	selected  int
	width     int
	height    int
	status    string

	updates     chan struct{}
	unsubscribe []func()
}

// NewModel builds the inbox model. The inbox must already be loaded.
func NewModel(inbox *messaging.Inbox, provider *auth.Provider, cfg Config) *Model {
	input := textinput.New()
	input.Placeholder = "Write a message..."
	input.CharLimit = 2000
	input.Prompt = "> "

	search := textinput.New()
	search.Placeholder = "Search people..."
	search.Prompt = "/ "

	m := &Model{
		inbox:          inbox,
		provider:       provider,
		theme:          ThemeByName(cfg.Theme),
		showTimestamps: cfg.ShowTimestamps,
		compact:        cfg.CompactMode,
		input:          input,
		search:         search,
		updates:        make(chan struct{}, 16),
	}

	// Component change callbacks fire on feed goroutines; funnel them into
	// bubbletea's message loop through the updates channel.
	m.unsubscribe = append(m.unsubscribe,
		inbox.Directory.OnChange(m.poke),
		inbox.Unread.OnChange(m.poke),
		inbox.Thread.OnChange(m.poke),
	)
	return m
}

func (m *Model) poke() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}

// Close drops the component listeners.
func (m *Model) Close() {
	for _, unsubscribe := range m.unsubscribe {
		unsubscribe()
	}
}

// Run starts the inbox program and blocks until it exits.
func Run(inbox *messaging.Inbox, provider *auth.Provider, cfg Config) error {
	model := NewModel(inbox, provider, cfg)
	defer model.Close()

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.waitForUpdate())
}

func (m *Model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.updates
		return refreshMsg{}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		return m, nil

	case refreshMsg:
		m.clampSelection()
		return m, m.waitForUpdate()

	case openedMsg:
		if typed.err != nil {
			m.status = fmt.Sprintf("failed to open conversation: %v", typed.err)
		}
		return m, nil

	case sendResultMsg:
		if typed.err != nil {
			// Put the text back so nothing typed is lost.
			m.input.SetValue(typed.text)
			m.status = fmt.Sprintf("send failed: %v", typed.err)
		}
		return m, nil

	case signedOutMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(typed)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch m.focus {
	case paneList:
		return m.handleListKey(msg)
	case paneThread:
		return m.handleThreadKey(msg)
	}
	return m, nil
}

func (m *Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.searching = false
		m.search.Reset()
		m.clampSelection()
		return m, nil
	case "enter":
		m.searching = false
		m.clampSelection()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	m.clampSelection()
	return m, cmd
}

func (m *Model) handleListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "ctrl+x":
		return m, m.signOut()
	case "/":
		m.searching = true
		m.search.Reset()
		return m, m.search.Focus()
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "down", "j":
		if m.selected < len(m.visibleConversations())-1 {
			m.selected++
		}
		return m, nil
	case "tab":
		if m.inbox.Thread.ConversationID() != "" {
			m.focus = paneThread
			return m, m.input.Focus()
		}
		return m, nil
	case "enter":
		views := m.visibleConversations()
		if m.selected >= len(views) {
			return m, nil
		}
		conversationID := views[m.selected].ID
		m.focus = paneThread
		m.status = ""
		return m, tea.Batch(m.input.Focus(), m.openConversation(conversationID))
	}
	return m, nil
}

func (m *Model) handleThreadKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "tab":
		m.focus = paneList
		m.input.Blur()
		m.inbox.Unread.CloseConversation()
		return m, nil
	case "enter":
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		// Clear optimistically; a failed send restores the text.
		m.input.Reset()
		return m, m.send(text)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) openConversation(conversationID string) tea.Cmd {
	return func() tea.Msg {
		return openedMsg{err: m.inbox.Open(context.Background(), conversationID)}
	}
}

func (m *Model) send(text string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.inbox.Send(context.Background(), text)
		return sendResultMsg{text: text, err: err}
	}
}

func (m *Model) signOut() tea.Cmd {
	return func() tea.Msg {
		m.provider.SignOut(context.Background())
		return signedOutMsg{}
	}
}

// visibleConversations applies the counterpart-name search filter.
func (m *Model) visibleConversations() []models.ConversationView {
	views := m.inbox.Directory.Conversations()
	query := strings.ToLower(strings.TrimSpace(m.search.Value()))
	if query == "" {
		return views
	}

	var filtered []models.ConversationView
	for _, view := range views {
		name := strings.ToLower(view.Counterpart.DisplayName())
		handle := strings.ToLower(view.Counterpart.Handle)
		if strings.Contains(name, query) || strings.Contains(handle, query) {
			filtered = append(filtered, view)
		}
	}
	return filtered
}

func (m *Model) clampSelection() {
	count := len(m.visibleConversations())
	if count == 0 {
		m.selected = 0
		return
	}
	if m.selected >= count {
		m.selected = count - 1
	}
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	contentHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if contentHeight < 2 {
		contentHeight = 2
	}

	listWidth := m.width / 3
	if listWidth < 24 {
		listWidth = 24
	}
	threadWidth := m.width - listWidth - 4
	if threadWidth < 20 {
		threadWidth = 20
	}

	list := m.theme.paneStyle(m.focus == paneList).
		Width(listWidth).
		Height(contentHeight - 2).
		Render(m.renderList(listWidth, contentHeight-2))
	thread := m.theme.paneStyle(m.focus == paneThread).
		Width(threadWidth).
		Height(contentHeight - 2).
		Render(m.renderThread(threadWidth, contentHeight-2))

	body := lipgloss.JoinHorizontal(lipgloss.Top, list, thread)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m *Model) renderHeader() string {
	title := "tablee"
	if profile := m.provider.Profile(); profile != nil {
		title = fmt.Sprintf("tablee — %s", profile.DisplayName())
	}
	if total := m.inbox.Unread.Total(); total > 0 {
		title += m.theme.badgeStyle().Render(fmt.Sprintf("  (%d unread)", total))
	}
	return m.theme.headerStyle().Render(title)
}

func (m *Model) renderFooter() string {
	if m.status != "" {
		return m.theme.badgeStyle().Render(m.status)
	}
	if m.searching {
		return m.search.View()
	}
	help := "enter open · / search · tab switch pane · ctrl+x sign out · q quit"
	if m.focus == paneThread {
		help = "enter send · esc back · ctrl+c quit"
	}
	return m.theme.footerStyle().Render(help)
}

func (m *Model) renderList(width, height int) string {
	views := m.visibleConversations()
	if len(views) == 0 {
		if m.search.Value() != "" {
			return m.theme.mutedStyle().Render("no matches")
		}
		return m.theme.mutedStyle().Render("no conversations yet")
	}

	var lines []string
	for i, view := range views {
		if len(lines) >= height {
			break
		}

		name := view.Counterpart.DisplayName()
		badge := ""
		if count := m.inbox.Unread.Count(view.ID); count > 0 {
			badge = m.theme.badgeStyle().Render(fmt.Sprintf(" ●%d", count))
		}

		line := truncate(name, width-6) + badge
		if i == m.selected && m.focus == paneList {
			line = m.theme.selectedStyle().Render("▸ " + truncate(name, width-8) + badge)
		} else {
			line = "  " + line
		}
		lines = append(lines, line)

		if !m.compact && len(lines) < height {
			preview := view.LastMessageText
			if preview == "" {
				preview = "no messages yet"
			}
			lines = append(lines, m.theme.mutedStyle().Render("    "+truncate(preview, width-6)))
		}
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderThread(width, height int) string {
	if m.inbox.Thread.ConversationID() == "" {
		return m.theme.mutedStyle().Render("select a conversation")
	}
	if m.inbox.Thread.State() == messaging.ThreadLoading {
		return m.theme.mutedStyle().Render("loading...")
	}

	inputView := m.input.View()
	bodyHeight := height - lipgloss.Height(inputView) - 1
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	messages := m.inbox.Thread.Messages()
	var lines []string
	for _, message := range messages {
		lines = append(lines, m.renderMessage(&message, width))
	}
	// Keep the tail visible; newest messages matter most.
	if len(lines) > bodyHeight {
		lines = lines[len(lines)-bodyHeight:]
	}

	body := strings.Join(lines, "\n")
	if body == "" {
		body = m.theme.mutedStyle().Render("say hello")
	}
	return body + strings.Repeat("\n", max(1, bodyHeight-len(lines)+1)) + inputView
}

func (m *Model) renderMessage(message *models.Message, width int) string {
	style := m.theme.otherMessageStyle()
	sender := "them"
	if message.SenderID == m.inbox.UserID() {
		style = m.theme.ownMessageStyle()
		sender = "you"
	}

	prefix := sender
	if m.showTimestamps {
		prefix = fmt.Sprintf("%s %s", message.CreatedAt.Local().Format(time.Kitchen), sender)
	}
	return style.Render(fmt.Sprintf("%s: %s", prefix, truncate(message.Body, width-len(prefix)-4)))
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}
