package main

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"relaychat/client"
	"relaychat/models"
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	statusOKStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	statusBadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	channelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	activeChStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	unreadStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203"))
	senderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("81"))
	ownStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114"))
	helpStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// stateUpdated fires whenever the client publishes a new snapshot.
type stateUpdated struct{}

func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return stateUpdated{}
	}
}

type model struct {
	client   *client.Client
	relayURL string
	input    textinput.Model
	view     viewport.Model
	ready    bool
	width    int
	height   int
}

func newModel(c *client.Client, relayURL string) model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.CharLimit = 2000
	ti.Focus()
	return model{client: c, relayURL: relayURL, input: ti}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, waitForUpdate(m.client.Updates()))
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := msg.Height - 7
		if vpHeight < 3 {
			vpHeight = 3
		}
		if !m.ready {
			m.view = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.view.Width = msg.Width
			m.view.Height = vpHeight
		}
		m.refresh()
		return m, nil

	case stateUpdated:
		m.refresh()
		return m, waitForUpdate(m.client.Updates())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.client.Close()
			return m, tea.Quit
		case "tab":
			m.cycleChannel(1)
			return m, nil
		case "shift+tab":
			m.cycleChannel(-1)
			return m, nil
		case "ctrl+r":
			// Manual reconnect clears the recorded error and retries.
			_ = m.client.Connect(m.relayURL)
			return m, nil
		case "ctrl+d":
			m.client.Disconnect()
			return m, nil
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text != "" && m.client.ActiveChannel() != "" {
				_ = m.client.SendMessage(m.client.ActiveChannel(), text)
				m.input.Reset()
			}
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *model) cycleChannel(dir int) {
	channels := m.client.Channels()
	if len(channels) == 0 {
		return
	}
	active := m.client.ActiveChannel()
	idx := 0
	for i, ch := range channels {
		if ch.ID == active {
			idx = i + dir
			break
		}
	}
	idx = (idx + len(channels)) % len(channels)
	m.client.SelectChannel(channels[idx].ID)
	m.refresh()
}

func (m *model) refresh() {
	if !m.ready {
		return
	}
	active := m.client.ActiveChannel()
	var b strings.Builder
	for _, msg := range m.client.Messages(active) {
		ts := time.UnixMilli(msg.Timestamp).Format("15:04:05")
		style := senderStyle
		if msg.SenderID == m.client.UserID() {
			style = ownStyle
		}
		fmt.Fprintf(&b, "%s %s  %s\n", helpStyle.Render(ts), style.Render(msg.SenderID), msg.Text)
	}
	m.view.SetContent(b.String())
	m.view.GotoBottom()
}

func (m model) statusLine() string {
	switch m.client.ConnectionState() {
	case client.StateOpen:
		return statusOKStyle.Render("Connected")
	case client.StateConnecting:
		return statusBadStyle.Render("Connecting...")
	default:
		if err := m.client.LastError(); err != "" {
			return statusBadStyle.Render("Error: " + err + "  (ctrl+r to reconnect)")
		}
		return statusBadStyle.Render("Disconnected  (ctrl+r to reconnect)")
	}
}

func (m model) channelBar() string {
	active := m.client.ActiveChannel()
	parts := make([]string, 0, 8)
	for _, ch := range m.client.Channels() {
		label := ch.DisplayName
		if ch.UnreadCount > 0 {
			label += unreadStyle.Render(fmt.Sprintf(" (%d)", ch.UnreadCount))
		}
		if ch.ID == active {
			parts = append(parts, activeChStyle.Render("["+label+"]"))
		} else {
			parts = append(parts, channelStyle.Render(label))
		}
	}
	return strings.Join(parts, "  ")
}

func (m model) View() string {
	if !m.ready {
		return "Loading..."
	}
	return fmt.Sprintf("%s  %s\n%s\n%s\n%s\n%s\n",
		titleStyle.Render("relaychat"),
		m.statusLine(),
		m.channelBar(),
		m.view.View(),
		m.input.View(),
		helpStyle.Render("tab: next channel • enter: send • ctrl+d: disconnect • ctrl+r: reconnect • esc: quit"),
	)
}

func main() {
	_ = godotenv.Load()

	// Keep client/connection logs out of the TUI.
	log.SetOutput(logSink())

	relayURL := os.Getenv("RELAY_URL")
	if relayURL == "" {
		relayURL = "ws://localhost:8080/ws"
	}
	userID := os.Getenv("CHAT_USER_ID")
	if userID == "" {
		userID = "user_current_app_user"
	}

	c := client.New(userID, models.DefaultChannels)
	channels := c.Channels()
	if len(channels) > 0 {
		c.SelectChannel(channels[0].ID)
	}
	_ = c.Connect(relayURL)

	p := tea.NewProgram(newModel(c, relayURL), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "relaychat-tui: %v\n", err)
		os.Exit(1)
	}
}

func logSink() *os.File {
	f, err := os.OpenFile("relaychat-tui.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		devnull, _ := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		return devnull
	}
	return f
}
