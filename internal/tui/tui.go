// Package tui provides a Bubble Tea TUI for browsing project memory.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/memex/internal/memory"
	"github.com/fakeyudi/memex/internal/transcript"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	bulletStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))

	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	failedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	// Selected row in the Sessions list
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabOverview tabID = iota
	tabTasks
	tabDecisions
	tabFiles
	tabSessions
	tabConversation
	tabCount
)

var tabNames = [tabCount]string{
	"Overview", "Tasks", "Decisions", "Files", "Sessions", "Conversation",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	mem       *memory.ProjectMemory
	project   string
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	// Conversation tab ordering
	newestFirst bool
	// Sessions tab: cursor position and expanded set
	sessionCursor    int
	expandedSessions map[int]bool
}

// New creates a new TUI model for the memory of project.
func New(m *memory.ProjectMemory, project string) Model {
	if m == nil {
		m = memory.New()
	}
	return Model{
		mem:              m,
		project:          project,
		expandedSessions: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5", "6":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabConversation {
				m.newestFirst = !m.newestFirst
				m.rebuild(tabConversation)
				m.viewports[tabConversation].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabSessions && m.sessionCursor > 0 {
				m.sessionCursor--
				m.rebuild(tabSessions)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabSessions && m.sessionCursor < len(m.mem.RecentSessions)-1 {
				m.sessionCursor++
				m.rebuild(tabSessions)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabSessions && len(m.mem.RecentSessions) > 0 {
				if m.expandedSessions[m.sessionCursor] {
					delete(m.expandedSessions, m.sessionCursor)
				} else {
					m.expandedSessions[m.sessionCursor] = true
				}
				m.rebuild(tabSessions)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  memex  " + m.project)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-6 jump  q quit"
	switch m.activeTab {
	case tabConversation:
		dir := "oldest first"
		if m.newestFirst {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabSessions:
		hint += "  ↑/↓ select  enter details"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabOverview:
		return m.renderOverview()
	case tabTasks:
		return m.renderTasks()
	case tabDecisions:
		return m.renderDecisions()
	case tabFiles:
		return m.renderFiles()
	case tabSessions:
		return m.renderSessions()
	case tabConversation:
		return m.renderConversation()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func bullet(text string) string {
	return bulletStyle.Render("  •") + "  " + text + "\n"
}

func none() string {
	return dimStyle.Render("  (none)") + "\n"
}

func (m *Model) renderOverview() string {
	mem := m.mem
	var sb strings.Builder
	sb.WriteString(heading("Project"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	if mem.Description != "" {
		row("Description:", mem.Description)
	}
	if len(mem.Stack) > 0 {
		row("Stack:", strings.Join(mem.Stack, ", "))
	}
	if mem.CurrentFocus != "" {
		row("Focus:", mem.CurrentFocus)
	}
	if !mem.LastUpdated.IsZero() {
		row("Updated:", mem.LastUpdated.Format("2006-01-02 15:04:05 MST"))
	}

	if len(mem.FocusHistory) > 0 {
		sb.WriteString(heading("Earlier Focus"))
		for i := len(mem.FocusHistory) - 1; i >= 0; i-- {
			sb.WriteString(bullet(mem.FocusHistory[i]))
		}
	}

	sb.WriteString(heading("Counts"))
	row("Tasks:", fmt.Sprintf("%d", len(mem.PendingTasks)))
	row("Gotchas:", fmt.Sprintf("%d", len(mem.Gotchas)))
	row("Decisions:", fmt.Sprintf("%d", len(mem.Decisions)))
	row("Files:", fmt.Sprintf("%d", len(mem.ImportantFiles)))
	row("Sessions:", fmt.Sprintf("%d", len(mem.RecentSessions)))
	return sb.String()
}

func (m *Model) renderTasks() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Pending Tasks (%d)", len(m.mem.PendingTasks))))
	if len(m.mem.PendingTasks) == 0 {
		sb.WriteString(none())
	}
	for i, t := range m.mem.PendingTasks {
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  %3d.", i+1)) + "  " + t + "\n")
	}
	sb.WriteString(heading(fmt.Sprintf("Gotchas (%d)", len(m.mem.Gotchas))))
	if len(m.mem.Gotchas) == 0 {
		sb.WriteString(none())
	}
	for _, g := range m.mem.Gotchas {
		sb.WriteString(bullet(g))
	}
	return sb.String()
}

func (m *Model) renderDecisions() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Decisions (%d)", len(m.mem.Decisions))))
	if len(m.mem.Decisions) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, d := range m.mem.Decisions {
		sb.WriteString(bullet(d.Decision))
		if d.Reason != "" {
			sb.WriteString(dimStyle.Render("       because "+d.Reason) + "\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderFiles() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Important Files (%d)", len(m.mem.ImportantFiles))))
	if len(m.mem.ImportantFiles) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, f := range m.mem.ImportantFiles {
		line := labelStyle.Render("  "+f.Path)
		if f.Purpose != "" {
			line += "  " + f.Purpose
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *Model) renderSessions() string {
	var sb strings.Builder
	sessions := m.mem.RecentSessions
	sb.WriteString(heading(fmt.Sprintf("Recent Sessions (%d)", len(sessions))))
	if len(sessions) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for i, s := range sessions {
		status := okStyle.Render("✓")
		if s.Failed {
			status = failedStyle.Render("✗")
		}
		toggle := dimStyle.Render("  ▶ ")
		if m.expandedSessions[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		ts := timeStyle.Render(s.StartedAt.Format("2006-01-02 15:04"))
		row := fmt.Sprintf("%s%s  %s  %s", toggle, status, ts, firstLine(s.Summary))
		if i == m.sessionCursor {
			row = selectedRowStyle.Width(max(m.width-2, 1)).Render(row)
		}
		sb.WriteString(row + "\n")

		if m.expandedSessions[i] {
			detail := func(label, value string) {
				if value != "" {
					sb.WriteString(labelStyle.Render(fmt.Sprintf("        %-10s", label)) + "  " + value + "\n")
				}
			}
			detail("ID:", s.ID)
			if s.EndedAt != nil {
				detail("Ended:", s.EndedAt.Format("2006-01-02 15:04:05"))
			}
			detail("Summary:", s.Summary)
			detail("Log:", s.LogPath)
			detail("Failure:", s.FailureReason)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m *Model) renderConversation() string {
	var sb strings.Builder
	turns := append([]transcript.Turn(nil), m.mem.LastConversationTurns...)
	dir := "oldest first"
	if m.newestFirst {
		dir = "newest first"
		for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
			turns[i], turns[j] = turns[j], turns[i]
		}
	}
	sb.WriteString(heading(fmt.Sprintf("Last Conversation (%d turns, %s)", len(turns), dir)))
	if len(turns) == 0 {
		sb.WriteString(none())
		return sb.String()
	}
	for _, t := range turns {
		badge := userStyle.Render(fmt.Sprintf("  %-10s", "USER"))
		if t.Role == transcript.RoleAssistant {
			badge = assistantStyle.Render(fmt.Sprintf("  %-10s", "ASSISTANT"))
		}
		ts := ""
		if !t.Timestamp.IsZero() {
			ts = timeStyle.Render(t.Timestamp.Format("15:04:05")) + " "
		}
		sb.WriteString(ts + badge + "\n" + indent(t.Content, "    ") + "\n\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func firstLine(s string) string {
	s, _, _ = strings.Cut(s, "\n")
	return s
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "\n")
}

// Run starts the TUI for the given memory.
func Run(m *memory.ProjectMemory, project string) error {
	p := tea.NewProgram(New(m, project), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
