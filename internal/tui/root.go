package tui

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vnikonov63/chair22/internal/evalclient"
	"github.com/vnikonov63/chair22/internal/notebook"
	"github.com/vnikonov63/chair22/internal/session"
)

const (
	// resizeDebounce is how long typing must pause before a cell is resized
	resizeDebounce = 150 * time.Millisecond
	maxEditorLines = 12
	debugWidth     = 44
)

// Resolver yields the session id the notebook runs against
type Resolver interface {
	Resolve(ctx context.Context) (session.ID, error)
}

// Messages
type sessionResolvedMsg struct {
	id  session.ID
	err error
}

type cellCompletedMsg struct {
	completion notebook.Completion
}

// resizeHintMsg fires after typing in a cell pauses. seq guards against
// stale ticks: only the newest hint for a cell is applied.
type resizeHintMsg struct {
	cellID int
	seq    int
}

type spinnerTickMsg struct{}

// Spinner animation frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Model is the root Bubble Tea model. It is the single owner of the notebook:
// every change to the cells happens inside Update.
type Model struct {
	// Terminal dimensions
	width  int
	height int
	ready  bool

	// Session
	resolver     Resolver
	dispatcher   evalclient.Dispatcher
	runner       *notebook.Runner // nil until the session resolves
	sessionState session.State
	sessionErr   error
	apiBase      string

	// Cells
	nb       notebook.Notebook
	focus    int
	editor   textarea.Model
	viewport viewport.Model

	// Auto-sizing, keyed by cell id because indices move as cells are added
	heights   map[int]int
	resizeSeq map[int]int

	spinnerIndex int
	showHelp     bool
	keys         KeyMap
	debug        DebugPanel
	logger       *slog.Logger
}

// Options configures the root model
type Options struct {
	APIBase string
	Debug   bool
	Logger  *slog.Logger
}

// NewRootModel creates the notebook model. The session is resolved from
// Init; until then running cells is disabled.
func NewRootModel(resolver Resolver, dispatcher evalclient.Dispatcher, opts Options) Model {
	editor := textarea.New()
	editor.Placeholder = "Enter expression..."
	editor.ShowLineNumbers = false
	editor.Prompt = "❯ "
	editor.CharLimit = 0
	editor.MaxHeight = maxEditorLines
	editor.SetWidth(80)
	editor.SetHeight(1)

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	m := Model{
		resolver:     resolver,
		dispatcher:   dispatcher,
		sessionState: session.Resolving,
		apiBase:      opts.APIBase,
		nb:           notebook.New(),
		editor:       editor,
		viewport:     viewport.New(80, 20),
		heights:      make(map[int]int),
		resizeSeq:    make(map[int]int),
		keys:         DefaultKeyMap(),
		debug:        NewDebugPanel(opts.Debug),
		logger:       logger,
	}
	m.setFocus(0)
	return m
}

// Init resolves the session and starts the spinner
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		resolveSessionCmd(m.resolver),
		spinnerTickCmd(),
	)
}

// resolveSessionCmd runs session resolution off the event loop
func resolveSessionCmd(r Resolver) tea.Cmd {
	return func() tea.Msg {
		id, err := r.Resolve(context.Background())
		return sessionResolvedMsg{id: id, err: err}
	}
}

// runCellCmd performs one evaluation request. The completion is delivered
// back to Update; if the program has quit by then it is simply dropped.
func runCellCmd(r *notebook.Runner, sub notebook.Submission) tea.Cmd {
	return func() tea.Msg {
		return cellCompletedMsg{completion: r.Execute(context.Background(), sub)}
	}
}

func resizeHintCmd(cellID, seq int) tea.Cmd {
	return tea.Tick(resizeDebounce, func(time.Time) tea.Msg {
		return resizeHintMsg{cellID: cellID, seq: seq}
	})
}

// spinnerTickCmd returns a fast tick command for spinner animation
func spinnerTickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(time.Time) tea.Msg {
		return spinnerTickMsg{}
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case sessionResolvedMsg:
		if msg.err != nil {
			m.sessionState = session.Failed
			m.sessionErr = msg.err
			m.debug.AddEvent("session", "unavailable: %v", msg.err)
			m.logger.Warn("session unavailable, running disabled", "error", msg.err)
		} else {
			m.sessionState = session.Resolved
			m.runner = notebook.NewRunner(msg.id, m.dispatcher, m.logger)
			m.debug.AddEvent("session", "repl %s", msg.id)
		}
		m.refresh()
		return m, nil

	case cellCompletedMsg:
		c := msg.completion
		before := m.nb.Len()
		m.nb = m.nb.Apply(c)
		m.debug.AddEvent("complete", "cell %d -> %s", c.CellID, truncate(c.Output, 40))
		// follow the notebook as it grows from the focused cell
		if m.nb.Len() > before && m.focus == c.Index {
			m.setFocus(m.nb.Len() - 1)
		}
		m.refresh()
		return m, nil

	case resizeHintMsg:
		if msg.seq != m.resizeSeq[msg.cellID] {
			return m, nil
		}
		idx := m.nb.IndexOf(msg.cellID)
		if idx < 0 {
			return m, nil
		}
		c, _ := m.nb.Cell(idx)
		m.heights[msg.cellID] = editorHeight(c.Input)
		if idx == m.focus {
			m.editor.SetHeight(m.heights[msg.cellID])
		}
		m.refresh()
		return m, nil

	case spinnerTickMsg:
		if m.nb.InFlight() > 0 {
			m.spinnerIndex++
			m.refresh()
		}
		return m, spinnerTickCmd()

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help), msg.Type == tea.KeyEsc:
			m.showHelp = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Run):
		cmd := m.runFocused()
		m.refresh()
		return m, cmd

	case key.Matches(msg, m.keys.PrevCell):
		if m.focus > 0 {
			m.setFocus(m.focus - 1)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.NextCell):
		if m.focus < m.nb.Len()-1 {
			m.setFocus(m.focus + 1)
			m.refresh()
		}
		return m, nil

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m.edit(msg)
}

// edit forwards a key to the editor of the focused cell and mirrors the
// result into the notebook.
func (m Model) edit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	c, ok := m.nb.Cell(m.focus)
	if !ok || c.Status != notebook.Editable {
		return m, nil
	}

	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	value := m.editor.Value()
	if value == c.Input {
		return m, cmd
	}

	m.nb = m.nb.UpdateInput(m.focus, value)
	m.resizeSeq[c.ID]++
	m.refresh()
	return m, tea.Batch(cmd, resizeHintCmd(c.ID, m.resizeSeq[c.ID]))
}

// runFocused starts the focused cell. It is a no-op while the session is
// unavailable or when the cell has already been run.
func (m *Model) runFocused() tea.Cmd {
	if m.runner == nil {
		m.debug.AddEvent("run", "ignored: session %s", m.sessionState)
		return nil
	}

	next, sub, ok := m.nb.Begin(m.focus)
	if !ok {
		return nil
	}
	m.nb = next
	m.editor.Blur()
	m.debug.AddEvent("run", "cell %d %q", sub.CellID, truncate(sub.Input, 30))
	m.logger.Debug("cell submitted", "cell_id", sub.CellID, "index", sub.Index, "was_last", sub.WasLast)
	return runCellCmd(m.runner, sub)
}

// setFocus moves the cursor to the cell at index and loads it into the
// editor if it can still be edited.
func (m *Model) setFocus(index int) {
	m.focus = index
	c, ok := m.nb.Cell(index)
	if !ok || c.Status != notebook.Editable {
		m.editor.Blur()
		return
	}
	m.editor.SetValue(c.Input)
	m.editor.SetHeight(m.heightFor(c.ID))
	m.editor.Focus()
}

func (m Model) heightFor(cellID int) int {
	if h, ok := m.heights[cellID]; ok {
		return h
	}
	return 1
}

// editorHeight is the number of rows needed to show text without scrolling
func editorHeight(text string) int {
	lines := strings.Count(text, "\n") + 1
	if lines > maxEditorLines {
		return maxEditorLines
	}
	return lines
}

// layout sizes the viewport and editor for the current terminal
func (m *Model) layout() {
	cellsWidth := m.width
	if m.debug.IsEnabled() {
		cellsWidth -= debugWidth
	}
	bodyHeight := m.height - 3 // header, blank line, status bar
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	if cellsWidth < 20 {
		cellsWidth = 20
	}

	m.viewport.Width = cellsWidth
	m.viewport.Height = bodyHeight
	m.editor.SetWidth(cellsWidth - 4) // border + padding
}

// refresh re-renders the cells into the viewport, keeping the focused cell
// in view when it is the last one.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderCells())
	if m.focus == m.nb.Len()-1 {
		m.viewport.GotoBottom()
	}
}

// View renders the UI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.helpView()
	}
	return m.mainView()
}

func (m Model) mainView() string {
	body := m.viewport.View()
	if m.debug.IsEnabled() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.debug.Render(debugWidth, m.viewport.Height))
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		"",
		body,
		m.renderStatusBar(),
	)
}

func (m Model) renderHeader() string {
	title := HeaderStyle.Render("CHAIR22")
	subtitle := lipgloss.NewStyle().
		Foreground(ColorFgMuted).
		Render(" notebook")
	if m.apiBase != "" {
		subtitle += DimStyle.Render(" · " + m.apiBase)
	}
	return title + subtitle
}

func (m Model) renderCells() string {
	cells := m.nb.Cells()
	blocks := make([]string, 0, len(cells))
	for i, c := range cells {
		blocks = append(blocks, m.renderCell(i, c))
	}
	return lipgloss.JoinVertical(lipgloss.Left, blocks...)
}

func (m Model) renderCell(index int, c notebook.Cell) string {
	style := CellStyle
	if index == m.focus {
		style = FocusedCellStyle
	}

	var b strings.Builder
	b.WriteString(InPromptStyle.Render(fmt.Sprintf("In [%d]:", c.ID)))
	b.WriteString("\n")

	switch {
	case index == m.focus && c.Status == notebook.Editable:
		b.WriteString(m.editor.View())
	case c.Input == "":
		b.WriteString(DimStyle.Render("(empty)"))
	default:
		b.WriteString(InputTextStyle.Render(c.Input))
	}

	switch c.Status {
	case notebook.Pending:
		spinner := spinnerFrames[m.spinnerIndex%len(spinnerFrames)]
		b.WriteString("\n")
		b.WriteString(PendingStyle.Render(spinner + " evaluating…"))
	case notebook.Resolved:
		b.WriteString("\n")
		b.WriteString(OutPromptStyle.Render(fmt.Sprintf("Out[%d]:", c.ID)))
		b.WriteString("\n")
		if isErrorOutput(c.Output) {
			b.WriteString(ErrorStyle.Render(c.Output))
		} else {
			b.WriteString(OutputTextStyle.Render(c.Output))
		}
	}

	return style.Width(m.viewport.Width - 2).Render(b.String())
}

// isErrorOutput spots the error-shaped strings produced by failed runs and
// by the evaluator itself
func isErrorOutput(out string) bool {
	return strings.HasPrefix(out, "Server error:") || strings.HasPrefix(out, "Error:")
}

func (m Model) renderStatusBar() string {
	var status string
	switch m.sessionState {
	case session.Resolved:
		status = SuccessStyle.Render("● repl " + m.runner.SessionID().String())
	case session.Failed:
		status = ErrorStyle.Render("✗ session unavailable")
	default:
		status = WarningStyle.Render("◌ connecting")
	}

	if n := m.nb.InFlight(); n > 0 {
		status += StatusRunningStyle.Render(fmt.Sprintf(" │ running %d", n))
	} else {
		status += StatusIdleStyle.Render(" │ idle")
	}

	mutedStyle := lipgloss.NewStyle().Foreground(ColorFgMuted)
	keyStyle := lipgloss.NewStyle().Foreground(ColorFgPrimary)
	var hints []string
	for _, b := range m.keys.ShortHelp() {
		if b.Help().Key == m.keys.Run.Help().Key && m.runner == nil {
			continue // running is disabled without a session
		}
		hints = append(hints, keyStyle.Render(b.Help().Key)+mutedStyle.Render(" "+b.Help().Desc))
	}

	return StatusBarStyle.Render(status + mutedStyle.Render(" │ ") + strings.Join(hints, mutedStyle.Render(" │ ")))
}

func (m Model) helpView() string {
	title := HelpTitleStyle.Render("Keyboard Shortcuts")

	var rows []string
	for _, group := range m.keys.FullHelp() {
		for _, b := range group {
			rows = append(rows, HelpKeyStyle.Render(fmt.Sprintf("%-14s", b.Help().Key))+HelpDescStyle.Render(b.Help().Desc))
		}
		rows = append(rows, "")
	}

	content := title + "\n\n" + strings.Join(rows, "\n") + HelpDescStyle.Render("Press ctrl+g or Esc to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		HelpStyle.Render(content),
	)
}
