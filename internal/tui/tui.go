// Package tui is the terminal front end: a chat transcript, a prompt line and
// the three output panels of the current project.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/project"
	"github.com/hpungsan/chatbox/internal/session"
)

// chrome is the number of rows outside the viewport: title, tab bar,
// error/status line, prompt and help.
const chrome = 6

// Model is the bubbletea model.
type Model struct {
	ctx    context.Context
	ctrl   *session.Controller
	cfg    *config.Config
	logger *zap.Logger

	state   session.State
	input   textinput.Model
	spinner spinner.Model
	vp      viewport.Model

	status string
	err    string
	ready  bool
	width  int
	height int
}

// New creates the model, seeded from the controller's current state.
func New(ctx context.Context, ctrl *session.Controller, cfg *config.Config, logger *zap.Logger) Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := ctrl.State()

	ti := textinput.New()
	ti.Placeholder = "Describe your project idea..."
	ti.Prompt = "> "
	ti.CharLimit = 2000
	ti.SetValue(s.Prompt)
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = modelStyle

	return Model{
		ctx:     ctx,
		ctrl:    ctrl,
		cfg:     cfg,
		logger:  logger.Named("tui"),
		state:   s,
		input:   ti,
		spinner: sp,
	}
}

// Run starts the program and blocks until the user quits or ctx is done.
func Run(ctx context.Context, ctrl *session.Controller, cfg *config.Config, logger *zap.Logger) error {
	m := New(ctx, ctrl, cfg, logger)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	unsubscribe := ctrl.Subscribe(func(s session.State) {
		p.Send(StateMsg(s))
	})
	defer unsubscribe()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := msg.Height - chrome
		if h < 1 {
			h = 1
		}
		if !m.ready {
			m.vp = viewport.New(msg.Width, h)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = h
		}
		m.input.Width = msg.Width - 4
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			text := m.input.Value()
			if m.state.Loading || strings.TrimSpace(text) == "" {
				return m, nil
			}
			m.input.Reset()
			m.err, m.status = "", ""
			return m, submitCmd(m.ctx, m.ctrl, text)

		case "tab":
			return m, selectTabCmd(m.ctrl, nextTab(m.state.ActiveTab, 1))
		case "shift+tab":
			return m, selectTabCmd(m.ctrl, nextTab(m.state.ActiveTab, -1))
		case "f1", "f2", "f3":
			i := int(msg.String()[1] - '1')
			return m, selectTabCmd(m.ctrl, session.Tabs[i])

		case "ctrl+s":
			if !m.state.HasProject() {
				m.err = errors.NewNoProject().Message
				return m, nil
			}
			m.status = "saving..."
			return m, saveCmd(m.ctx, m.ctrl, m.cfg)

		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}

	case StateMsg:
		wasLoading := m.state.Loading
		m.state = session.State(msg)
		if m.state.Error != "" {
			m.err = m.state.Error
		} else if m.state.Loading {
			m.err = ""
		}
		m.refresh()
		if m.state.Loading && !wasLoading {
			cmds = append(cmds, m.spinner.Tick)
		}
		if !m.state.Loading && wasLoading {
			m.vp.GotoBottom()
		}

	case SubmittedMsg:
		if !msg.Accepted {
			m.logger.Debug("submit was not accepted")
		}

	case SavedMsg:
		m.status = ""
		if msg.Err != nil {
			m.logger.Warn("save failed", zap.Error(msg.Err))
			m.err = userError(msg.Err)
		}
		if len(msg.Outputs) > 0 {
			paths := make([]string, 0, len(msg.Outputs))
			for _, out := range msg.Outputs {
				paths = append(paths, out.Path)
			}
			m.status = "saved " + strings.Join(paths, ", ")
		}

	case spinner.TickMsg:
		if m.state.Loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Arduino ChatBox"))
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")

	switch {
	case m.err != "":
		b.WriteString(errorStyle.Render("Error: " + m.err))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	}
	b.WriteString("\n")

	if m.state.Loading {
		b.WriteString(m.spinner.View() + " Generating project and schematic...")
	} else {
		b.WriteString(m.input.View())
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter: generate • tab/f1-f3: panels • ctrl+s: save artifacts • pgup/pgdown: scroll • ctrl+c: quit"))
	return b.String()
}

// refresh re-renders the viewport content from the current snapshot.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	m.vp.SetContent(m.renderTranscript() + "\n" + m.renderPanel())
}

func (m Model) renderTabs() string {
	parts := make([]string, 0, len(session.Tabs))
	for i, t := range session.Tabs {
		label := fmt.Sprintf("F%d %s", i+1, tabLabel(t))
		if t == m.state.ActiveTab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Chat"))
	b.WriteString("\n")
	for _, e := range m.state.Chat {
		var who string
		switch e.Role {
		case session.RoleUser:
			who = userStyle.Render("you")
		case session.RoleModel:
			who = modelStyle.Render("chatbox")
		default:
			who = systemStyle.Render("system")
		}
		fmt.Fprintf(&b, "%s %s %s\n", dimStyle.Render(e.CreatedAt.Format("15:04")), who, e.Content)
	}
	return b.String()
}

func (m Model) renderPanel() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(tabLabel(m.state.ActiveTab)))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", max(m.vp.Width-2, 10)))
	b.WriteString("\n")

	p := m.state.Project
	if p == nil {
		b.WriteString(dimStyle.Render("No project yet. Describe an idea and press enter."))
		return b.String()
	}

	switch m.state.ActiveTab {
	case session.TabCode:
		b.WriteString(headerStyle.Render(p.ProjectName))
		b.WriteString("\n")
		b.WriteString(p.Description)
		b.WriteString("\n\n")
		b.WriteString(p.ArduinoCode)
	case session.TabBOM:
		b.WriteString(renderBOM(p.BOM))
	case session.TabSchematic:
		b.WriteString(p.SchematicDescription)
		b.WriteString("\n\n")
		if n := len(project.DecodeSchematic(p.SchematicPNG)); n > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("schematic image: %d bytes, ctrl+s to save as %s",
				n, project.SchematicFilename(p.ProjectName))))
		} else {
			b.WriteString(errorStyle.Render(errors.MsgInvalidImageData))
		}
	}
	return b.String()
}

func renderBOM(items []project.BOMItem) string {
	if len(items) == 0 {
		return dimStyle.Render("No components listed.")
	}
	width := len("Component")
	for _, it := range items {
		width = max(width, len(it.Component))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%-*s  %4s  %s\n", width, "Component", "Qty", "Description")
	for _, it := range items {
		fmt.Fprintf(&b, "%-*s  %4d  %s\n", width, it.Component, it.Quantity, it.Description)
	}
	return b.String()
}

func nextTab(cur session.Tab, step int) session.Tab {
	n := len(session.Tabs)
	for i, t := range session.Tabs {
		if t == cur {
			return session.Tabs[((i+step)%n+n)%n]
		}
	}
	return session.Tabs[0]
}

func tabLabel(t session.Tab) string {
	switch t {
	case session.TabCode:
		return "Code"
	case session.TabBOM:
		return "Bill of Materials"
	case session.TabSchematic:
		return "Schematic"
	}
	return string(t)
}

// userError returns the user-facing text of err.
func userError(err error) string {
	if cErr, ok := errors.As(err); ok && cErr.Message != "" {
		return cErr.Message
	}
	return err.Error()
}
