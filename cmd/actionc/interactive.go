package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tensorlane/actionc/compiler"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2D7D56")).
			Padding(0, 1)

	ctxStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#2D7D56"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

type browseState int

const (
	stateContexts browseState = iota
	stateOperations
	stateActions
)

type contextEntry struct {
	name string
	ctx  *compiler.Context
}

type browseModel struct {
	err      error
	filename string
	contexts []contextEntry
	viewport viewport.Model
	selCtx   int
	selOp    int
	width    int
	height   int
	state    browseState
	ready    bool
}

type programLoadedMsg struct {
	err      error
	contexts []contextEntry
}

func newBrowseModel(filename string) *browseModel {
	return &browseModel{filename: filename, state: stateContexts}
}

func (m *browseModel) Init() tea.Cmd {
	return m.loadProgram
}

func (m *browseModel) loadProgram() tea.Msg {
	prog, err := compile(m.filename)
	if err != nil {
		return programLoadedMsg{err: err}
	}

	var contexts []contextEntry
	if prog.Preliminary != nil {
		contexts = append(contexts, contextEntry{name: "preliminary", ctx: prog.Preliminary})
	}
	for i, ctx := range prog.Dynamic {
		contexts = append(contexts, contextEntry{name: fmt.Sprintf("context %d", i), ctx: ctx})
	}
	return programLoadedMsg{contexts: contexts}
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "up", "k":
			switch m.state {
			case stateContexts:
				if m.selCtx > 0 {
					m.selCtx--
				}
			case stateOperations:
				if m.selOp > 0 {
					m.selOp--
				}
			}

		case "down", "j":
			switch m.state {
			case stateContexts:
				if m.selCtx < len(m.contexts)-1 {
					m.selCtx++
				}
			case stateOperations:
				if m.selOp < len(m.contexts[m.selCtx].ctx.Operations)-1 {
					m.selOp++
				}
			}

		case "enter":
			switch m.state {
			case stateContexts:
				if len(m.contexts) > 0 {
					m.selOp = 0
					m.state = stateOperations
				}
			case stateOperations:
				m.viewport.SetContent(m.actionListing())
				m.viewport.GotoTop()
				m.state = stateActions
			}

		case "esc":
			switch m.state {
			case stateOperations:
				m.state = stateContexts
			case stateActions:
				m.state = stateOperations
			}
		}

	case programLoadedMsg:
		m.err = msg.err
		m.contexts = msg.contexts
	}

	if m.state == stateActions && m.ready {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *browseModel) actionListing() string {
	op := m.contexts[m.selCtx].ctx.Operations[m.selOp]
	var b strings.Builder
	for j, a := range op.Actions {
		line := fmt.Sprintf("%3d  %s", j, describeAction(a))
		if op.Repeated[j] {
			line += "  " + detailStyle.Render("(member)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func (m *browseModel) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
	}
	if len(m.contexts) == 0 {
		return "Compiling..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Action Program"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	switch m.state {
	case stateContexts:
		for i, e := range m.contexts {
			line := fmt.Sprintf("%s  %d ops, %d bytes",
				ctxStyle.Render(e.name), len(e.ctx.Operations), len(e.ctx.Image))
			if i == m.selCtx {
				line = selectedStyle.Render("> " + e.name)
				line += fmt.Sprintf("  %d ops, %d bytes", len(e.ctx.Operations), len(e.ctx.Image))
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • q quit"))

	case stateOperations:
		e := m.contexts[m.selCtx]
		b.WriteString(ctxStyle.Render(e.name))
		b.WriteString("\n\n")
		for i, op := range e.ctx.Operations {
			line := fmt.Sprintf("op %d  trigger=%s  %d actions", i, op.Trigger.Kind, len(op.Actions))
			if i == m.selOp {
				line = selectedStyle.Render("> " + line)
			} else {
				line = "  " + line
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter open • esc back • q quit"))

	case stateActions:
		e := m.contexts[m.selCtx]
		b.WriteString(fmt.Sprintf("%s op %d\n", ctxStyle.Render(e.name), m.selOp))
		b.WriteString(m.viewport.View())
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ scroll • esc back • q quit"))
	}

	return b.String()
}

func runInteractive(filename string) error {
	p := tea.NewProgram(newBrowseModel(filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
