package cli

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/polyforge/debugbridge/pkg/deps"
	"github.com/polyforge/debugbridge/pkg/errors"
	"github.com/polyforge/debugbridge/pkg/extension"
	"github.com/polyforge/debugbridge/pkg/prefs"
)

// List styles
var (
	panelSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	panelDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// panelCommand creates the "panel" command: an interactive dependency
// manager mirroring the in-application preferences panel.
func (c *CLI) panelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "panel",
		Short: "Interactive dependency manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ext, host, err := c.setup(ctx)
			if err != nil {
				return err
			}

			model := newPanelModel(ctx, ext, host.store)
			p := tea.NewProgram(model, tea.WithContext(ctx))
			final, err := p.Run()
			if err != nil {
				return err
			}
			if m, ok := final.(panelModel); ok && m.lastErr != nil {
				printError("%s", errors.UserMessage(m.lastErr))
			}
			return nil
		},
	}
}

// =============================================================================
// panelModel - Interactive dependency management
// =============================================================================

type panelStatesMsg struct {
	states []deps.State
	prefs  prefs.Preferences
}

type panelActionMsg struct {
	verb string
	err  error
}

// panelModel is the bubbletea model for the dependency panel.
type panelModel struct {
	ctx   context.Context
	ext   *extension.Extension
	store prefs.Store

	states  []deps.State
	prefs   prefs.Preferences
	cursor  int
	busy    bool
	status  string
	lastErr error
}

func newPanelModel(ctx context.Context, ext *extension.Extension, store prefs.Store) panelModel {
	return panelModel{ctx: ctx, ext: ext, store: store}
}

func (m panelModel) Init() tea.Cmd {
	return m.refresh()
}

// refresh re-reads dependency states and preferences off the UI loop.
func (m panelModel) refresh() tea.Cmd {
	ext, store := m.ext, m.store
	return func() tea.Msg {
		msg := panelStatesMsg{states: ext.Manager().States()}
		if p, err := store.Load(); err == nil {
			msg.prefs = p
		}
		return msg
	}
}

func (m panelModel) runAction(verb string, fn func(context.Context, ...string) error, pkg string) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return panelActionMsg{verb: verb, err: fn(ctx, pkg)}
	}
}

func (m panelModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.states)-1 {
				m.cursor++
			}
		case "i", "enter":
			if m.busy || len(m.states) == 0 {
				return m, nil
			}
			st := m.states[m.cursor]
			m.busy = true
			m.status = fmt.Sprintf("Installing %s...", st.Dependency.Package)
			return m, m.runAction("install", m.ext.InstallDependencies, st.Dependency.Package)
		case "u":
			if m.busy || len(m.states) == 0 {
				return m, nil
			}
			st := m.states[m.cursor]
			if !st.Installed {
				return m, nil
			}
			m.busy = true
			m.status = fmt.Sprintf("Removing %s...", st.Dependency.Package)
			return m, m.runAction("uninstall", m.ext.UninstallDependencies, st.Dependency.Package)
		case "r":
			if m.busy {
				return m, nil
			}
			return m, m.refresh()
		}

	case panelStatesMsg:
		m.states = msg.states
		m.prefs = msg.prefs
		if m.cursor >= len(m.states) && len(m.states) > 0 {
			m.cursor = len(m.states) - 1
		}

	case panelActionMsg:
		m.busy = false
		m.lastErr = msg.err
		if msg.err != nil {
			m.status = StyleWarning.Render(fmt.Sprintf("%s failed: %s", msg.verb, errors.UserMessage(msg.err)))
			return m, nil
		}
		m.status = StyleSuccess.Render(msg.verb + " complete")
		return m, m.refresh()
	}
	return m, nil
}

func (m panelModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Debugbridge Dependencies"))
	b.WriteString("\n")
	b.WriteString(panelDimStyle.Render("↑/↓ navigate  i install  u uninstall  r refresh  q quit"))
	b.WriteString("\n\n")

	rows := [][]string{}
	for i, st := range m.states {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		installed := styleIconError.Render(iconError)
		if st.Installed {
			installed = styleIconSuccess.Render(iconSuccess)
		}

		version := st.Version
		if version == "" {
			version = "—"
		}

		rows = append(rows, []string{cursor, st.Dependency.DisplayName, installed, version})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Dependency", "Installed", "Version").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			if row == m.cursor {
				return panelSelectedStyle
			}
			return lipgloss.NewStyle()
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")

	path := m.prefs.Path
	if path == "" {
		path = "(not configured)"
	}
	b.WriteString(panelDimStyle.Render(fmt.Sprintf("  path: %s  timeout: %ds  port: %d", path, m.prefs.Timeout, m.prefs.Port)))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString("\n  " + m.status + "\n")
	}

	return b.String()
}
