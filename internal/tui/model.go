// Package tui provides an interactive browser for the retention plan of one
// archive base: which archives the policy keeps and which it would prune.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mcdonaldj/tarkeep/internal/backup"
	"github.com/mcdonaldj/tarkeep/internal/policy"
	"github.com/mcdonaldj/tarkeep/internal/ports"
)

// PlanItem is one archive with its keep/prune classification.
type PlanItem struct {
	Name string
	Time time.Time
	Keep bool
}

// Model is the plan browser TUI model.
type Model struct {
	store    ports.Store
	base     string
	rules    []policy.Rule
	now      func() time.Time
	items    []PlanItem
	cursor   int
	width    int
	height   int
	quitting bool
	pruning  bool

	// Status message
	statusMsg string
	statusErr bool
}

// Key bindings
type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Prune   key.Binding
	Refresh key.Binding
	Quit    key.Binding
}

var keys = keyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Prune: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete pruned"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c", "esc"),
		key.WithHelp("q", "quit"),
	),
}

// Messages
type planLoadedMsg struct {
	items []PlanItem
	err   error
}

type pruneDoneMsg struct {
	deleted int
	failed  int
	err     error
}

// NewModel creates a plan browser for the given base and rules.
func NewModel(store ports.Store, base string, rules []policy.Rule) Model {
	return Model{
		store: store,
		base:  base,
		rules: rules,
		now:   time.Now,
	}
}

// Run starts the interactive plan browser.
func Run(store ports.Store, base string, rules []policy.Rule) error {
	p := tea.NewProgram(NewModel(store, base, rules), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return m.loadPlan
}

// loadPlan lists the store and evaluates the policy.
func (m Model) loadPlan() tea.Msg {
	plan, err := backup.Preview(m.store, m.base, m.rules, m.now())
	if err != nil {
		return planLoadedMsg{err: err}
	}

	var items []PlanItem
	for _, a := range plan.Keep {
		items = append(items, PlanItem{Name: a.Name, Time: a.Time, Keep: true})
	}
	for _, a := range plan.Prune {
		items = append(items, PlanItem{Name: a.Name, Time: a.Time})
	}
	// Newest first, matching the store listing order.
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].Time.After(items[j-1].Time); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
	return planLoadedMsg{items: items}
}

// prunePlan deletes every prune-classified archive, continuing past
// individual failures.
func (m Model) prunePlan() tea.Msg {
	var done pruneDoneMsg
	for _, item := range m.items {
		if item.Keep {
			continue
		}
		if err := m.store.Delete(item.Name); err != nil {
			done.failed++
			done.err = err
			continue
		}
		done.deleted++
	}
	return done
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case planLoadedMsg:
		m.pruning = false
		if msg.err != nil {
			m.statusMsg = msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.items = msg.items
		if m.cursor >= len(m.items) {
			m.cursor = max(0, len(m.items)-1)
		}
		return m, nil

	case pruneDoneMsg:
		if msg.failed > 0 {
			m.statusMsg = fmt.Sprintf("deleted %d, %d failed: %v", msg.deleted, msg.failed, msg.err)
			m.statusErr = true
		} else {
			m.statusMsg = fmt.Sprintf("deleted %d archives", msg.deleted)
			m.statusErr = false
		}
		return m, m.loadPlan

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		case key.Matches(msg, keys.Refresh):
			m.statusMsg = ""
			return m, m.loadPlan
		case key.Matches(msg, keys.Prune):
			if m.pruning || m.pruneCount() == 0 {
				return m, nil
			}
			m.pruning = true
			m.statusMsg = "deleting pruned archives..."
			m.statusErr = false
			return m, m.prunePlan
		}
	}
	return m, nil
}

func (m Model) pruneCount() int {
	n := 0
	for _, item := range m.items {
		if !item.Keep {
			n++
		}
	}
	return n
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	s := titleStyle.Render(fmt.Sprintf(" tarkeep: %s ", m.base)) + "\n\n"

	if len(m.items) == 0 {
		s += dimStyle.Render("No archives found.") + "\n"
	}

	for i, item := range m.items {
		badge := pruneBadge.Render("PRUNE")
		if item.Keep {
			badge = keepBadge.Render("KEEP ")
		}

		line := fmt.Sprintf("%s  %s  %s", badge, item.Name,
			dimStyle.Render(item.Time.Format("2006-01-02 15:04:05")))
		if i == m.cursor {
			s += selectedStyle.Render("> ") + line + "\n"
		} else {
			s += normalStyle.Render("  ") + line + "\n"
		}
	}

	s += "\n" + dimStyle.Render(fmt.Sprintf("%d archives, %d to prune", len(m.items), m.pruneCount())) + "\n"

	if m.statusMsg != "" {
		if m.statusErr {
			s += errorBadge.Render("! ") + m.statusMsg + "\n"
		} else {
			s += keepBadge.Render("* ") + m.statusMsg + "\n"
		}
	}

	s += helpStyle.Render("↑/↓ move · d delete pruned · r refresh · q quit")
	return appStyle.Render(s)
}
