// Package tui is the interactive terminal view over a store.Store.
//
// The view keeps no todo state of its own: it renders store snapshots and
// forwards user actions to store methods, which run inside tea.Cmds.
package tui

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todos/internal/model"
	"github.com/idilsaglam/todos/internal/store"
)

// refocusDelay is how long the input stays blurred after a submit settles.
const refocusDelay = 100 * time.Millisecond

// Notifier forwards store changes to a running program. Pass Notify to
// store.WithOnChange before the program starts.
type Notifier struct {
	p atomic.Pointer[tea.Program]
}

// Notify asks the program to repaint. It never blocks the caller.
func (n *Notifier) Notify() {
	if p := n.p.Load(); p != nil {
		go p.Send(stateMsg{})
	}
}

// Run shows the UI until the user quits or ctx is cancelled.
func Run(ctx context.Context, st *store.Store, n *Notifier) error {
	p := tea.NewProgram(New(ctx, st), tea.WithAltScreen(), tea.WithContext(ctx))
	if n != nil {
		n.p.Store(p)
		defer n.p.Store(nil)
	}
	_, err := p.Run()
	return err
}

type (
	stateMsg   struct{}
	loadedMsg  struct{}
	addedMsg   struct{ ok bool }
	removedMsg struct{}
	clearedMsg struct{}
	focusMsg   struct{}
)

// Model is the Bubble Tea model.
type Model struct {
	ctx   context.Context
	store *store.Store
	state store.State

	list    list.Model
	input   textinput.Model
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	typing bool
	width  int
	height int
}

// New builds the model. Todos are fetched by Init.
func New(ctx context.Context, st *store.Store) Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot))

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "What needs to be done?"
	ti.CharLimit = 200

	l := list.New(nil, itemDelegate{}, 80, 16)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	m := Model{
		ctx:     ctx,
		store:   st,
		list:    l,
		input:   ti,
		spinner: sp,
		help:    help.New(),
		keys:    defaultKeys(),
		width:   80,
		height:  24,
	}
	m.input.Focus()
	m.typing = true
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadCmd(), m.spinner.Tick, textinput.Blink)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.resize()
		return m, nil

	case stateMsg, loadedMsg, removedMsg, clearedMsg:
		m.refresh()
		return m, nil

	case addedMsg:
		m.refresh()
		if msg.ok {
			m.input.SetValue(m.state.Draft)
		}
		return m, tea.Tick(refocusDelay, func(time.Time) tea.Msg { return focusMsg{} })

	case focusMsg:
		m.typing = true
		return m, m.input.Focus()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.list.SetDelegate(itemDelegate{spin: m.spinner.View()})
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.typing {
			return m.updateInput(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Leave):
		m.typing = false
		m.input.Blur()
		return m, nil
	case m.state.Submitting:
		// the input is disabled while a todo is being saved
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		title := m.input.Value()
		m.input.Blur()
		m.typing = false
		return m, m.addCmd(title)
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before {
		m.store.SetDraft(v)
		m.state.Draft = v
	}
	return m, cmd
}

func (m Model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Input):
		if m.state.Submitting {
			return m, nil
		}
		m.typing = true
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.Delete):
		it, ok := m.list.SelectedItem().(listItem)
		if !ok || !it.Saved() || it.busy {
			return m, nil
		}
		return m, m.removeCmd(it.ID)
	case key.Matches(msg, m.keys.Clear):
		if m.state.CompletedCount() == 0 {
			return m, nil
		}
		return m, m.clearCmd()
	case key.Matches(msg, m.keys.Filter):
		m.setFilter(m.state.Filter.Next())
		return m, nil
	case key.Matches(msg, m.keys.All):
		m.setFilter(model.FilterAll)
		return m, nil
	case key.Matches(msg, m.keys.Active):
		m.setFilter(model.FilterActive)
		return m, nil
	case key.Matches(msg, m.keys.Done):
		m.setFilter(model.FilterCompleted)
		return m, nil
	case key.Matches(msg, m.keys.Dismiss):
		m.store.DismissError()
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.Reload):
		return m, m.loadCmd()
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) setFilter(f model.Filter) {
	m.store.SetFilter(f)
	m.refresh()
	m.list.ResetSelected()
}

// refresh pulls a new snapshot and rebuilds the list items from it.
func (m *Model) refresh() {
	m.state = m.store.Snapshot()

	entries := m.state.Entries()
	items := make([]list.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, listItem{Entry: e, busy: e.Pending() || m.state.IsDeleting(e.ID)})
	}
	idx := m.list.Index()
	m.list.SetItems(items)
	if idx >= len(items) {
		idx = len(items) - 1
	}
	if idx >= 0 {
		m.list.Select(idx)
	}
}

// resize gives the list whatever the chrome around it leaves.
func (m *Model) resize() {
	chrome := 10
	if m.help.ShowAll {
		chrome += 4
	}
	h := m.height - chrome
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
}

func (m Model) loadCmd() tea.Cmd {
	st, ctx := m.store, m.ctx
	return func() tea.Msg {
		st.Load(ctx)
		return loadedMsg{}
	}
}

func (m Model) addCmd(title string) tea.Cmd {
	st, ctx := m.store, m.ctx
	return func() tea.Msg {
		return addedMsg{ok: st.Add(ctx, title)}
	}
}

func (m Model) removeCmd(id int) tea.Cmd {
	st, ctx := m.store, m.ctx
	return func() tea.Msg {
		st.Remove(ctx, id)
		return removedMsg{}
	}
}

func (m Model) clearCmd() tea.Cmd {
	st, ctx := m.store, m.ctx
	return func() tea.Msg {
		st.ClearCompleted(ctx)
		return clearedMsg{}
	}
}
