package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Input   key.Binding
	Submit  key.Binding
	Leave   key.Binding
	Delete  key.Binding
	Clear   key.Binding
	Filter  key.Binding
	All     key.Binding
	Active  key.Binding
	Done    key.Binding
	Dismiss key.Binding
	Reload  key.Binding
	Up      key.Binding
	Down    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Input:   key.NewBinding(key.WithKeys("a", "i", "tab"), key.WithHelp("a", "new todo")),
		Submit:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save")),
		Leave:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back to list")),
		Delete:  key.NewBinding(key.WithKeys("d", "delete"), key.WithHelp("d", "delete")),
		Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear completed")),
		Filter:  key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "next filter")),
		All:     key.NewBinding(key.WithKeys("1"), key.WithHelp("1", "all")),
		Active:  key.NewBinding(key.WithKeys("2"), key.WithHelp("2", "active")),
		Done:    key.NewBinding(key.WithKeys("3"), key.WithHelp("3", "completed")),
		Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "hide error")),
		Reload:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Input, k.Delete, k.Filter, k.Clear, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Input, k.Submit, k.Leave},
		{k.Up, k.Down, k.Delete, k.Clear},
		{k.Filter, k.All, k.Active, k.Done},
		{k.Dismiss, k.Reload, k.Help, k.Quit},
	}
}
