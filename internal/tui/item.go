package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/idilsaglam/todos/internal/model"
	"github.com/idilsaglam/todos/internal/ui"
)

// listItem adapts a store entry to bubbles/list.Item.
type listItem struct {
	model.Entry
	busy bool // delete in flight, or the pending placeholder
}

func (i listItem) FilterValue() string { return i.Title }

// itemDelegate renders one todo per line. spin is the current spinner frame.
type itemDelegate struct {
	spin string
}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(listItem)
	if !ok {
		return
	}
	t := ui.Current()

	box := t.Muted.Render(t.BoxUnchecked)
	title := ui.Truncate(it.Title, 80)
	if it.Completed {
		box = t.Success.Render(t.BoxChecked)
		title = t.Done.Render(title)
	}
	if it.Pending() {
		title = t.Muted.Render(title)
	}

	line := fmt.Sprintf("%s %s", box, title)
	if it.busy {
		line += " " + d.spin
	}
	prefix := "  "
	if index == m.Index() && it.Saved() {
		prefix = t.Selected.Render(">") + " "
	}
	fmt.Fprint(w, prefix+line)
}
