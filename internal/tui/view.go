package tui

import (
	"fmt"
	"strings"

	"github.com/idilsaglam/todos/internal/model"
	"github.com/idilsaglam/todos/internal/store"
	"github.com/idilsaglam/todos/internal/ui"
)

func (m Model) View() string {
	var b strings.Builder
	t := ui.Current()

	b.WriteString(t.Title.Render("todos"))
	b.WriteString("\n\n")
	b.WriteString(m.headerView())
	b.WriteString("\n")

	switch {
	case m.state.Loading && !m.state.Loaded:
		b.WriteString("\n" + m.spinner.View() + " " + t.Muted.Render("Loading todos..."))
		b.WriteString("\n")
	case len(m.state.Entries()) > 0:
		b.WriteString("\n" + m.list.View() + "\n")
	}

	if m.state.HasTodos() {
		b.WriteString("\n" + footerView(m.state) + "\n")
	}
	if banner := bannerView(m.state.Notice); banner != "" {
		b.WriteString("\n" + banner + "\n")
	}
	b.WriteString("\n" + m.help.View(m.keys))

	return ui.PanelString(b.String())
}

// headerView is the toggle-all marker followed by the new-todo input.
func (m Model) headerView() string {
	t := ui.Current()
	toggle := t.Muted.Render(t.SymPending)
	if m.state.AllCompleted() {
		toggle = t.Success.Render(t.SymDone)
	}
	input := m.input.View()
	if m.state.Submitting {
		input = t.Muted.Render("> "+m.state.Draft) + " " + m.spinner.View()
	}
	return toggle + " " + input
}

// footerView shows the active counter, the filter tabs and the clear action.
func footerView(st store.State) string {
	t := ui.Current()

	counter := fmt.Sprintf("%d items left", st.ActiveCount())

	tabs := make([]string, 0, len(model.Filters()))
	for _, f := range model.Filters() {
		label := f.Label()
		if f == st.Filter {
			tabs = append(tabs, t.Accent.Render("["+label+"]"))
		} else {
			tabs = append(tabs, t.Muted.Render(" "+label+" "))
		}
	}

	clearLabel := "Clear completed"
	if st.CompletedCount() == 0 {
		clearLabel = t.Muted.Render(clearLabel)
	} else {
		clearLabel = t.Pending.Render(clearLabel)
	}

	return counter + "   " + strings.Join(tabs, " ") + "   " + clearLabel
}

func bannerView(n model.Notice) string {
	if !n.Active() {
		return ""
	}
	t := ui.Current()
	return t.Error.Render(t.SymFail+" "+n.String()) + "  " + t.Muted.Render("(x to hide)")
}
