// Package cli dispatches the todos subcommands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/idilsaglam/todos/internal/api"
	"github.com/idilsaglam/todos/internal/auth"
	"github.com/idilsaglam/todos/internal/config"
	"github.com/idilsaglam/todos/internal/logging"
	"github.com/idilsaglam/todos/internal/model"
	"github.com/idilsaglam/todos/internal/store"
	"github.com/idilsaglam/todos/internal/tui"
	"github.com/idilsaglam/todos/internal/ui"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// Env is what the runner talks to besides the network.
type Env struct {
	Stdin          io.Reader
	Stdout, Stderr io.Writer

	// UI runs the interactive view. Nil means tui.Run.
	UI func(ctx context.Context, st *store.Store, n *tui.Notifier) error
}

// runner carries the per-invocation state shared by the subcommands.
type runner struct {
	env    Env
	cfg    *config.Config
	logger *log.Logger
}

// Run parses global flags, then dispatches the subcommand in args and
// returns an exit code. With no subcommand it starts the interactive view.
func Run(ctx context.Context, args []string, env Env) int {
	fs := flag.NewFlagSet(config.AppName, flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	fs.Usage = func() { PrintHelp(env.Stderr) }

	cfg, err := config.Load(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		ui.Fail(env.Stderr, err.Error())
		return ExitUsage
	}
	ui.SetTheme(cfg.Theme)

	cmd, a := "ui", fs.Args()
	if len(a) > 0 {
		cmd, a = a[0], a[1:]
	}

	r := &runner{env: env, cfg: cfg}

	if cmd == "ui" {
		l, closer, err := logging.NewFile(cfg.LogFile, cfg.LogLevel)
		if err != nil {
			ui.Fail(env.Stderr, err.Error())
			return ExitError
		}
		defer closer.Close()
		r.logger = l
	} else {
		r.logger = logging.New(env.Stderr, cfg.LogLevel)
	}

	switch cmd {
	case "help", "-h", "--help":
		PrintHelp(env.Stdout)
		return ExitOK

	case "ui":
		return r.doUI(ctx)

	case "ls":
		return r.doList(ctx, a)

	case "add":
		if len(a) == 0 {
			ui.Fail(env.Stderr, "usage: todos add <title...>")
			return ExitUsage
		}
		return r.doAdd(ctx, strings.Join(a, " "))

	case "rm":
		if len(a) != 1 {
			ui.Fail(env.Stderr, "usage: todos rm <id>")
			return ExitUsage
		}
		id, err := strconv.Atoi(a[0])
		if err != nil || id <= 0 {
			ui.Fail(env.Stderr, "rm: not a todo id: "+a[0])
			return ExitUsage
		}
		return r.doRemove(ctx, id)

	case "clear":
		return r.doClear(ctx)

	case "auth":
		if len(a) == 0 {
			ui.Fail(env.Stderr, "usage: todos auth <login|logout|status>")
			return ExitUsage
		}
		switch a[0] {
		case "login":
			return r.doAuthLogin()
		case "logout":
			return r.doAuthLogout()
		case "status":
			return r.doAuthStatus()
		default:
			ui.Fail(env.Stderr, "usage: todos auth <login|logout|status>")
			return ExitUsage
		}
	}

	ui.Fail(env.Stderr, "unknown subcommand: "+cmd)
	fmt.Fprintln(env.Stderr)
	PrintHelp(env.Stderr)
	return ExitUsage
}

func PrintHelp(w io.Writer) {
	fmt.Fprintf(w, `todos - todo lists from the terminal

Usage:
  todos [flags] [subcommand] [args]

Subcommands:
  ui                        Interactive view (default)
  ls [-filter F] [-group]   List todos (F: all, active, completed)
  add <title...>            Add a todo (title can be multiple words)
  rm <id>                   Delete the todo with id
  clear                     Delete every completed todo
  auth <login|logout|status>  Bearer token for the API

Flags:
  -config <path>      config file (default ~/.config/todos/config.toml)
  -api <url>          API base URL
  -user <id>          user whose todos are shown
  -theme <name>       classic, neon or mono
  -log-level <level>  debug, info, warn or error
  -log-file <path>    log file for the interactive view

Examples:
  todos -user 42 add "Buy milk"
  todos ls -filter active
  todos rm 3
`)
}

// -------------- store wiring ----------------

// newStore builds the API client and a store over it. n may be nil.
func (r *runner) newStore(n *tui.Notifier) (*store.Store, int) {
	if err := r.cfg.RequireUser(); err != nil {
		ui.Fail(r.env.Stderr, err.Error())
		return nil, ExitUsage
	}

	opts := []api.ClientOption{
		api.WithTimeout(r.cfg.RequestTimeout.Duration),
		api.WithLogger(r.logger),
	}
	ti, err := auth.GetToken(r.cfg.Dir)
	if err != nil {
		r.logger.Warn("ignoring stored token", "err", err)
	} else if ti != nil {
		opts = append(opts, api.WithToken(ti.Token))
	}

	client, err := api.NewClient(r.cfg.APIURL, opts...)
	if err != nil {
		ui.Fail(r.env.Stderr, err.Error())
		return nil, ExitUsage
	}

	sopts := []store.Option{
		store.WithLogger(r.logger),
		store.WithNoticeTimeout(r.cfg.NoticeTimeout.Duration),
		store.WithMaxParallelDeletes(r.cfg.MaxParallelDeletes),
	}
	if n != nil {
		sopts = append(sopts, store.WithOnChange(n.Notify))
	}
	return store.New(client, r.cfg.UserID, sopts...), ExitOK
}

// check turns a notice left by the last store call into an exit code.
func (r *runner) check(st *store.Store) int {
	if n := st.Snapshot().Notice; n.Active() {
		ui.Fail(r.env.Stderr, n.String())
		return ExitError
	}
	return ExitOK
}

// -------------- subcommand impls ----------------

func (r *runner) doUI(ctx context.Context) int {
	var n tui.Notifier
	st, code := r.newStore(&n)
	if st == nil {
		return code
	}
	run := r.env.UI
	if run == nil {
		run = tui.Run
	}
	r.logger.Info("starting ui", "user", r.cfg.UserID, "api", r.cfg.APIURL)
	if err := run(ctx, st, &n); err != nil && !errors.Is(err, context.Canceled) {
		ui.Fail(r.env.Stderr, "ui: "+err.Error())
		return ExitError
	}
	return ExitOK
}

func (r *runner) doList(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("ls", flag.ContinueOnError)
	fs.SetOutput(r.env.Stderr)
	filterName := fs.String("filter", "all", "all, active or completed")
	group := fs.Bool("group", false, "group output by active/completed")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	filter, err := model.ParseFilter(*filterName)
	if err != nil {
		ui.Fail(r.env.Stderr, err.Error())
		return ExitUsage
	}

	st, code := r.newStore(nil)
	if st == nil {
		return code
	}
	st.Load(ctx)
	if code := r.check(st); code != ExitOK {
		return code
	}
	st.SetFilter(filter)
	s := st.Snapshot()

	t := ui.Current()
	done, active := s.CompletedCount(), s.ActiveCount()
	header := fmt.Sprintf("%s  %s %d  %s %d  %s %d  %s",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), done,
		t.Pending.Render(t.SymPending), active,
		t.Accent.Render("Total"), len(s.Todos),
		t.Muted.Render("["+filter.Label()+"]"),
	)

	var lines []string
	lines = append(lines, header)
	lines = append(lines, t.Muted.Render(ui.ProgressBar(done, done+active, 28)))
	lines = append(lines, "")

	if *group {
		lines = append(lines, groupLines(s.Visible())...)
	} else {
		lines = append(lines, flatLines(s.Visible())...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Muted.Render(fmt.Sprintf("%d items left", active)))
	ui.Panel(r.env.Stdout, lines)
	return ExitOK
}

func (r *runner) doAdd(ctx context.Context, title string) int {
	st, code := r.newStore(nil)
	if st == nil {
		return code
	}
	if !st.Add(ctx, title) {
		if code := r.check(st); code != ExitOK {
			return code
		}
		return ExitError
	}
	todos := st.Snapshot().Todos
	ui.OK(r.env.Stdout, fmt.Sprintf("added #%d", todos[len(todos)-1].ID))
	return ExitOK
}

func (r *runner) doRemove(ctx context.Context, id int) int {
	st, code := r.newStore(nil)
	if st == nil {
		return code
	}
	st.Load(ctx)
	if code := r.check(st); code != ExitOK {
		return code
	}
	st.Remove(ctx, id)
	if code := r.check(st); code != ExitOK {
		return code
	}
	ui.OK(r.env.Stdout, fmt.Sprintf("removed #%d", id))
	return ExitOK
}

func (r *runner) doClear(ctx context.Context) int {
	st, code := r.newStore(nil)
	if st == nil {
		return code
	}
	st.Load(ctx)
	if code := r.check(st); code != ExitOK {
		return code
	}
	before := st.Snapshot().CompletedCount()
	st.ClearCompleted(ctx)
	after := st.Snapshot().CompletedCount()

	if code := r.check(st); code != ExitOK {
		fmt.Fprintf(r.env.Stderr, "cleared %d of %d\n", before-after, before)
		return code
	}
	ui.OK(r.env.Stdout, fmt.Sprintf("cleared %d", before-after))
	return ExitOK
}

// -------------- auth subcommands ----------------

func (r *runner) doAuthLogin() int {
	fmt.Fprint(r.env.Stdout, "Paste your token: ")
	var token string
	if _, err := fmt.Fscanln(r.env.Stdin, &token); err != nil {
		ui.Fail(r.env.Stderr, "read token: "+err.Error())
		return ExitError
	}
	if err := auth.SetToken(r.cfg.Dir, token, nil); err != nil {
		ui.Fail(r.env.Stderr, err.Error())
		return ExitError
	}
	ui.OK(r.env.Stdout, "logged in")
	return ExitOK
}

func (r *runner) doAuthLogout() int {
	ti, _ := auth.GetToken(r.cfg.Dir)
	if ti != nil && ti.Source == auth.SourceEnv {
		ui.OK(r.env.Stdout, "token is provided by "+auth.EnvToken+" (nothing to delete)")
		return ExitOK
	}
	if err := auth.DeleteToken(r.cfg.Dir); err != nil {
		ui.Fail(r.env.Stderr, "logout: "+err.Error())
		return ExitError
	}
	ui.OK(r.env.Stdout, "logged out")
	return ExitOK
}

func (r *runner) doAuthStatus() int {
	ti, err := auth.GetToken(r.cfg.Dir)
	if err != nil {
		ui.Fail(r.env.Stderr, err.Error())
		return ExitError
	}
	if ti == nil {
		fmt.Fprintln(r.env.Stdout, ui.Current().Muted.Render("not logged in"))
		fmt.Fprintln(r.env.Stdout, "Run: todos auth login")
		return ExitOK
	}
	fmt.Fprintf(r.env.Stdout, "source: %s\n", ti.Source)
	if ti.ExpiresAt != nil {
		fmt.Fprintf(r.env.Stdout, "expires: %s\n", ti.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		fmt.Fprintln(r.env.Stdout, "expires: (unknown)")
	}
	fmt.Fprintf(r.env.Stdout, "env override: %s\n", auth.EnvToken)
	return ExitOK
}

// -------------- rendering helpers --------------

func flatLines(todos []model.Todo) []string {
	t := ui.Current()
	if len(todos) == 0 {
		return []string{t.Muted.Render("no todos")}
	}
	out := make([]string, 0, len(todos))
	for _, td := range todos {
		id := fmt.Sprintf("#%-4d", td.ID)
		box, style := t.BoxUnchecked, t.Muted
		if td.Completed {
			box, style = t.BoxChecked, t.Success
		}
		out = append(out, fmt.Sprintf("%s %s %s",
			t.Muted.Render(id), style.Render(box), ui.Truncate(td.Title, 80)))
	}
	return out
}

func groupLines(todos []model.Todo) []string {
	var active, done []model.Todo
	for _, td := range todos {
		if td.Completed {
			done = append(done, td)
		} else {
			active = append(active, td)
		}
	}
	t := ui.Current()
	var lines []string
	lines = append(lines, t.Accent.Render("Active"))
	if len(active) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(active)...)
	}
	lines = append(lines, "")
	lines = append(lines, t.Accent.Render("Completed"))
	if len(done) == 0 {
		lines = append(lines, t.Muted.Render("(none)"))
	} else {
		lines = append(lines, flatLines(done)...)
	}
	return lines
}
