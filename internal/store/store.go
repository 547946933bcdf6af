// Package store owns the todo list state and every change made to it.
//
// Store methods never return collaborator errors. A failed request is
// logged and turned into a model.Notice that clears itself after the
// notice timeout, or earlier through DismissError.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/idilsaglam/todos/internal/api"
	"github.com/idilsaglam/todos/internal/logging"
	"github.com/idilsaglam/todos/internal/model"
)

// DefaultNoticeTimeout is how long an error banner stays up.
const DefaultNoticeTimeout = 3 * time.Second

// Store is the single owner of the todo list. All mutations go through its
// methods and are serialized by mu.
type Store struct {
	svc    api.TodoService
	userID int

	logger        *log.Logger
	clock         Clock
	noticeTimeout time.Duration
	maxDeletes    int
	onChange      func()

	mu          sync.Mutex
	todos       []model.Todo
	filter      model.Filter
	placeholder *model.Todo
	submitting  bool
	loading     bool
	loaded      bool
	draft       string
	deleting    map[int]bool
	notice      model.Notice
	noticeTimer Timer
	noticeGen   uint64
}

// Option configures a Store.
type Option func(*Store)

func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithClock replaces the timer source used for notice auto-clear.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithNoticeTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.noticeTimeout = d
		}
	}
}

// WithMaxParallelDeletes bounds concurrent requests in ClearCompleted.
// Zero means no bound.
func WithMaxParallelDeletes(n int) Option {
	return func(s *Store) { s.maxDeletes = n }
}

// WithOnChange registers f to run after every state change. It is called
// without the store lock held, possibly from a timer goroutine.
func WithOnChange(f func()) Option {
	return func(s *Store) { s.onChange = f }
}

// New returns an empty store for userID backed by svc.
func New(svc api.TodoService, userID int, opts ...Option) *Store {
	s := &Store{
		svc:           svc,
		userID:        userID,
		logger:        logging.Discard(),
		clock:         realClock{},
		noticeTimeout: DefaultNoticeTimeout,
		deleting:      make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot copies the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Todos:      append([]model.Todo(nil), s.todos...),
		Filter:     s.filter,
		Submitting: s.submitting,
		Loading:    s.loading,
		Loaded:     s.loaded,
		Notice:     s.notice,
		Draft:      s.draft,
		deleting:   make(map[int]bool, len(s.deleting)),
	}
	if s.placeholder != nil {
		p := *s.placeholder
		st.Placeholder = &p
	}
	for id := range s.deleting {
		st.deleting[id] = true
	}
	return st
}

// Load replaces the list with the user's todos from the service.
func (s *Store) Load(ctx context.Context) {
	s.update(func() { s.loading = true })

	todos, err := s.svc.List(ctx, s.userID)

	s.update(func() {
		s.loading = false
		if err != nil {
			s.logger.Error("load todos", "user", s.userID, "err", err)
			s.setNotice(model.NoticeLoadFailed)
			return
		}
		s.todos = append([]model.Todo(nil), todos...)
		s.loaded = true
		s.logger.Debug("loaded todos", "count", len(todos))
	})
}

// Add creates a todo from rawTitle. While the request is in flight the
// store shows a placeholder with id 0. It reports whether the todo was
// saved. Adds are ignored while another one is submitting.
func (s *Store) Add(ctx context.Context, rawTitle string) bool {
	title := strings.TrimSpace(rawTitle)

	s.mu.Lock()
	if title == "" {
		s.setNotice(model.NoticeEmptyTitle)
		s.mu.Unlock()
		s.changed()
		return false
	}
	if s.submitting {
		s.mu.Unlock()
		return false
	}
	s.submitting = true
	s.placeholder = &model.Todo{ID: 0, UserID: s.userID, Title: rawTitle}
	s.mu.Unlock()
	s.changed()

	created, err := s.svc.Create(ctx, s.userID, title)

	s.update(func() {
		s.submitting = false
		s.placeholder = nil
		if err != nil {
			s.logger.Error("add todo", "title", title, "err", err)
			s.setNotice(model.NoticeAddFailed)
			return
		}
		s.todos = append(s.todos, created)
		s.draft = ""
	})
	return err == nil
}

// Remove deletes the todo with id. The entry leaves the list only after the
// service confirms; an id that is not in the list is not an error. It
// reports whether the delete request succeeded.
func (s *Store) Remove(ctx context.Context, id int) bool {
	s.update(func() { s.deleting[id] = true })

	err := s.deleteOne(ctx, id)

	s.update(func() {
		delete(s.deleting, id)
		if err != nil {
			s.setNotice(model.NoticeDeleteFailed)
			return
		}
		s.removeIDs(map[int]bool{id: true})
	})
	return err == nil
}

// ClearCompleted deletes every completed todo. Deletes run concurrently and
// all of them are attempted; the list is updated once after every request
// has settled. Todos whose delete failed stay in the list.
func (s *Store) ClearCompleted(ctx context.Context) {
	s.mu.Lock()
	var ids []int
	for _, t := range s.todos {
		// a Remove already in flight owns that id
		if t.Completed && !s.deleting[t.ID] {
			ids = append(ids, t.ID)
			s.deleting[t.ID] = true
		}
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		return
	}
	s.changed()

	ok, err := s.deleteAll(ctx, ids)

	s.update(func() {
		removed := make(map[int]bool, len(ids))
		failed := 0
		for i, id := range ids {
			delete(s.deleting, id)
			if ok[i] {
				removed[id] = true
			} else {
				failed++
			}
		}
		s.removeIDs(removed)

		switch {
		case err != nil:
			s.logger.Error("clear completed", "err", err)
			s.setNotice(model.NoticeClearFailed)
		case failed > 0:
			s.logger.Warn("clear completed: some deletes failed", "failed", failed, "total", len(ids))
			s.setNotice(model.NoticePartialDeleteFailed)
		}
	})
}

// deleteAll runs one delete per id and waits for all of them. ok[i] is true
// when ids[i] was deleted. err is set only when the group itself failed, not
// when a single delete did.
func (s *Store) deleteAll(ctx context.Context, ids []int) (ok []bool, err error) {
	ok = make([]bool, len(ids))
	if err := ctx.Err(); err != nil {
		return ok, fmt.Errorf("dispatch deletes: %w", err)
	}

	var g errgroup.Group
	if s.maxDeletes > 0 {
		g.SetLimit(s.maxDeletes)
	}
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			err := s.deleteOne(ctx, id)
			var pe *panicError
			if errors.As(err, &pe) {
				return err
			}
			ok[i] = err == nil
			return nil
		})
	}
	return ok, g.Wait()
}

// panicError is a delete that panicked inside the service.
type panicError struct {
	id    int
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("delete todo %d: panic: %v", e.id, e.value)
}

// deleteOne calls the service, turning a panic into a *panicError.
func (s *Store) deleteOne(ctx context.Context, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{id: id, value: r}
		}
		if err != nil {
			s.logger.Error("delete todo", "id", id, "err", err)
		}
	}()
	return s.svc.Delete(ctx, id)
}

// SetFilter changes which todos Visible returns.
func (s *Store) SetFilter(f model.Filter) {
	s.update(func() { s.filter = f })
}

// SetDraft records the text typed into the new-todo input.
func (s *Store) SetDraft(text string) {
	s.update(func() { s.draft = text })
}

// DismissError clears the notice now and cancels its pending auto-clear.
func (s *Store) DismissError() {
	s.update(func() { s.clearNotice() })
}

// update runs f under the lock and then notifies.
func (s *Store) update(f func()) {
	s.mu.Lock()
	f()
	s.mu.Unlock()
	s.changed()
}

func (s *Store) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

// removeIDs drops every todo whose id is in ids, keeping order.
// Caller holds mu.
func (s *Store) removeIDs(ids map[int]bool) {
	if len(ids) == 0 {
		return
	}
	kept := s.todos[:0]
	for _, t := range s.todos {
		if !ids[t.ID] {
			kept = append(kept, t)
		}
	}
	s.todos = kept
}

// setNotice shows n and schedules its auto-clear. A newer notice replaces
// the older one's timer. Caller holds mu.
func (s *Store) setNotice(n model.Notice) {
	s.stopNoticeTimer()
	s.notice = n
	gen := s.noticeGen
	s.noticeTimer = s.clock.AfterFunc(s.noticeTimeout, func() {
		s.mu.Lock()
		if s.noticeGen != gen {
			s.mu.Unlock()
			return
		}
		s.notice = model.NoticeNone
		s.noticeTimer = nil
		s.mu.Unlock()
		s.changed()
	})
}

// clearNotice hides the notice. Caller holds mu.
func (s *Store) clearNotice() {
	s.stopNoticeTimer()
	s.notice = model.NoticeNone
}

// stopNoticeTimer cancels any pending auto-clear. Bumping noticeGen makes a
// timer that already fired a no-op. Caller holds mu.
func (s *Store) stopNoticeTimer() {
	s.noticeGen++
	if s.noticeTimer != nil {
		s.noticeTimer.Stop()
		s.noticeTimer = nil
	}
}
