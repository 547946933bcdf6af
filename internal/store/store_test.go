package store_test

import (
	"context"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/idilsaglam/todos/internal/model"
	"github.com/idilsaglam/todos/internal/store"
	"github.com/idilsaglam/todos/internal/testutil"
)

const user = 7

func newStore(t *testing.T, svc *testutil.FakeService, opts ...store.Option) (*store.Store, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock()
	opts = append([]store.Option{store.WithClock(clock)}, opts...)
	return store.New(svc, user, opts...), clock
}

func loaded(t *testing.T, todos ...model.Todo) (*store.Store, *testutil.FakeService, *testutil.FakeClock) {
	t.Helper()
	svc := testutil.NewFakeService(todos...)
	s, clock := newStore(t, svc)
	s.Load(context.Background())
	if n := s.Snapshot().Notice; n != model.NoticeNone {
		t.Fatalf("load: unexpected notice %v", n)
	}
	return s, svc, clock
}

func ids(todos []model.Todo) []int {
	out := []int{}
	for _, t := range todos {
		out = append(out, t.ID)
	}
	return out
}

func TestLoadReplacesTodosInOrder(t *testing.T) {
	s, _, _ := loaded(t,
		model.Todo{ID: 3, UserID: user, Title: "c"},
		model.Todo{ID: 1, UserID: user, Title: "a"},
		model.Todo{ID: 9, UserID: 8, Title: "other user"},
	)
	st := s.Snapshot()
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{3, 1}) {
		t.Errorf("todos: got %v, want [3 1]", got)
	}
	if !st.Loaded || st.Loading {
		t.Errorf("Loaded=%v Loading=%v", st.Loaded, st.Loading)
	}
}

func TestLoadFailureSetsNoticeAndAutoClears(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.ListErr = testutil.ErrTransport
	s, clock := newStore(t, svc)

	s.Load(context.Background())
	if got := s.Snapshot().Notice; got != model.NoticeLoadFailed {
		t.Fatalf("notice: got %v, want LoadFailed", got)
	}
	clock.Advance(2999 * time.Millisecond)
	if got := s.Snapshot().Notice; got != model.NoticeLoadFailed {
		t.Fatalf("notice cleared too early: %v", got)
	}
	clock.Advance(time.Millisecond)
	if got := s.Snapshot().Notice; got != model.NoticeNone {
		t.Errorf("notice after 3s: got %v, want none", got)
	}
}

func TestAddAppendsServerTodo(t *testing.T) {
	s, svc, _ := loaded(t, model.Todo{ID: 1, UserID: user, Title: "first"})
	s.SetDraft("  Buy milk  ")

	if !s.Add(context.Background(), "  Buy milk  ") {
		t.Fatal("Add returned false")
	}
	st := s.Snapshot()
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{1, 2}) {
		t.Fatalf("todos: got %v, want [1 2]", got)
	}
	if st.Todos[1].Title != "Buy milk" {
		t.Errorf("title: got %q", st.Todos[1].Title)
	}
	if st.Placeholder != nil || st.Submitting {
		t.Errorf("placeholder=%v submitting=%v after add", st.Placeholder, st.Submitting)
	}
	if st.Draft != "" {
		t.Errorf("draft should be cleared, got %q", st.Draft)
	}
	if calls := svc.Calls(); calls[len(calls)-1] != "create Buy milk" {
		t.Errorf("create should send trimmed title, calls: %v", calls)
	}
}

func TestAddShowsPlaceholderWhileSubmitting(t *testing.T) {
	svc := testutil.NewFakeService()
	s, _ := newStore(t, svc)

	var during store.State
	svc.OnCreate = func(string) { during = s.Snapshot() }
	s.Add(context.Background(), "Walk dog")

	if !during.Submitting {
		t.Error("Submitting should be true while create is in flight")
	}
	if during.Placeholder == nil || during.Placeholder.ID != 0 || during.Placeholder.Title != "Walk dog" {
		t.Fatalf("placeholder during create: %+v", during.Placeholder)
	}
	entries := during.Entries()
	if len(entries) != 1 || !entries[0].Pending() {
		t.Errorf("entries during create: %+v", entries)
	}
	if got := s.Snapshot().Entries(); len(got) != 1 || got[0].Pending() || got[0].ID != 1 {
		t.Errorf("entries after create: %+v", got)
	}
}

func TestAddPlaceholderKeepsTypedTitle(t *testing.T) {
	svc := testutil.NewFakeService()
	s, _ := newStore(t, svc)

	var placeholder string
	svc.OnCreate = func(string) { placeholder = s.Snapshot().Placeholder.Title }
	s.Add(context.Background(), "  Walk dog ")

	if placeholder != "  Walk dog " {
		t.Errorf("placeholder title: got %q", placeholder)
	}
	if calls := svc.Calls(); len(calls) != 1 || calls[0] != "create Walk dog" {
		t.Errorf("create should get the trimmed title, calls: %v", calls)
	}
	if got := s.Snapshot().Todos; len(got) != 1 || got[0].Title != "Walk dog" {
		t.Errorf("todos after create: %+v", got)
	}
}

func TestAddEmptyTitle(t *testing.T) {
	for _, title := range []string{"", "   ", "\t\n"} {
		svc := testutil.NewFakeService()
		s, clock := newStore(t, svc)

		if s.Add(context.Background(), title) {
			t.Errorf("Add(%q) returned true", title)
		}
		if n := svc.CallCount("create"); n != 0 {
			t.Errorf("Add(%q) issued %d create requests", title, n)
		}
		if got := s.Snapshot().Notice; got != model.NoticeEmptyTitle {
			t.Errorf("Add(%q) notice: got %v", title, got)
		}
		clock.Advance(store.DefaultNoticeTimeout)
		if got := s.Snapshot().Notice; got != model.NoticeNone {
			t.Errorf("EmptyTitle should auto-clear, got %v", got)
		}
	}
}

func TestAddFailureDiscardsPlaceholder(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.CreateErr = testutil.ErrTransport
	s, _ := newStore(t, svc)
	s.SetDraft("Buy milk")

	if s.Add(context.Background(), "Buy milk") {
		t.Fatal("Add returned true on failure")
	}
	st := s.Snapshot()
	if st.Notice != model.NoticeAddFailed {
		t.Errorf("notice: got %v, want AddFailed", st.Notice)
	}
	if st.Placeholder != nil || len(st.Entries()) != 0 || st.HasTodos() {
		t.Errorf("failed add left residue: %+v", st)
	}
	if st.Submitting {
		t.Error("Submitting should be false after failure")
	}
	if st.Draft != "Buy milk" {
		t.Errorf("draft should survive a failed add, got %q", st.Draft)
	}
}

func TestAddIgnoredWhileSubmitting(t *testing.T) {
	svc := testutil.NewFakeService()
	s, _ := newStore(t, svc)

	var nested bool
	svc.OnCreate = func(title string) {
		if title == "first" {
			nested = s.Add(context.Background(), "second")
		}
	}
	s.Add(context.Background(), "first")

	if nested {
		t.Error("second Add should be ignored while the first is submitting")
	}
	if n := svc.CallCount("create"); n != 1 {
		t.Errorf("expected 1 create, got %d", n)
	}
}

func TestRemove(t *testing.T) {
	s, svc, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a"},
		model.Todo{ID: 2, UserID: user, Title: "b"},
	)

	var deletingDuring bool
	svc.OnDelete = func(id int) { deletingDuring = s.Snapshot().IsDeleting(id) }

	if !s.Remove(context.Background(), 1) {
		t.Fatal("Remove returned false")
	}
	st := s.Snapshot()
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("todos: got %v, want [2]", got)
	}
	if !deletingDuring {
		t.Error("IsDeleting should be true while the request is in flight")
	}
	if st.IsDeleting(1) {
		t.Error("IsDeleting should be false after settle")
	}
}

func TestRemoveMissingIDIsNoop(t *testing.T) {
	s, _, _ := loaded(t, model.Todo{ID: 1, UserID: user, Title: "a"})

	if !s.Remove(context.Background(), 42) {
		t.Fatal("Remove(missing) returned false")
	}
	st := s.Snapshot()
	if st.Notice != model.NoticeNone {
		t.Errorf("notice: got %v, want none", st.Notice)
	}
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("todos: got %v, want [1]", got)
	}
}

func TestRemoveFailureKeepsItem(t *testing.T) {
	s, svc, _ := loaded(t, model.Todo{ID: 1, UserID: user, Title: "a"})
	svc.FailDelete(1)

	if s.Remove(context.Background(), 1) {
		t.Fatal("Remove returned true on failure")
	}
	st := s.Snapshot()
	if st.Notice != model.NoticeDeleteFailed {
		t.Errorf("notice: got %v, want DeleteFailed", st.Notice)
	}
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("todos: got %v, want [1]", got)
	}
}

func TestRemovePanicBecomesDeleteFailed(t *testing.T) {
	s, svc, _ := loaded(t, model.Todo{ID: 1, UserID: user, Title: "a"})
	svc.PanicOnDelete = 1

	if s.Remove(context.Background(), 1) {
		t.Fatal("Remove returned true after a panic")
	}
	st := s.Snapshot()
	if st.Notice != model.NoticeDeleteFailed {
		t.Errorf("notice: got %v, want DeleteFailed", st.Notice)
	}
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("todos: got %v, want [1]", got)
	}
	if st.IsDeleting(1) {
		t.Error("IsDeleting should be false after settle")
	}
}

func TestClearCompletedSkipsRemoveInFlight(t *testing.T) {
	s, svc, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a", Completed: true},
		model.Todo{ID: 2, UserID: user, Title: "b", Completed: true},
	)

	var stillDeleting bool
	svc.OnDelete = func(id int) {
		if id != 1 {
			return
		}
		// Clear while the single delete of 1 is still waiting on the server.
		s.ClearCompleted(context.Background())
		stillDeleting = s.Snapshot().IsDeleting(1)
	}

	if !s.Remove(context.Background(), 1) {
		t.Fatal("Remove returned false")
	}

	if n := svc.CallCount("delete 1"); n != 1 {
		t.Errorf("todo 1 should be deleted once, got %d requests", n)
	}
	if n := svc.CallCount("delete 2"); n != 1 {
		t.Errorf("todo 2 should be deleted once, got %d requests", n)
	}
	if !stillDeleting {
		t.Error("clear should leave the in-flight remove marker alone")
	}
	st := s.Snapshot()
	if st.HasTodos() || st.Notice != model.NoticeNone {
		t.Errorf("todos=%v notice=%v", st.Todos, st.Notice)
	}
}

func TestClearCompletedPartialFailure(t *testing.T) {
	s, svc, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a", Completed: true},
		model.Todo{ID: 2, UserID: user, Title: "b"},
		model.Todo{ID: 3, UserID: user, Title: "c", Completed: true},
	)
	svc.FailDelete(3)

	s.ClearCompleted(context.Background())

	st := s.Snapshot()
	want := []model.Todo{
		{ID: 2, UserID: user, Title: "b"},
		{ID: 3, UserID: user, Title: "c", Completed: true},
	}
	if !reflect.DeepEqual(st.Todos, want) {
		t.Errorf("todos: got %+v, want %+v", st.Todos, want)
	}
	if st.Notice != model.NoticePartialDeleteFailed {
		t.Errorf("notice: got %v, want PartialDeleteFailed", st.Notice)
	}
	if n := svc.CallCount("delete"); n != 2 {
		t.Errorf("expected 2 delete requests, got %d", n)
	}
}

func TestClearCompletedAttemptsEveryDelete(t *testing.T) {
	s, svc, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a", Completed: true},
		model.Todo{ID: 2, UserID: user, Title: "b", Completed: true},
		model.Todo{ID: 3, UserID: user, Title: "c", Completed: true},
		model.Todo{ID: 4, UserID: user, Title: "d"},
	)
	svc.FailDelete(1, 2)

	s.ClearCompleted(context.Background())

	if n := svc.CallCount("delete"); n != 3 {
		t.Errorf("every delete must be attempted, got %d requests", n)
	}
	if got := ids(s.Snapshot().Todos); !reflect.DeepEqual(got, []int{1, 2, 4}) {
		t.Errorf("todos: got %v, want [1 2 4]", got)
	}
}

func TestClearCompletedRunsConcurrently(t *testing.T) {
	todos := []model.Todo{
		{ID: 1, UserID: user, Title: "a", Completed: true},
		{ID: 2, UserID: user, Title: "b", Completed: true},
		{ID: 3, UserID: user, Title: "c", Completed: true},
	}
	s, svc, _ := loaded(t, todos...)

	var started sync.WaitGroup
	started.Add(len(todos))
	all := make(chan struct{})
	go func() {
		started.Wait()
		close(all)
	}()
	var overlapped atomic.Bool
	overlapped.Store(true)
	svc.OnDelete = func(int) {
		started.Done()
		select {
		case <-all:
		case <-time.After(2 * time.Second):
			overlapped.Store(false)
		}
	}

	s.ClearCompleted(context.Background())

	if !overlapped.Load() {
		t.Error("deletes did not overlap")
	}
	if s.Snapshot().HasTodos() {
		t.Errorf("all completed todos should be gone: %+v", s.Snapshot().Todos)
	}
}

func TestClearCompletedMaxParallel(t *testing.T) {
	svc := testutil.NewFakeService(
		model.Todo{ID: 1, UserID: user, Completed: true},
		model.Todo{ID: 2, UserID: user, Completed: true},
		model.Todo{ID: 3, UserID: user, Completed: true},
		model.Todo{ID: 4, UserID: user, Completed: true},
	)
	s, _ := newStore(t, svc, store.WithMaxParallelDeletes(1))
	s.Load(context.Background())

	var inFlight, peak atomic.Int32
	svc.OnDelete = func(int) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
	}

	s.ClearCompleted(context.Background())

	if p := peak.Load(); p != 1 {
		t.Errorf("peak concurrency: got %d, want 1", p)
	}
	if s.Snapshot().HasTodos() {
		t.Error("todos should be cleared")
	}
}

func TestClearCompletedAggregateFailure(t *testing.T) {
	s, svc, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a", Completed: true},
		model.Todo{ID: 2, UserID: user, Title: "b", Completed: true},
	)
	svc.PanicOnDelete = 2

	s.ClearCompleted(context.Background())

	st := s.Snapshot()
	if st.Notice != model.NoticeClearFailed {
		t.Errorf("notice: got %v, want ClearFailed", st.Notice)
	}
	if got := ids(st.Todos); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("successful delete should still apply, todos: %v", got)
	}
}

func TestClearCompletedCancelledContext(t *testing.T) {
	s, svc, _ := loaded(t, model.Todo{ID: 1, UserID: user, Completed: true})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s.ClearCompleted(ctx)

	if n := svc.CallCount("delete"); n != 0 {
		t.Errorf("no delete should be sent, got %d", n)
	}
	st := s.Snapshot()
	if st.Notice != model.NoticeClearFailed || !st.HasTodos() {
		t.Errorf("notice=%v todos=%v", st.Notice, st.Todos)
	}
}

func TestClearCompletedNothingToDo(t *testing.T) {
	s, svc, clock := loaded(t, model.Todo{ID: 1, UserID: user})
	s.ClearCompleted(context.Background())

	if n := svc.CallCount("delete"); n != 0 {
		t.Errorf("expected no deletes, got %d", n)
	}
	if clock.Pending() != 0 || s.Snapshot().Notice != model.NoticeNone {
		t.Error("no notice expected")
	}
}

func TestSetFilterVisible(t *testing.T) {
	s, _, _ := loaded(t,
		model.Todo{ID: 1, UserID: user, Title: "a"},
		model.Todo{ID: 2, UserID: user, Title: "b", Completed: true},
		model.Todo{ID: 3, UserID: user, Title: "c"},
	)

	tests := []struct {
		filter model.Filter
		want   []int
	}{
		{model.FilterActive, []int{1, 3}},
		{model.FilterCompleted, []int{2}},
		{model.FilterAll, []int{1, 2, 3}},
	}
	for _, tt := range tests {
		s.SetFilter(tt.filter)
		st := s.Snapshot()
		if got := ids(st.Visible()); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("%v: visible %v, want %v", tt.filter, got, tt.want)
		}
		if len(st.Todos) != 3 {
			t.Errorf("%v: filter must not change the list", tt.filter)
		}
	}
}

func TestDismissErrorCancelsTimer(t *testing.T) {
	svc := testutil.NewFakeService()
	s, clock := newStore(t, svc)
	s.Add(context.Background(), " ")

	s.DismissError()
	if got := s.Snapshot().Notice; got != model.NoticeNone {
		t.Fatalf("notice after dismiss: %v", got)
	}
	if clock.Pending() != 0 {
		t.Errorf("auto-clear timer should be stopped, %d pending", clock.Pending())
	}
}

func TestNewerNoticeRestartsTimer(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.CreateErr = testutil.ErrTransport
	s, clock := newStore(t, svc)

	s.Add(context.Background(), "")
	clock.Advance(2 * time.Second)
	s.Add(context.Background(), "x")
	clock.Advance(2 * time.Second)

	if got := s.Snapshot().Notice; got != model.NoticeAddFailed {
		t.Fatalf("older timer cleared the newer notice: %v", got)
	}
	clock.Advance(time.Second)
	if got := s.Snapshot().Notice; got != model.NoticeNone {
		t.Errorf("newer notice should clear after its own timeout: %v", got)
	}
}

func TestCustomNoticeTimeout(t *testing.T) {
	s, clock := newStore(t, testutil.NewFakeService(), store.WithNoticeTimeout(500*time.Millisecond))
	s.Add(context.Background(), "")
	clock.Advance(500 * time.Millisecond)
	if got := s.Snapshot().Notice; got != model.NoticeNone {
		t.Errorf("notice: got %v, want none", got)
	}
}

func TestDerivedCounts(t *testing.T) {
	tests := []struct {
		name         string
		todos        []model.Todo
		hasTodos     bool
		allCompleted bool
		active       int
	}{
		{"empty", nil, false, false, 0},
		{"mixed", []model.Todo{{ID: 1}, {ID: 2, Completed: true}}, true, false, 1},
		{"all done", []model.Todo{{ID: 1, Completed: true}, {ID: 2, Completed: true}}, true, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.State{Todos: tt.todos}
			if st.HasTodos() != tt.hasTodos {
				t.Errorf("HasTodos: got %v", st.HasTodos())
			}
			if st.AllCompleted() != tt.allCompleted {
				t.Errorf("AllCompleted: got %v", st.AllCompleted())
			}
			if st.ActiveCount() != tt.active {
				t.Errorf("ActiveCount: got %d", st.ActiveCount())
			}
			if st.CompletedCount() != len(tt.todos)-tt.active {
				t.Errorf("CompletedCount: got %d", st.CompletedCount())
			}
		})
	}
}

func TestOnChangeCalled(t *testing.T) {
	var n atomic.Int32
	svc := testutil.NewFakeService()
	s, clock := newStore(t, svc, store.WithOnChange(func() { n.Add(1) }))

	s.Add(context.Background(), "")
	before := n.Load()
	if before == 0 {
		t.Fatal("OnChange not called for a notice")
	}
	clock.Advance(store.DefaultNoticeTimeout)
	if n.Load() == before {
		t.Error("OnChange not called when the notice auto-cleared")
	}
}
