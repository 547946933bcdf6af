// Package apitest runs an in-memory todos API for tests.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/idilsaglam/todos/internal/model"
)

// Server is a fake of the remote todos resource. It keeps todos in
// insertion order and hands out increasing ids starting at 1.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	todos       []model.Todo
	nextID      int
	token       string
	failList    bool
	failCreate  bool
	failDelete  map[int]bool
	listPayload string
	requests    []string
}

// NewServer starts a server. Call Close when done.
func NewServer() *Server {
	s := &Server{
		nextID:     1,
		failDelete: make(map[int]bool),
	}

	r := mux.NewRouter()
	r.Use(s.record, s.auth)
	r.HandleFunc("/todos", s.list).Methods(http.MethodGet)
	r.HandleFunc("/todos", s.create).Methods(http.MethodPost)
	r.HandleFunc("/todos/{id:[0-9]+}", s.delete).Methods(http.MethodDelete)

	s.Server = httptest.NewServer(r)
	return s
}

// Seed adds todos as if they already existed. Ids of 0 are assigned.
func (s *Server) Seed(todos ...model.Todo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range todos {
		if t.ID == 0 {
			t.ID = s.nextID
		}
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
		s.todos = append(s.todos, t)
	}
}

// Todos returns a copy of the stored todos.
func (s *Server) Todos() []model.Todo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Todo, len(s.todos))
	copy(out, s.todos)
	return out
}

// RequireToken makes every request without "Bearer <token>" fail with 401.
func (s *Server) RequireToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// FailList makes GET /todos answer 500.
func (s *Server) FailList(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failList = fail
}

// FailCreate makes POST /todos answer 500.
func (s *Server) FailCreate(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreate = fail
}

// FailDelete makes DELETE /todos/{id} answer 500 for the given ids.
func (s *Server) FailDelete(ids ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.failDelete[id] = true
	}
}

// SetListPayload replaces the GET /todos body with raw JSON.
func (s *Server) SetListPayload(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listPayload = raw
}

// Requests returns "METHOD path" for every request served so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := s.token
		s.mu.Unlock()
		if want != "" && r.Header.Get("Authorization") != "Bearer "+want {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failList {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	if s.listPayload != "" {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(s.listPayload))
		return
	}

	out := []model.Todo{}
	if raw := r.URL.Query().Get("userId"); raw != "" {
		userID, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid userId", http.StatusBadRequest)
			return
		}
		for _, t := range s.todos {
			if t.UserID == userID {
				out = append(out, t)
			}
		}
	} else {
		out = append(out, s.todos...)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var in model.Todo
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "Invalid request payload", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		http.Error(w, "title is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreate {
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	in.ID = s.nextID
	s.nextID++
	s.todos = append(s.todos, in)
	writeJSON(w, http.StatusCreated, in)
}

// delete answers 200 with the number of removed rows, so a missing id is
// not an error.
func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.Atoi(mux.Vars(r)["id"])

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete[id] {
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	removed := 0
	for i, t := range s.todos {
		if t.ID == id {
			s.todos = append(s.todos[:i], s.todos[i+1:]...)
			removed = 1
			break
		}
	}
	writeJSON(w, http.StatusOK, removed)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
