package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"golang.org/x/oauth2"

	"github.com/idilsaglam/todos/internal/logging"
	"github.com/idilsaglam/todos/internal/model"
)

// DefaultTimeout bounds a single API call.
const DefaultTimeout = 5 * time.Second

// Client implements TodoService over the REST API:
//
//	GET    /todos?userId={id}
//	POST   /todos
//	DELETE /todos/{id}
type Client struct {
	base    *url.URL
	http    *http.Client
	token   string
	timeout time.Duration
	logger  *log.Logger
	schemas *schemas
}

var _ TodoService = (*Client)(nil)

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger routes request logging to l.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient builds a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url %q: scheme must be http or https", baseURL)
	}
	s, err := compileSchemas()
	if err != nil {
		return nil, err
	}

	c := &Client{
		base:    u,
		http:    &http.Client{},
		timeout: DefaultTimeout,
		logger:  logging.Discard(),
		schemas: s,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token != "" {
		base := c.http.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.http
		hc.Transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token, TokenType: "Bearer"}),
			Base:   base,
		}
		c.http = &hc
	}
	return c, nil
}

// List returns the user's todos in server order.
func (c *Client) List(ctx context.Context, userID int) ([]model.Todo, error) {
	q := url.Values{}
	q.Set("userId", strconv.Itoa(userID))

	var todos []model.Todo
	if err := c.do(ctx, http.MethodGet, "/todos", q, nil, c.schemas.todos, "todo list", &todos); err != nil {
		return nil, err
	}
	if todos == nil {
		todos = []model.Todo{}
	}
	return todos, nil
}

// Create posts a new todo and returns the saved record.
func (c *Client) Create(ctx context.Context, userID int, title string) (model.Todo, error) {
	body := model.Todo{UserID: userID, Title: title, Completed: false}

	var created model.Todo
	if err := c.do(ctx, http.MethodPost, "/todos", nil, createRequest(body), c.schemas.todo, "todo", &created); err != nil {
		return model.Todo{}, err
	}
	return created, nil
}

// Delete removes a todo by id.
func (c *Client) Delete(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+strconv.Itoa(id), nil, nil, nil, "", nil)
}

// createRequest omits the id: the server assigns it.
func createRequest(t model.Todo) map[string]any {
	return map[string]any{
		"userId":    t.UserID,
		"title":     t.Title,
		"completed": t.Completed,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, schema *jsonschema.Schema, what string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = c.base.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", reqID)
	if in != nil {
		req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", reqID, "err", err)
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("request", "method", method, "path", path, "status", resp.StatusCode,
		"request_id", reqID, "took", time.Since(start).Round(time.Millisecond))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Method: method, URL: path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if schema != nil {
		if err := validate(schema, what, raw); err != nil {
			return err
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}
