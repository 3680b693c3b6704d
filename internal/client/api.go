// Package client talks to the todo service and keeps the widget's local
// state in step with it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/api"
)

const basePath = "/api/todos"

// ErrNoToken is returned when a request is attempted before Bootstrap.
var ErrNoToken = errors.New("no anti-forgery token, bootstrap the session first")

// Error is a status:false envelope returned by the service.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("todo service: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("todo service: %s (HTTP %d)", e.Message, e.StatusCode)
}

// Option configures an API.
type Option func(*API)

// WithHTTPClient sets the http client used for requests.
func WithHTTPClient(c *http.Client) Option {
	return func(a *API) {
		a.httpClient = c
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(log zerolog.Logger) Option {
	return func(a *API) {
		a.log = log
	}
}

// API is the widget's single request function plus typed helpers over it.
// It holds the session's current anti-forgery token and replaces it with
// the one carried by every response.
type API struct {
	baseURL    string
	bearer     string
	httpClient *http.Client
	log        zerolog.Logger

	mu    sync.Mutex
	token string
}

// NewAPI creates a client for the todo API at baseURL authenticated with bearer.
func NewAPI(baseURL, bearer string, opts ...Option) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		bearer:  bearer,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Token returns the anti-forgery token the next request will present.
func (a *API) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

func (a *API) setToken(token string) {
	a.mu.Lock()
	a.token = token
	a.mu.Unlock()
}

// Bootstrap fetches the session's first anti-forgery token.
func (a *API) Bootstrap(ctx context.Context) error {
	return a.send(ctx, http.MethodGet, basePath+"/session", nil, nil, false)
}

// Do sends one widget action. Actions outside the known set are a
// programming error and panic.
func (a *API) Do(ctx context.Context, action api.Action, payload, out any) error {
	if !action.Valid() {
		panic(fmt.Sprintf("client: unknown action %q", action))
	}

	if action == api.ActionRead {
		return a.send(ctx, http.MethodGet, basePath, nil, out, true)
	}
	return a.send(ctx, http.MethodPost, basePath+"/"+string(action), payload, out, true)
}

func (a *API) send(ctx context.Context, method, path string, payload, out any, needToken bool) error {
	token := a.Token()
	if needToken && token == "" {
		return ErrNoToken
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+a.bearer)
	}
	if needToken {
		req.Header.Set(api.CSRFHeader, token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env api.RawEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response (HTTP %d): %w", path, resp.StatusCode, err)
	}
	if env.CSRFToken != nil {
		a.setToken(*env.CSRFToken)
	}

	if !env.Status {
		e := &Error{StatusCode: resp.StatusCode}
		if env.Message != nil {
			e.Message = *env.Message
		}
		a.log.Debug().Str("path", path).Int("status", resp.StatusCode).Str("message", e.Message).Msg("request failed")
		return e
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s data: %w", path, err)
	}
	return nil
}

// List fetches the caller's todos.
func (a *API) List(ctx context.Context) ([]api.Todo, error) {
	var todos []api.Todo
	if err := a.Do(ctx, api.ActionRead, nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

// Create adds a todo and returns its id.
func (a *API) Create(ctx context.Context, content string) (uint, error) {
	var resp api.CreateTodoResponse
	if err := a.Do(ctx, api.ActionCreate, api.CreateTodoRequest{Content: content}, &resp); err != nil {
		return 0, err
	}
	return resp.InsertID, nil
}

// Update changes one todo.
func (a *API) Update(ctx context.Context, req api.UpdateTodoRequest) (*api.UpdateTodoResponse, error) {
	var resp api.UpdateTodoResponse
	if err := a.Do(ctx, api.ActionUpdate, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Delete removes todos and returns how many were deleted.
func (a *API) Delete(ctx context.Context, ids []uint) (int64, error) {
	var resp api.DeleteTodosResponse
	if err := a.Do(ctx, api.ActionDelete, api.DeleteTodosRequest{Todos: ids}, &resp); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// Reorder sends the new display order.
func (a *API) Reorder(ctx context.Context, ids []uint) (*api.ReorderTodosResponse, error) {
	var resp api.ReorderTodosResponse
	if err := a.Do(ctx, api.ActionReorder, api.ReorderTodosRequest{Order: ids}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
