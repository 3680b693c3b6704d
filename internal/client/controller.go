package client

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/api"
)

// ErrClosed is returned by Load once the controller has been closed.
var ErrClosed = errors.New("controller closed")

// Backend is the slice of the todo API the controller drives.
type Backend interface {
	List(ctx context.Context) ([]api.Todo, error)
	Create(ctx context.Context, content string) (uint, error)
	Update(ctx context.Context, req api.UpdateTodoRequest) (*api.UpdateTodoResponse, error)
	Delete(ctx context.Context, ids []uint) (int64, error)
	Reorder(ctx context.Context, ids []uint) (*api.ReorderTodosResponse, error)
}

// Mode is the per-row interaction state. It is never persisted.
type Mode int

const (
	ModeDefault Mode = iota
	ModeEditing
	ModeDeleting
)

func (m Mode) String() string {
	switch m {
	case ModeEditing:
		return "editing"
	case ModeDeleting:
		return "deleting"
	}
	return "default"
}

// Status is the transient request indicator shown under the list.
type Status string

const (
	StatusIdle     Status = ""
	StatusUpdating Status = "Updating..."
	StatusSuccess  Status = "Success"
	StatusFailed   Status = "Request Failed"
)

// Row is one rendered todo. Key is local and stable for the row's lifetime;
// ID stays zero until the service has assigned one.
type Row struct {
	Key     int
	ID      uint
	Content string
	Done    bool
	Mode    Mode
	Draft   string
}

type Options struct {
	// ReorderOnUpdate moves a toggled row to the bottom when done and to
	// the top when undone.
	ReorderOnUpdate bool
	// OnChange is called after every local or remote state change. It may
	// be called from the request worker goroutine.
	OnChange func()
	Log      zerolog.Logger
}

type job struct {
	action api.Action
	run    func(ctx context.Context) error
	result chan error
}

// Controller applies widget actions to local rows immediately and persists
// them through a single FIFO worker. Requests therefore reach the service
// in the order they were made, and each one presents the token returned by
// the previous response. Row ids are read when a request is sent, so
// actions queued behind a pending create use the id it back-fills.
// Failed requests are not rolled back; they only set the status.
type Controller struct {
	backend Backend
	opts    Options
	log     zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	cond     *sync.Cond
	rows     []*Row
	nextKey  int
	status   Status
	lastErr  error
	dragging bool
	jobs     []job
	pending  int
	closed   bool
}

// NewController creates a controller and starts its request worker.
func NewController(backend Backend, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		backend: backend,
		opts:    opts,
		log:     opts.Log,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	go c.run()
	return c
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.jobs) == 0 && !c.closed {
			c.cond.Wait()
		}
		if len(c.jobs) == 0 {
			c.mu.Unlock()
			return
		}
		j := c.jobs[0]
		c.jobs = c.jobs[1:]
		c.mu.Unlock()

		c.finish(j, j.run(c.ctx))
	}
}

func (c *Controller) finish(j job, err error) {
	c.mu.Lock()
	c.pending--
	switch {
	case err != nil:
		c.status = StatusFailed
		c.lastErr = err
	case c.pending > 0:
		c.status = StatusUpdating
	default:
		c.status = StatusSuccess
	}
	c.cond.Broadcast()
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Str("action", string(j.action)).Msg("todo request failed")
	}
	if j.result != nil {
		j.result <- err
	}
	c.changed()
}

// enqueueLocked must be called with c.mu held.
func (c *Controller) enqueueLocked(j job) bool {
	if c.closed {
		return false
	}
	c.jobs = append(c.jobs, j)
	c.pending++
	c.status = StatusUpdating
	c.cond.Broadcast()
	return true
}

func (c *Controller) changed() {
	if c.opts.OnChange != nil {
		c.opts.OnChange()
	}
}

// Wait blocks until every queued request has completed.
func (c *Controller) Wait() {
	c.mu.Lock()
	for c.pending > 0 {
		c.cond.Wait()
	}
	c.mu.Unlock()
}

// Close sends the requests already queued and stops the worker.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return
	}
	c.closed = true
	c.cond.Broadcast()
	c.mu.Unlock()

	<-c.done
	c.cancel()
}

// Status returns the request indicator.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Err returns the most recent request failure.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Snapshot returns a copy of the rows in display order.
func (c *Controller) Snapshot() []Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	rows := make([]Row, len(c.rows))
	for i, r := range c.rows {
		rows[i] = *r
	}
	return rows
}

// Load replaces the rows with the service's list, in service order.
func (c *Controller) Load(ctx context.Context) error {
	result := make(chan error, 1)
	c.mu.Lock()
	ok := c.enqueueLocked(job{action: api.ActionRead, run: c.load, result: result})
	c.mu.Unlock()
	if !ok {
		return ErrClosed
	}
	c.changed()

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) load(ctx context.Context) error {
	todos, err := c.backend.List(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = make([]*Row, 0, len(todos))
	for _, t := range todos {
		c.rows = append(c.rows, c.newRowLocked(t.ID, t.Content, t.Done))
	}
	c.dragging = false
	return nil
}

func (c *Controller) newRowLocked(id uint, content string, done bool) *Row {
	c.nextKey++
	return &Row{Key: c.nextKey, ID: id, Content: content, Done: done}
}

func (c *Controller) findLocked(key int) (int, *Row) {
	for i, r := range c.rows {
		if r.Key == key {
			return i, r
		}
	}
	return -1, nil
}

func (c *Controller) idOf(r *Row) uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return r.ID
}

// Add renders a new row at the top and queues its create. Blank content
// is ignored, as is anything added after Close.
func (c *Controller) Add(content string) (int, bool) {
	content = strings.TrimSpace(content)
	if content == "" {
		return 0, false
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, false
	}
	r := c.newRowLocked(0, content, false)
	c.rows = append([]*Row{r}, c.rows...)
	c.enqueueLocked(job{action: api.ActionCreate, run: func(ctx context.Context) error {
		id, err := c.backend.Create(ctx, content)
		if err != nil {
			return err
		}
		c.mu.Lock()
		r.ID = id
		c.mu.Unlock()
		return nil
	}})
	c.mu.Unlock()

	c.changed()
	return r.Key, true
}

// BeginEdit switches a row into editing mode with its content as the draft.
func (c *Controller) BeginEdit(key int) bool {
	c.mu.Lock()
	_, r := c.findLocked(key)
	ok := r != nil && r.Mode == ModeDefault
	if ok {
		r.Mode = ModeEditing
		r.Draft = r.Content
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return ok
}

// SetDraft replaces the draft of a row being edited.
func (c *Controller) SetDraft(key int, draft string) bool {
	c.mu.Lock()
	_, r := c.findLocked(key)
	ok := r != nil && r.Mode == ModeEditing
	if ok {
		r.Draft = draft
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return ok
}

// CancelEdit leaves editing mode and drops the draft.
func (c *Controller) CancelEdit(key int) bool {
	c.mu.Lock()
	_, r := c.findLocked(key)
	ok := r != nil && r.Mode == ModeEditing
	if ok {
		r.Mode = ModeDefault
		r.Draft = ""
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return ok
}

// SaveEdit leaves editing mode and reports whether an update was queued.
// A blank draft restores the previous content.
func (c *Controller) SaveEdit(key int) bool {
	c.mu.Lock()
	_, r := c.findLocked(key)
	if r == nil || r.Mode != ModeEditing {
		c.mu.Unlock()
		return false
	}

	content := strings.TrimSpace(r.Draft)
	r.Mode = ModeDefault
	r.Draft = ""
	queued := content != "" && content != r.Content
	if queued {
		r.Content = content
		c.enqueueLocked(job{action: api.ActionUpdate, run: func(ctx context.Context) error {
			id := c.idOf(r)
			if id == 0 {
				return nil
			}
			_, err := c.backend.Update(ctx, api.UpdateTodoRequest{ID: id, Content: &content})
			return err
		}})
	}
	c.mu.Unlock()

	c.changed()
	return queued
}

// BeginDelete asks for confirmation before deleting a row.
func (c *Controller) BeginDelete(key int) bool {
	return c.setMode(key, ModeDefault, ModeDeleting)
}

// CancelDelete returns a row from deleting to default mode.
func (c *Controller) CancelDelete(key int) bool {
	return c.setMode(key, ModeDeleting, ModeDefault)
}

func (c *Controller) setMode(key int, from, to Mode) bool {
	c.mu.Lock()
	_, r := c.findLocked(key)
	ok := r != nil && r.Mode == from
	if ok {
		r.Mode = to
	}
	c.mu.Unlock()

	if ok {
		c.changed()
	}
	return ok
}

// ConfirmDelete removes a row that is awaiting confirmation and queues its
// delete without waiting for the result.
func (c *Controller) ConfirmDelete(key int) bool {
	c.mu.Lock()
	i, r := c.findLocked(key)
	if r == nil || r.Mode != ModeDeleting {
		c.mu.Unlock()
		return false
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	c.enqueueDeleteLocked([]*Row{r})
	c.mu.Unlock()

	c.changed()
	return true
}

// RemoveCompleted drops every done row and queues one delete for them.
func (c *Controller) RemoveCompleted() int {
	c.mu.Lock()
	var removed []*Row
	kept := c.rows[:0]
	for _, r := range c.rows {
		if r.Done {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	c.rows = kept
	if len(removed) > 0 {
		c.enqueueDeleteLocked(removed)
	}
	c.mu.Unlock()

	if len(removed) > 0 {
		c.changed()
	}
	return len(removed)
}

func (c *Controller) enqueueDeleteLocked(rows []*Row) {
	c.enqueueLocked(job{action: api.ActionDelete, run: func(ctx context.Context) error {
		c.mu.Lock()
		ids := make([]uint, 0, len(rows))
		for _, r := range rows {
			if r.ID != 0 {
				ids = append(ids, r.ID)
			}
		}
		c.mu.Unlock()

		// Rows whose create never succeeded have nothing to delete.
		if len(ids) == 0 {
			return nil
		}
		_, err := c.backend.Delete(ctx, ids)
		return err
	}})
}

// Toggle flips a row's done state locally and queues the update.
func (c *Controller) Toggle(key int) bool {
	c.mu.Lock()
	i, r := c.findLocked(key)
	if r == nil {
		c.mu.Unlock()
		return false
	}

	r.Done = !r.Done
	done := r.Done
	if c.opts.ReorderOnUpdate {
		c.rows = append(c.rows[:i], c.rows[i+1:]...)
		if done {
			c.rows = append(c.rows, r)
		} else {
			c.rows = append([]*Row{r}, c.rows...)
		}
	}
	c.enqueueLocked(job{action: api.ActionUpdate, run: func(ctx context.Context) error {
		id := c.idOf(r)
		if id == 0 {
			return nil
		}
		_, err := c.backend.Update(ctx, api.UpdateTodoRequest{ID: id, Done: &done})
		return err
	}})
	c.mu.Unlock()

	c.changed()
	return true
}

// Move drags a row by delta places. Nothing is sent until Drop.
func (c *Controller) Move(key, delta int) bool {
	c.mu.Lock()
	i, r := c.findLocked(key)
	if r == nil || delta == 0 {
		c.mu.Unlock()
		return false
	}

	j := min(max(i+delta, 0), len(c.rows)-1)
	if j == i {
		c.mu.Unlock()
		return false
	}
	c.rows = append(c.rows[:i], c.rows[i+1:]...)
	c.rows = append(c.rows[:j], append([]*Row{r}, c.rows[j:]...)...)
	c.dragging = true
	c.mu.Unlock()

	c.changed()
	return true
}

// Drop ends a drag and queues a reorder carrying the full displayed order,
// read when the request is sent.
func (c *Controller) Drop() bool {
	c.mu.Lock()
	if !c.dragging {
		c.mu.Unlock()
		return false
	}
	c.dragging = false
	c.enqueueLocked(job{action: api.ActionReorder, run: func(ctx context.Context) error {
		order := c.order()
		if len(order) == 0 {
			return nil
		}
		_, err := c.backend.Reorder(ctx, order)
		return err
	}})
	c.mu.Unlock()

	c.changed()
	return true
}

func (c *Controller) order() []uint {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]uint, 0, len(c.rows))
	for _, r := range c.rows {
		if r.ID != 0 {
			ids = append(ids, r.ID)
		}
	}
	return ids
}
