package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-widget/internal/api"
)

type fakeBackend struct {
	mu     sync.Mutex
	calls  []string
	nextID uint
	todos  []api.Todo
	fail   map[api.Action]error
	// gate, when set, holds every Create until it receives a value.
	gate chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{nextID: 100, fail: make(map[api.Action]error)}
}

func (f *fakeBackend) record(action api.Action, call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.fail[action]
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) List(context.Context) ([]api.Todo, error) {
	if err := f.record(api.ActionRead, "read"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.Todo(nil), f.todos...), nil
}

func (f *fakeBackend) Create(ctx context.Context, content string) (uint, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := f.record(api.ActionCreate, "create "+content); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	return f.nextID, nil
}

func (f *fakeBackend) Update(_ context.Context, req api.UpdateTodoRequest) (*api.UpdateTodoResponse, error) {
	call := fmt.Sprintf("update %d", req.ID)
	if req.Content != nil {
		call += " content=" + *req.Content
	}
	if req.Done != nil {
		call += fmt.Sprintf(" done=%t", *req.Done)
	}
	if err := f.record(api.ActionUpdate, call); err != nil {
		return nil, err
	}
	return &api.UpdateTodoResponse{Updated: 1}, nil
}

func (f *fakeBackend) Delete(_ context.Context, ids []uint) (int64, error) {
	if err := f.record(api.ActionDelete, fmt.Sprintf("delete %v", ids)); err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (f *fakeBackend) Reorder(_ context.Context, ids []uint) (*api.ReorderTodosResponse, error) {
	if err := f.record(api.ActionReorder, fmt.Sprintf("reorder %v", ids)); err != nil {
		return nil, err
	}
	return &api.ReorderTodosResponse{Reordered: len(ids), Order: ids}, nil
}

func newController(t *testing.T, backend Backend, opts Options) *Controller {
	t.Helper()
	c := NewController(backend, opts)
	t.Cleanup(c.Close)
	return c
}

func contents(rows []Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Content
	}
	return out
}

func seeded(t *testing.T, opts Options) (*Controller, *fakeBackend) {
	t.Helper()
	backend := newFakeBackend()
	backend.todos = []api.Todo{
		{ID: 1, Content: "one"},
		{ID: 2, Content: "two"},
		{ID: 3, Content: "three", Done: true},
	}
	c := newController(t, backend, opts)
	require.NoError(t, c.Load(context.Background()))
	return c, backend
}

func TestLoadKeepsServerOrder(t *testing.T) {
	c, _ := seeded(t, Options{})

	rows := c.Snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, contents(rows))
	assert.True(t, rows[2].Done)
	assert.Equal(t, StatusSuccess, c.Status())
}

func TestAddIsOptimistic(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	c := newController(t, backend, Options{})

	key, ok := c.Add("  Buy milk  ")
	require.True(t, ok)

	rows := c.Snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, key, rows[0].Key)
	assert.Equal(t, "Buy milk", rows[0].Content)
	assert.Zero(t, rows[0].ID)
	assert.Equal(t, StatusUpdating, c.Status())

	close(backend.gate)
	c.Wait()

	rows = c.Snapshot()
	assert.Equal(t, uint(101), rows[0].ID)
	assert.Equal(t, StatusSuccess, c.Status())
}

func TestAddBlankIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	c := newController(t, backend, Options{})

	_, ok := c.Add("   ")
	assert.False(t, ok)
	assert.Empty(t, c.Snapshot())
	assert.Empty(t, backend.Calls())
}

func TestAddPutsNewRowsOnTop(t *testing.T) {
	c, _ := seeded(t, Options{})
	c.Add("zero")
	c.Wait()

	assert.Equal(t, []string{"zero", "one", "two", "three"}, contents(c.Snapshot()))
}

func TestQueuedActionsUseBackfilledID(t *testing.T) {
	backend := newFakeBackend()
	backend.gate = make(chan struct{})
	c := newController(t, backend, Options{})

	key, _ := c.Add("draft")
	require.True(t, c.BeginEdit(key))
	require.True(t, c.SetDraft(key, "final"))
	require.True(t, c.SaveEdit(key))
	require.True(t, c.Toggle(key))

	close(backend.gate)
	c.Wait()

	assert.Equal(t, []string{
		"create draft",
		"update 101 content=final",
		"update 101 done=true",
	}, backend.Calls())
}

func TestEditTransitions(t *testing.T) {
	c, backend := seeded(t, Options{})
	key := c.Snapshot()[0].Key

	require.True(t, c.BeginEdit(key))
	assert.False(t, c.BeginEdit(key), "already editing")
	assert.False(t, c.BeginDelete(key), "modes are exclusive")
	assert.Equal(t, ModeEditing, c.Snapshot()[0].Mode)

	c.SetDraft(key, "changed")
	require.True(t, c.CancelEdit(key))
	row := c.Snapshot()[0]
	assert.Equal(t, "one", row.Content)
	assert.Equal(t, ModeDefault, row.Mode)

	c.BeginEdit(key)
	c.SetDraft(key, "   ")
	assert.False(t, c.SaveEdit(key), "blank draft aborts the save")
	row = c.Snapshot()[0]
	assert.Equal(t, "one", row.Content)
	assert.Equal(t, ModeDefault, row.Mode)

	c.BeginEdit(key)
	c.SetDraft(key, " uno ")
	assert.True(t, c.SaveEdit(key))
	c.Wait()

	assert.Equal(t, "uno", c.Snapshot()[0].Content)
	assert.Equal(t, []string{"read", "update 1 content=uno"}, backend.Calls())
}

func TestDeleteTransitions(t *testing.T) {
	c, backend := seeded(t, Options{})
	key := c.Snapshot()[1].Key

	assert.False(t, c.ConfirmDelete(key), "confirm needs deleting mode")
	require.True(t, c.BeginDelete(key))
	require.True(t, c.CancelDelete(key))
	assert.Len(t, c.Snapshot(), 3)

	require.True(t, c.BeginDelete(key))
	require.True(t, c.ConfirmDelete(key))
	// Removed before the service has answered.
	assert.Equal(t, []string{"one", "three"}, contents(c.Snapshot()))

	c.Wait()
	assert.Equal(t, []string{"read", "delete [2]"}, backend.Calls())
}

func TestDeleteOfFailedCreateSendsNothing(t *testing.T) {
	backend := newFakeBackend()
	backend.fail[api.ActionCreate] = errors.New("boom")
	c := newController(t, backend, Options{})

	key, _ := c.Add("doomed")
	c.BeginDelete(key)
	c.ConfirmDelete(key)
	c.Wait()

	assert.Equal(t, []string{"create doomed"}, backend.Calls())
}

func TestToggleReorderOnUpdate(t *testing.T) {
	c, backend := seeded(t, Options{ReorderOnUpdate: true})
	rows := c.Snapshot()

	c.Toggle(rows[0].Key)
	assert.Equal(t, []string{"two", "three", "one"}, contents(c.Snapshot()))

	c.Toggle(rows[2].Key)
	assert.Equal(t, []string{"three", "two", "one"}, contents(c.Snapshot()))
	c.Wait()

	assert.Equal(t, []string{"read", "update 1 done=true", "update 3 done=false"}, backend.Calls())
}

func TestToggleKeepsPlaceByDefault(t *testing.T) {
	c, _ := seeded(t, Options{})
	c.Toggle(c.Snapshot()[0].Key)

	rows := c.Snapshot()
	assert.Equal(t, []string{"one", "two", "three"}, contents(rows))
	assert.True(t, rows[0].Done)
}

func TestFailureHasNoRollback(t *testing.T) {
	c, backend := seeded(t, Options{})
	backend.mu.Lock()
	backend.fail[api.ActionUpdate] = &Error{StatusCode: 500, Message: "Request failed"}
	backend.mu.Unlock()

	c.Toggle(c.Snapshot()[0].Key)
	c.Wait()

	assert.True(t, c.Snapshot()[0].Done)
	assert.Equal(t, StatusFailed, c.Status())
	var apiErr *Error
	require.ErrorAs(t, c.Err(), &apiErr)
	assert.Equal(t, 500, apiErr.StatusCode)
}

func TestDragAndDrop(t *testing.T) {
	c, backend := seeded(t, Options{})
	rows := c.Snapshot()

	assert.False(t, c.Drop(), "nothing dragged")
	require.True(t, c.Move(rows[2].Key, -2))
	assert.False(t, c.Move(rows[2].Key, -1), "already at the top")
	assert.Equal(t, []string{"three", "one", "two"}, contents(c.Snapshot()))

	require.True(t, c.Drop())
	c.Wait()
	assert.Equal(t, []string{"read", "reorder [3 1 2]"}, backend.Calls())
}

func TestMoveClampsToBounds(t *testing.T) {
	c, _ := seeded(t, Options{})
	key := c.Snapshot()[0].Key

	require.True(t, c.Move(key, 10))
	assert.Equal(t, []string{"two", "three", "one"}, contents(c.Snapshot()))
}

func TestRemoveCompleted(t *testing.T) {
	c, backend := seeded(t, Options{})
	c.Toggle(c.Snapshot()[0].Key)

	assert.Equal(t, 2, c.RemoveCompleted())
	assert.Equal(t, []string{"two"}, contents(c.Snapshot()))
	assert.Zero(t, c.RemoveCompleted())
	c.Wait()

	assert.Equal(t, []string{"read", "update 1 done=true", "delete [1 3]"}, backend.Calls())
}

func TestOnChangeAndClose(t *testing.T) {
	var mu sync.Mutex
	changes := 0
	backend := newFakeBackend()
	c := NewController(backend, Options{OnChange: func() {
		mu.Lock()
		changes++
		mu.Unlock()
	}})

	c.Add("a")
	c.Add("b")
	c.Close()
	c.Close()

	assert.Len(t, backend.Calls(), 2, "close drains the queue")
	mu.Lock()
	assert.GreaterOrEqual(t, changes, 4)
	mu.Unlock()
	assert.ErrorIs(t, c.Load(context.Background()), ErrClosed)
}

func TestAddAfterCloseIsIgnored(t *testing.T) {
	backend := newFakeBackend()
	c := NewController(backend, Options{})
	c.Close()

	key, ok := c.Add("too late")
	assert.False(t, ok)
	assert.Zero(t, key)
	assert.Empty(t, c.Snapshot())
	assert.Empty(t, backend.Calls())
}
