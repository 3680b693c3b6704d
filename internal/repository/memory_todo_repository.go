package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

type memoryTodoRepository struct {
	mu     sync.Mutex
	todos  map[uint]*domain.Todo
	nextID uint
	now    func() time.Time
}

// NewMemoryTodoRepository returns a TodoRepository that keeps rows in process
// memory. Rows are lost on exit.
func NewMemoryTodoRepository() TodoRepository {
	return &memoryTodoRepository{
		todos:  make(map[uint]*domain.Todo),
		nextID: 1,
		now:    time.Now,
	}
}

func (r *memoryTodoRepository) ListByUser(_ context.Context, userID uint) ([]domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	todos := make([]domain.Todo, 0)
	for _, t := range r.todos {
		if t.UserID == userID {
			todos = append(todos, *t)
		}
	}
	slices.SortFunc(todos, func(a, b domain.Todo) int {
		switch {
		case a.Position != b.Position:
			return cmpUint(a.Position, b.Position)
		case !a.TimeCreated.Equal(b.TimeCreated):
			return b.TimeCreated.Compare(a.TimeCreated)
		default:
			return cmpUint(b.ID, a.ID)
		}
	})
	return todos, nil
}

func cmpUint(a, b uint) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (r *memoryTodoRepository) Create(_ context.Context, todo *domain.Todo) error {
	if todo.Content == "" {
		return ErrInvalidTodo
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	todo.ID = r.nextID
	r.nextID++
	if todo.TimeCreated.IsZero() {
		todo.TimeCreated = r.now()
	}
	stored := *todo
	r.todos[todo.ID] = &stored
	return nil
}

func (r *memoryTodoRepository) FindByIDForUser(_ context.Context, userID, id uint) (*domain.Todo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return nil, ErrTodoNotFound
	}
	found := *t
	return &found, nil
}

func (r *memoryTodoRepository) Update(_ context.Context, userID, id uint, upd TodoUpdate) (int64, error) {
	if upd.Empty() {
		return 0, nil
	}
	if upd.Content != nil && *upd.Content == "" {
		return 0, ErrInvalidTodo
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.todos[id]
	if !ok || t.UserID != userID {
		return 0, ErrTodoNotFound
	}
	if upd.Content != nil {
		t.Content = *upd.Content
	}
	if upd.Done != nil {
		t.Done = *upd.Done
		t.TimeDone = nil
		if upd.TimeDone != nil {
			ts := *upd.TimeDone
			t.TimeDone = &ts
		}
	}
	return 1, nil
}

func (r *memoryTodoRepository) OwnedIDs(_ context.Context, userID uint, ids []uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.ownedIDs(userID, ids), nil
}

func (r *memoryTodoRepository) ownedIDs(userID uint, ids []uint) []uint {
	owned := make([]uint, 0, len(ids))
	for id := range idSet(ids) {
		if t, ok := r.todos[id]; ok && t.UserID == userID {
			owned = append(owned, id)
		}
	}
	slices.Sort(owned)
	return owned
}

func (r *memoryTodoRepository) DeleteOwned(_ context.Context, userID uint, ids []uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for _, id := range r.ownedIDs(userID, ids) {
		delete(r.todos, id)
		deleted++
	}
	return deleted, nil
}

func (r *memoryTodoRepository) Reorder(_ context.Context, userID uint, ids []uint) ([]uint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := applicableOrder(ids, idSet(r.ownedIDs(userID, ids)))
	for i, id := range applied {
		r.todos[id].Position = uint(i + 1)
	}
	return applied, nil
}
