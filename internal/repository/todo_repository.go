package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

var (
	// ErrTodoNotFound is returned when the todo does not exist or belongs to
	// another user. The two cases are indistinguishable on purpose.
	ErrTodoNotFound = errors.New("todo not found")
	// ErrInvalidTodo is returned when the store rejects a row, e.g. blank content.
	ErrInvalidTodo = errors.New("invalid todo")
)

// TodoUpdate lists the columns to change. Nil fields are left untouched.
// TimeDone is written only together with Done; a nil TimeDone clears it.
type TodoUpdate struct {
	Content  *string
	Done     *bool
	TimeDone *time.Time
}

func (u TodoUpdate) Empty() bool {
	return u.Content == nil && u.Done == nil
}

// TodoRepository is the persistence store for todos. Every read and write is
// scoped to a single owner.
type TodoRepository interface {
	// ListByUser returns the owner's todos ordered by position ascending,
	// newest first within a position.
	ListByUser(ctx context.Context, userID uint) ([]domain.Todo, error)
	// Create inserts todo and fills in its ID and TimeCreated.
	Create(ctx context.Context, todo *domain.Todo) error
	FindByIDForUser(ctx context.Context, userID, id uint) (*domain.Todo, error)
	// Update applies upd to the owner's todo and returns the affected row count.
	Update(ctx context.Context, userID, id uint, upd TodoUpdate) (int64, error)
	// OwnedIDs returns the subset of ids owned by userID.
	OwnedIDs(ctx context.Context, userID uint, ids []uint) ([]uint, error)
	// DeleteOwned permanently removes the owner's todos among ids.
	DeleteOwned(ctx context.Context, userID uint, ids []uint) (int64, error)
	// Reorder assigns positions 1..n to the owner's todos in the order of ids.
	// Foreign and repeated ids are skipped without consuming a position, and
	// owned todos missing from ids keep their position. It returns the ids
	// that received a position.
	Reorder(ctx context.Context, userID uint, ids []uint) ([]uint, error)
}

// applicableOrder keeps the first occurrence of every owned id, preserving
// the requested order.
func applicableOrder(ids []uint, owned map[uint]struct{}) []uint {
	applied := make([]uint, 0, len(ids))
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := owned[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		applied = append(applied, id)
	}
	return applied
}

func idSet(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
