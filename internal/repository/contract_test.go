package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

const (
	alice uint = 1
	bob   uint = 2
)

// runRepositoryContract checks the behavior every TodoRepository must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) TodoRepository) {
	t.Run("CreateAndFind", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		todo := &domain.Todo{Content: "Buy milk", UserID: alice}
		require.NoError(t, repo.Create(ctx, todo))
		require.NotZero(t, todo.ID)
		assert.False(t, todo.TimeCreated.IsZero())

		found, err := repo.FindByIDForUser(ctx, alice, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", found.Content)
		assert.False(t, found.Done)
		assert.Nil(t, found.TimeDone)
		assert.Zero(t, found.Position)

		_, err = repo.FindByIDForUser(ctx, bob, todo.ID)
		assert.ErrorIs(t, err, ErrTodoNotFound)
	})

	t.Run("CreateRejectsEmptyContent", func(t *testing.T) {
		repo := newRepo(t)
		err := repo.Create(context.Background(), &domain.Todo{Content: "", UserID: alice})
		assert.ErrorIs(t, err, ErrInvalidTodo)
	})

	t.Run("ListIsScopedAndOrdered", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := mustCreate(t, repo, alice, "first")
		second := mustCreate(t, repo, alice, "second")
		mustCreate(t, repo, bob, "bob's")

		todos, err := repo.ListByUser(ctx, alice)
		require.NoError(t, err)
		// Same position: newest first.
		assert.Equal(t, []uint{second, first}, ids(todos))

		_, err = repo.Reorder(ctx, alice, []uint{first, second})
		require.NoError(t, err)

		todos, err = repo.ListByUser(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint{first, second}, ids(todos))

		empty, err := repo.ListByUser(ctx, 99)
		require.NoError(t, err)
		assert.NotNil(t, empty)
		assert.Empty(t, empty)
	})

	t.Run("UpdateIsPartial", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		id := mustCreate(t, repo, alice, "walk dog")

		done := true
		at := time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
		n, err := repo.Update(ctx, alice, id, TodoUpdate{Done: &done, TimeDone: &at})
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		got, err := repo.FindByIDForUser(ctx, alice, id)
		require.NoError(t, err)
		assert.Equal(t, "walk dog", got.Content)
		assert.True(t, got.Done)
		require.NotNil(t, got.TimeDone)
		assert.True(t, at.Equal(*got.TimeDone))

		content := "walk cat"
		_, err = repo.Update(ctx, alice, id, TodoUpdate{Content: &content})
		require.NoError(t, err)

		got, err = repo.FindByIDForUser(ctx, alice, id)
		require.NoError(t, err)
		assert.Equal(t, "walk cat", got.Content)
		assert.True(t, got.Done, "done must survive a content-only update")
		assert.NotNil(t, got.TimeDone)

		undone := false
		_, err = repo.Update(ctx, alice, id, TodoUpdate{Done: &undone})
		require.NoError(t, err)

		got, err = repo.FindByIDForUser(ctx, alice, id)
		require.NoError(t, err)
		assert.False(t, got.Done)
		assert.Nil(t, got.TimeDone)
	})

	t.Run("UpdateForeignRow", func(t *testing.T) {
		repo := newRepo(t)
		id := mustCreate(t, repo, bob, "bob's")

		content := "hijacked"
		_, err := repo.Update(context.Background(), alice, id, TodoUpdate{Content: &content})
		assert.ErrorIs(t, err, ErrTodoNotFound)

		got, err := repo.FindByIDForUser(context.Background(), bob, id)
		require.NoError(t, err)
		assert.Equal(t, "bob's", got.Content)
	})

	t.Run("DeleteOnlyOwned", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		a1 := mustCreate(t, repo, alice, "a1")
		a2 := mustCreate(t, repo, alice, "a2")
		b1 := mustCreate(t, repo, bob, "b1")

		owned, err := repo.OwnedIDs(ctx, alice, []uint{a1, b1, 404})
		require.NoError(t, err)
		assert.Equal(t, []uint{a1}, owned)

		deleted, err := repo.DeleteOwned(ctx, alice, []uint{a1, b1, 404})
		require.NoError(t, err)
		assert.EqualValues(t, 1, deleted)

		_, err = repo.FindByIDForUser(ctx, bob, b1)
		assert.NoError(t, err, "foreign row must survive")

		todos, err := repo.ListByUser(ctx, alice)
		require.NoError(t, err)
		assert.Equal(t, []uint{a2}, ids(todos))

		deleted, err = repo.DeleteOwned(ctx, alice, []uint{b1})
		require.NoError(t, err)
		assert.Zero(t, deleted)
	})

	t.Run("ReorderAssignsDensePositions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		one := mustCreate(t, repo, alice, "one")
		two := mustCreate(t, repo, alice, "two")
		three := mustCreate(t, repo, alice, "three")
		foreign := mustCreate(t, repo, bob, "foreign")

		applied, err := repo.Reorder(ctx, alice, []uint{three, foreign, one, three, two})
		require.NoError(t, err)
		assert.Equal(t, []uint{three, one, two}, applied)

		want := map[uint]uint{three: 1, one: 2, two: 3}
		assert.Empty(t, cmp.Diff(want, positions(t, repo, alice)))

		b, err := repo.FindByIDForUser(ctx, bob, foreign)
		require.NoError(t, err)
		assert.Zero(t, b.Position, "foreign row must keep its position")
	})

	t.Run("ReorderKeepsOmittedPositions", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()
		one := mustCreate(t, repo, alice, "one")
		two := mustCreate(t, repo, alice, "two")
		three := mustCreate(t, repo, alice, "three")

		_, err := repo.Reorder(ctx, alice, []uint{one, two, three})
		require.NoError(t, err)

		applied, err := repo.Reorder(ctx, alice, []uint{two, one})
		require.NoError(t, err)
		assert.Equal(t, []uint{two, one}, applied)

		want := map[uint]uint{two: 1, one: 2, three: 3}
		assert.Empty(t, cmp.Diff(want, positions(t, repo, alice)))
	})
}

func mustCreate(t *testing.T, repo TodoRepository, userID uint, content string) uint {
	t.Helper()
	todo := &domain.Todo{Content: content, UserID: userID}
	require.NoError(t, repo.Create(context.Background(), todo))
	// Distinct creation times keep the newest-first tiebreak deterministic.
	time.Sleep(2 * time.Millisecond)
	return todo.ID
}

func ids(todos []domain.Todo) []uint {
	out := make([]uint, 0, len(todos))
	for _, t := range todos {
		out = append(out, t.ID)
	}
	return out
}

func positions(t *testing.T, repo TodoRepository, userID uint) map[uint]uint {
	t.Helper()
	todos, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	out := make(map[uint]uint, len(todos))
	for _, todo := range todos {
		out[todo.ID] = todo.Position
	}
	return out
}
