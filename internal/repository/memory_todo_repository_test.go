package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

func TestMemoryTodoRepository(t *testing.T) {
	runRepositoryContract(t, func(t *testing.T) TodoRepository {
		return NewMemoryTodoRepository()
	})
}

func TestMemoryTodoRepositoryReturnsCopies(t *testing.T) {
	repo := NewMemoryTodoRepository()
	ctx := context.Background()

	todo := &domain.Todo{Content: "original", UserID: alice}
	require.NoError(t, repo.Create(ctx, todo))
	todo.Content = "mutated after create"

	found, err := repo.FindByIDForUser(ctx, alice, todo.ID)
	require.NoError(t, err)
	found.Content = "mutated after find"

	again, err := repo.FindByIDForUser(ctx, alice, todo.ID)
	require.NoError(t, err)
	assert.Equal(t, "original", again.Content)
}

func TestMemoryTodoRepositoryConcurrentCreate(t *testing.T) {
	repo := NewMemoryTodoRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Create(ctx, &domain.Todo{Content: "x", UserID: alice}))
		}()
	}
	wg.Wait()

	todos, err := repo.ListByUser(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, todos, 50)

	seen := make(map[uint]bool)
	for _, todo := range todos {
		assert.False(t, seen[todo.ID], "duplicate id %d", todo.ID)
		seen[todo.ID] = true
	}
}
