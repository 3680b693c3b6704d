package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tomlord1122/todo-widget/internal/api"
	"github.com/Tomlord1122/todo-widget/internal/domain"
	"github.com/Tomlord1122/todo-widget/internal/repository"
)

// TodoService holds the business rules of the widget. Every operation is
// scoped to the calling user; callers are authenticated before they get here.
type TodoService interface {
	// List returns the caller's todos in display order.
	List(ctx context.Context, userID uint) ([]api.Todo, error)

	Create(ctx context.Context, userID uint, req api.CreateTodoRequest) (*api.CreateTodoResponse, error)

	// Update changes only the fields present in req.
	Update(ctx context.Context, userID uint, req api.UpdateTodoRequest) (*api.UpdateTodoResponse, error)

	// Delete removes the caller's todos among req.Todos. Ids owned by other
	// users are ignored.
	Delete(ctx context.Context, userID uint, req api.DeleteTodosRequest) (*api.DeleteTodosResponse, error)

	// Reorder gives the caller's todos in req.Order the positions 1, 2, 3...
	Reorder(ctx context.Context, userID uint, req api.ReorderTodosRequest) (*api.ReorderTodosResponse, error)
}

type todoService struct {
	repo repository.TodoRepository
	log  zerolog.Logger
	now  func() time.Time
}

// NewTodoService creates a new todo service with the given repository
func NewTodoService(repo repository.TodoRepository, log zerolog.Logger) TodoService {
	return &todoService{
		repo: repo,
		log:  log,
		now:  time.Now,
	}
}

// List returns the caller's todos in display order
func (s *todoService) List(ctx context.Context, userID uint) ([]api.Todo, error) {
	todos, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storeFailure(err, userID, "failed to list todos")
	}

	responses := make([]api.Todo, 0, len(todos))
	for _, todo := range todos {
		responses = append(responses, toResponse(todo))
	}

	s.log.Debug().
		Uint("user_id", userID).
		Int("count", len(responses)).
		Msg("listed todos")
	return responses, nil
}

// Create validates and stores a new todo for the caller
func (s *todoService) Create(ctx context.Context, userID uint, req api.CreateTodoRequest) (*api.CreateTodoResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, invalid("content", "Content must not be empty.")
	}

	todo := &domain.Todo{
		Content:  content,
		Done:     false,
		UserID:   userID,
		Position: 0,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		if errors.Is(err, repository.ErrInvalidTodo) {
			return nil, invalid("content", "Content must not be empty.")
		}
		return nil, s.storeFailure(err, userID, "failed to create todo")
	}

	s.log.Info().
		Uint("user_id", userID).
		Uint("todo_id", todo.ID).
		Msg("created todo")
	return &api.CreateTodoResponse{InsertID: todo.ID}, nil
}

// Update changes the content and/or done state of one owned todo
func (s *todoService) Update(ctx context.Context, userID uint, req api.UpdateTodoRequest) (*api.UpdateTodoResponse, error) {
	if req.ID == 0 {
		return nil, invalid("id", "You have to provide a valid id.")
	}

	existing, err := s.repo.FindByIDForUser(ctx, userID, req.ID)
	if err != nil {
		if errors.Is(err, repository.ErrTodoNotFound) {
			s.log.Warn().
				Uint("user_id", userID).
				Uint("todo_id", req.ID).
				Msg("update of unowned todo")
			return nil, invalid("id", "You have to provide a valid id.")
		}
		return nil, s.storeFailure(err, userID, "failed to find todo for update")
	}

	var upd repository.TodoUpdate
	if req.Content != nil {
		content := strings.TrimSpace(*req.Content)
		if content == "" {
			return nil, invalid("content", "Content must not be empty.")
		}
		upd.Content = &content
		existing.Content = content
	}
	if req.Done != nil {
		done := *req.Done
		upd.Done = &done
		switch {
		case done && existing.Done && existing.TimeDone != nil:
			// Already done: keep the original completion time.
			upd.TimeDone = existing.TimeDone
		case done:
			now := s.now().UTC()
			upd.TimeDone = &now
		}
		existing.Done = done
		existing.TimeDone = upd.TimeDone
	}

	updated, err := s.repo.Update(ctx, userID, req.ID, upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrTodoNotFound):
			// Deleted between the lookup and the write.
			return nil, invalid("id", "You have to provide a valid id.")
		case errors.Is(err, repository.ErrInvalidTodo):
			return nil, invalid("content", "Content must not be empty.")
		}
		return nil, s.storeFailure(err, userID, "failed to update todo")
	}

	s.log.Info().
		Uint("user_id", userID).
		Uint("todo_id", req.ID).
		Bool("content", req.Content != nil).
		Bool("done", req.Done != nil).
		Msg("updated todo")
	return &api.UpdateTodoResponse{Updated: updated, Todo: toResponse(*existing)}, nil
}

// Delete removes the caller's todos among the given ids
func (s *todoService) Delete(ctx context.Context, userID uint, req api.DeleteTodosRequest) (*api.DeleteTodosResponse, error) {
	if len(req.Todos) == 0 {
		return nil, invalid("todos", "Need an array of ids in order to remove todos.")
	}

	deleted, err := s.repo.DeleteOwned(ctx, userID, req.Todos)
	if err != nil {
		return nil, s.storeFailure(err, userID, "failed to delete todos")
	}

	s.log.Info().
		Uint("user_id", userID).
		Int("requested", len(req.Todos)).
		Int64("deleted", deleted).
		Msg("deleted todos")
	return &api.DeleteTodosResponse{Deleted: deleted}, nil
}

// Reorder rewrites the display order of the caller's todos
func (s *todoService) Reorder(ctx context.Context, userID uint, req api.ReorderTodosRequest) (*api.ReorderTodosResponse, error) {
	if len(req.Order) == 0 {
		return nil, invalid("order", "Reordering must be done on a set of todos.")
	}

	applied, err := s.repo.Reorder(ctx, userID, req.Order)
	if err != nil {
		return nil, s.storeFailure(err, userID, "failed to reorder todos")
	}
	if applied == nil {
		applied = []uint{}
	}

	s.log.Info().
		Uint("user_id", userID).
		Int("requested", len(req.Order)).
		Int("reordered", len(applied)).
		Msg("reordered todos")
	return &api.ReorderTodosResponse{Reordered: len(applied), Order: applied}, nil
}

func (s *todoService) storeFailure(err error, userID uint, msg string) error {
	s.log.Error().
		Err(err).
		Uint("user_id", userID).
		Msg(msg)
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func toResponse(todo domain.Todo) api.Todo {
	resp := api.Todo{
		ID:          todo.ID,
		Content:     todo.Content,
		Done:        todo.Done,
		Position:    todo.Position,
		TimeCreated: todo.TimeCreated.UTC().Format(time.RFC3339),
	}
	if todo.TimeDone != nil {
		done := todo.TimeDone.UTC().Format(time.RFC3339)
		resp.TimeDone = &done
	}
	return resp
}
