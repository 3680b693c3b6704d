package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

// SQLSTATE class 23 codes the schema can raise for a bad row.
const (
	checkViolation   = "23514"
	notNullViolation = "23502"
)

type gormTodoRepository struct {
	db    *gorm.DB
	table string
	log   zerolog.Logger
}

// NewGormTodoRepository returns a TodoRepository backed by table.
func NewGormTodoRepository(db *gorm.DB, table string, log zerolog.Logger) TodoRepository {
	return &gormTodoRepository{
		db:    db,
		table: table,
		log:   log.With().Str("table", table).Logger(),
	}
}

func (r *gormTodoRepository) owned(db *gorm.DB, userID uint) *gorm.DB {
	return db.Table(r.table).Where("user_id = ?", userID)
}

func (r *gormTodoRepository) ListByUser(ctx context.Context, userID uint) ([]domain.Todo, error) {
	todos := make([]domain.Todo, 0)
	err := r.owned(r.db.WithContext(ctx), userID).
		Order("position ASC").
		Order("time_created DESC").
		Order("id DESC").
		Find(&todos).Error
	if err != nil {
		return nil, r.wrap("list todos", err)
	}
	return todos, nil
}

func (r *gormTodoRepository) Create(ctx context.Context, todo *domain.Todo) error {
	err := r.db.WithContext(ctx).Table(r.table).Create(todo).Error
	if err != nil {
		return r.wrap("create todo", err)
	}
	return nil
}

func (r *gormTodoRepository) FindByIDForUser(ctx context.Context, userID, id uint) (*domain.Todo, error) {
	var todo domain.Todo
	err := r.owned(r.db.WithContext(ctx), userID).Where("id = ?", id).Take(&todo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTodoNotFound
		}
		return nil, r.wrap("find todo", err)
	}
	return &todo, nil
}

func (r *gormTodoRepository) Update(ctx context.Context, userID, id uint, upd TodoUpdate) (int64, error) {
	if upd.Empty() {
		return 0, nil
	}

	columns := make(map[string]any, 3)
	if upd.Content != nil {
		columns["content"] = *upd.Content
	}
	if upd.Done != nil {
		columns["done"] = *upd.Done
		if upd.TimeDone != nil {
			columns["time_done"] = *upd.TimeDone
		} else {
			columns["time_done"] = gorm.Expr("NULL")
		}
	}

	result := r.owned(r.db.WithContext(ctx), userID).Where("id = ?", id).Updates(columns)
	if result.Error != nil {
		return 0, r.wrap("update todo", result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, ErrTodoNotFound
	}
	return result.RowsAffected, nil
}

func (r *gormTodoRepository) OwnedIDs(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	return r.ownedIDs(r.db.WithContext(ctx), userID, ids)
}

func (r *gormTodoRepository) ownedIDs(db *gorm.DB, userID uint, ids []uint) ([]uint, error) {
	owned := make([]uint, 0, len(ids))
	if len(ids) == 0 {
		return owned, nil
	}
	err := r.owned(db, userID).Where("id IN ?", ids).Order("id").Pluck("id", &owned).Error
	if err != nil {
		return nil, r.wrap("select owned ids", err)
	}
	return owned, nil
}

func (r *gormTodoRepository) DeleteOwned(ctx context.Context, userID uint, ids []uint) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := r.ownedIDs(tx, userID, ids)
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			return nil
		}

		result := tx.Exec("DELETE FROM ? WHERE user_id = ? AND id IN ?", clause.Table{Name: r.table}, userID, owned)
		if result.Error != nil {
			return r.wrap("delete todos", result.Error)
		}
		deleted = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.log.Debug().
		Uint("user_id", userID).
		Int("requested", len(ids)).
		Int64("deleted", deleted).
		Msg("deleted todos")
	return deleted, nil
}

func (r *gormTodoRepository) Reorder(ctx context.Context, userID uint, ids []uint) ([]uint, error) {
	var applied []uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := r.ownedIDs(tx, userID, ids)
		if err != nil {
			return err
		}
		applied = applicableOrder(ids, idSet(owned))

		for i, id := range applied {
			err := tx.Exec(
				"UPDATE ? SET position = ? WHERE user_id = ? AND id = ?",
				clause.Table{Name: r.table}, i+1, userID, id,
			).Error
			if err != nil {
				return r.wrap("set position", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.log.Debug().
		Uint("user_id", userID).
		Int("requested", len(ids)).
		Int("reordered", len(applied)).
		Msg("reordered todos")
	return applied, nil
}

func (r *gormTodoRepository) wrap(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case checkViolation, notNullViolation:
			r.log.Warn().
				Str("code", pgErr.Code).
				Str("constraint", pgErr.ConstraintName).
				Msg(op + " rejected by schema")
			return fmt.Errorf("%s: %w", op, ErrInvalidTodo)
		}
		r.log.Error().
			Err(err).
			Str("code", pgErr.Code).
			Msg(op + " failed")
		return fmt.Errorf("%s: %w", op, err)
	}
	r.log.Error().Err(err).Msg(op + " failed")
	return fmt.Errorf("%s: %w", op, err)
}
