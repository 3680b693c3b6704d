package database

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/Tomlord1122/todo-widget/internal/domain"
)

var prefixPattern = regexp.MustCompile(`^[a-z0-9_]*$`)

const createTableStatement = `
CREATE TABLE IF NOT EXISTS %[1]s (
    id           BIGSERIAL PRIMARY KEY,
    content      TEXT NOT NULL,
    done         BOOLEAN NOT NULL DEFAULT FALSE,
    time_created TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
    time_done    TIMESTAMPTZ NULL DEFAULT NULL,
    user_id      BIGINT NOT NULL,
    position     INTEGER NOT NULL DEFAULT 0,
    CONSTRAINT %[1]s_content_not_blank CHECK (btrim(content) <> ''),
    CONSTRAINT %[1]s_position_unsigned CHECK (position >= 0)
)`

const createIndexStatement = `CREATE INDEX IF NOT EXISTS %[1]s_user_id_idx ON %[1]s (user_id)`

// Table validates prefix and returns the tenant's todo table name. Prefixes
// end up in DDL, so only lowercase letters, digits and underscores pass.
func Table(prefix string) (string, error) {
	if !prefixPattern.MatchString(prefix) {
		return "", fmt.Errorf("invalid table prefix %q", prefix)
	}
	return domain.TableFor(prefix), nil
}

// Provision creates the todo table and its user_id index for every tenant.
// It is idempotent.
func Provision(ctx context.Context, db *gorm.DB, prefixes []string, log zerolog.Logger) error {
	for _, prefix := range prefixes {
		table, err := Table(prefix)
		if err != nil {
			return err
		}

		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(fmt.Sprintf(createTableStatement, table)).Error; err != nil {
				return fmt.Errorf("create table %s: %w", table, err)
			}
			if err := tx.Exec(fmt.Sprintf(createIndexStatement, table)).Error; err != nil {
				return fmt.Errorf("create index on %s: %w", table, err)
			}
			return nil
		})
		if err != nil {
			log.Error().Err(err).Str("table", table).Msg("failed to provision tenant")
			return err
		}
		log.Info().Str("table", table).Msg("provisioned tenant")
	}
	return nil
}

// Uninstall drops the todo table of every tenant.
func Uninstall(ctx context.Context, db *gorm.DB, prefixes []string, log zerolog.Logger) error {
	for _, prefix := range prefixes {
		table, err := Table(prefix)
		if err != nil {
			return err
		}
		if err := db.WithContext(ctx).Migrator().DropTable(table); err != nil {
			log.Error().Err(err).Str("table", table).Msg("failed to drop tenant table")
			return fmt.Errorf("drop table %s: %w", table, err)
		}
		log.Info().Str("table", table).Msg("dropped tenant table")
	}
	return nil
}
