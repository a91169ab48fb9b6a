// package repositories provides persistence layer implementations for all model types.
//
// Each repository wraps a *sql.DB for one entity type. Queries are written with `?`
// placeholders and rebound for the configured driver.
package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/statify/internal/shared"
)

// Option configures a repository.
type Option func(*base)

// WithDriver sets the database/sql driver name used to rebind placeholders.
// Repositories default to [shared.DriverSQLite].
func WithDriver(driver string) Option {
	return func(b *base) {
		if driver != "" {
			b.driver = driver
		}
	}
}

type base struct {
	db     *sql.DB
	driver string
}

func newBase(db *sql.DB, opts []Option) base {
	b := base{db: db, driver: shared.DriverSQLite}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) rebind(query string) string {
	return shared.Rebind(b.driver, query)
}

// affected returns notFound when the result touched no rows.
func affected(result sql.Result, notFound error) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
