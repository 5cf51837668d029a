package customer

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	// DefaultTable is used when no table name is configured.
	DefaultTable = "customers"

	pgUniqueViolation = "23505"
)

// PostgresStore persists customers in PostgreSQL. The *sql.DB is expected to
// use the pgx stdlib driver (see internal/platform/database).
type PostgresStore struct {
	*sqlStore
}

// NewPostgres constructs a PostgreSQL-backed customer store on table.
func NewPostgres(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultTable
	}
	quoted := pq.QuoteIdentifier(table)
	return &PostgresStore{sqlStore: newSQLStore(db, quoted, dialect{
		name:        "postgres",
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id    BIGSERIAL PRIMARY KEY,
			name  TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			age   INTEGER NOT NULL CHECK (age >= 1 AND age < 100)
		)`, quoted),
		isUniqueViolation: isPgUniqueViolation,
	})}
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
