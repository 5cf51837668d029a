package customer

import (
	"database/sql"
	"errors"
	"fmt"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore persists customers in a SQLite database file. The *sql.DB
// should be limited to one open connection; SQLite serializes writers anyway.
type SQLiteStore struct {
	*sqlStore
}

// NewSQLite constructs a SQLite-backed customer store on table.
func NewSQLite(db *sql.DB, table string) *SQLiteStore {
	if table == "" {
		table = DefaultTable
	}
	quoted := `"` + table + `"`
	return &SQLiteStore{sqlStore: newSQLStore(db, quoted, dialect{
		name:        "sqlite",
		placeholder: func(int) string { return "?" },
		createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			age   INTEGER NOT NULL CHECK (age >= 1 AND age < 100)
		)`, quoted),
		isUniqueViolation: isSQLiteUniqueViolation,
	})}
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
