package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"customers/internal/customer/models"
	id "customers/pkg/domain"
	"customers/pkg/platform/sentinel"
	"customers/pkg/platform/tx"
)

// executor is satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// dialect captures the differences between the SQL backends.
type dialect struct {
	name              string
	placeholder       func(n int) string
	createTable       string
	isUniqueViolation func(err error) bool
}

type queries struct {
	findAll       string
	findByID      string
	existsByEmail string
	existsByID    string
	insert        string
	update        string
	deleteByID    string
}

// sqlStore implements the customer store over database/sql. The email column
// carries a UNIQUE constraint, so uniqueness holds even when two service
// calls race past their existence checks.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	q       queries
}

func newSQLStore(db *sql.DB, table string, d dialect) *sqlStore {
	p := d.placeholder
	return &sqlStore{
		db:      db,
		dialect: d,
		q: queries{
			findAll:       fmt.Sprintf(`SELECT id, name, email, age FROM %s ORDER BY id`, table),
			findByID:      fmt.Sprintf(`SELECT id, name, email, age FROM %s WHERE id = %s`, table, p(1)),
			existsByEmail: fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE email = %s)`, table, p(1)),
			existsByID:    fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = %s)`, table, p(1)),
			insert:        fmt.Sprintf(`INSERT INTO %s (name, email, age) VALUES (%s, %s, %s) RETURNING id`, table, p(1), p(2), p(3)),
			update:        fmt.Sprintf(`UPDATE %s SET name = %s, email = %s, age = %s WHERE id = %s`, table, p(1), p(2), p(3), p(4)),
			deleteByID:    fmt.Sprintf(`DELETE FROM %s WHERE id = %s`, table, p(1)),
		},
	}
}

// EnsureSchema creates the customers table if it does not exist.
func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return fmt.Errorf("create %s customers table: %w", s.dialect.name, err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the pool.
func (s *sqlStore) conn(ctx context.Context) executor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *sqlStore) FindAll(ctx context.Context) ([]*models.Customer, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, s.q.findAll)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Customer, 0)
	for rows.Next() {
		var c models.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Age); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate customers: %w", err)
	}
	return out, nil
}

func (s *sqlStore) FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error) {
	var c models.Customer
	err := s.conn(ctx).QueryRowContext(ctx, s.q.findByID, int64(customerID)).Scan(&c.ID, &c.Name, &c.Email, &c.Age)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find customer: %w", err)
	}
	return &c, nil
}

func (s *sqlStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx, s.q.existsByEmail, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer email: %w", err)
	}
	return exists, nil
}

func (s *sqlStore) ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error) {
	var exists bool
	if err := s.conn(ctx).QueryRowContext(ctx, s.q.existsByID, int64(customerID)).Scan(&exists); err != nil {
		return false, fmt.Errorf("check customer id: %w", err)
	}
	return exists, nil
}

// Save inserts when the ID is zero and updates by ID otherwise.
func (s *sqlStore) Save(ctx context.Context, c *models.Customer) (*models.Customer, error) {
	if c == nil {
		return nil, fmt.Errorf("customer is required")
	}
	saved := c.Clone()

	if saved.ID.IsZero() {
		var newID int64
		err := s.conn(ctx).QueryRowContext(ctx, s.q.insert, saved.Name, saved.Email, saved.Age).Scan(&newID)
		if err != nil {
			return nil, s.classifyWriteErr("insert customer", saved.Email, err)
		}
		saved.ID = id.CustomerID(newID)
		return saved, nil
	}

	res, err := s.conn(ctx).ExecContext(ctx, s.q.update, saved.Name, saved.Email, saved.Age, int64(saved.ID))
	if err != nil {
		return nil, s.classifyWriteErr("update customer", saved.Email, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("customer %s: %w", saved.ID, sentinel.ErrNotFound)
	}
	return saved, nil
}

func (s *sqlStore) DeleteByID(ctx context.Context, customerID id.CustomerID) error {
	res, err := s.conn(ctx).ExecContext(ctx, s.q.deleteByID, int64(customerID))
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return nil
}

func (s *sqlStore) classifyWriteErr(op, email string, err error) error {
	if s.dialect.isUniqueViolation(err) {
		return fmt.Errorf("email %q: %w", email, sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("%s: %w", op, err)
}
