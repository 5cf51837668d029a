//go:build integration

package customer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"customers/internal/customer/models"
	"customers/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	StoreContractSuite
	postgres *containers.PostgresContainer
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := new(PostgresStoreSuite)
	s.newStore = func() Store {
		store := NewPostgres(s.postgres.DB, DefaultTable)
		s.Require().NoError(s.postgres.TruncateTables(context.Background(), DefaultTable))
		return store
	}
	suite.Run(t, s)
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.Require().NoError(NewPostgres(s.postgres.DB, DefaultTable).EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TestAgeCheckConstraint() {
	_, err := s.postgres.DB.ExecContext(s.ctx,
		`INSERT INTO customers (name, email, age) VALUES ('X', 'x@x.com', 100)`)
	s.Require().Error(err)
}

func (s *PostgresStoreSuite) TestQuotedTableName() {
	store := NewPostgres(s.postgres.DB, "Customer Archive")
	s.Require().NoError(store.EnsureSchema(s.ctx))
	s.T().Cleanup(func() {
		_, _ = s.postgres.DB.Exec(`DROP TABLE IF EXISTS "Customer Archive"`)
	})

	saved, err := store.Save(s.ctx, &models.Customer{Name: "Ada", Email: "ada@archive.com", Age: 30})
	s.Require().NoError(err)
	s.False(saved.ID.IsZero())
}
