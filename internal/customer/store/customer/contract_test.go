package customer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/suite"

	"customers/internal/customer/models"
	id "customers/pkg/domain"
	"customers/pkg/platform/sentinel"
)

// Store is the contract every backend in this package satisfies.
type Store interface {
	FindAll(ctx context.Context) ([]*models.Customer, error)
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error)
	Save(ctx context.Context, c *models.Customer) (*models.Customer, error)
	DeleteByID(ctx context.Context, customerID id.CustomerID) error
}

// StoreContractSuite runs the same behavioural checks against every backend.
// Embedders set newStore; it must return an empty store.
type StoreContractSuite struct {
	suite.Suite
	ctx      context.Context
	newStore func() Store
	store    Store
}

func (s *StoreContractSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = s.newStore()
}

func (s *StoreContractSuite) mustSave(name, email string, age int) *models.Customer {
	saved, err := s.store.Save(s.ctx, &models.Customer{Name: name, Email: email, Age: age})
	s.Require().NoError(err)
	return saved
}

func (s *StoreContractSuite) TestInsertAssignsID() {
	saved := s.mustSave("Ada", "ada@x.com", 30)
	s.False(saved.ID.IsZero())

	found, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().NoError(err)
	s.Equal(saved, found)

	other := s.mustSave("Grace", "grace@x.com", 45)
	s.NotEqual(saved.ID, other.ID)
}

func (s *StoreContractSuite) TestFindAll() {
	s.Run("empty store yields empty list", func() {
		all, err := s.store.FindAll(s.ctx)
		s.Require().NoError(err)
		s.NotNil(all)
		s.Empty(all)
	})

	s.Run("returns customers in id order", func() {
		a := s.mustSave("Ada", "ada@x.com", 30)
		b := s.mustSave("Grace", "grace@x.com", 45)

		all, err := s.store.FindAll(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(all, 2)
		s.Equal(a.ID, all[0].ID)
		s.Equal(b.ID, all[1].ID)
	})
}

func (s *StoreContractSuite) TestLookups() {
	saved := s.mustSave("Ada", "ada@x.com", 30)

	s.Run("exists by id", func() {
		ok, err := s.store.ExistsByID(s.ctx, saved.ID)
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.ExistsByID(s.ctx, saved.ID+1000)
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("exists by email is exact", func() {
		ok, err := s.store.ExistsByEmail(s.ctx, "ada@x.com")
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.ExistsByEmail(s.ctx, "ADA@X.COM")
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, saved.ID+1000)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreContractSuite) TestReplace() {
	saved := s.mustSave("Ada", "ada@x.com", 30)

	s.Run("replaces by id", func() {
		saved.Name = "Ada L."
		saved.Email = "lovelace@x.com"
		updated, err := s.store.Save(s.ctx, saved)
		s.Require().NoError(err)
		s.Equal(saved.ID, updated.ID)

		found, err := s.store.FindByID(s.ctx, saved.ID)
		s.Require().NoError(err)
		s.Equal("Ada L.", found.Name)
		s.Equal("lovelace@x.com", found.Email)

		ok, err := s.store.ExistsByEmail(s.ctx, "ada@x.com")
		s.Require().NoError(err)
		s.False(ok, "old email must be released")
	})

	s.Run("replacing an unknown id returns ErrNotFound", func() {
		_, err := s.store.Save(s.ctx, &models.Customer{ID: saved.ID + 1000, Name: "X", Email: "x@x.com", Age: 20})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreContractSuite) TestEmailUniqueness() {
	first := s.mustSave("Ada", "ada@x.com", 30)

	s.Run("rejects duplicate email on insert", func() {
		_, err := s.store.Save(s.ctx, &models.Customer{Name: "Imposter", Email: "ada@x.com", Age: 40})
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects taking another customer's email on replace", func() {
		second := s.mustSave("Grace", "grace@x.com", 45)
		second.Email = first.Email
		_, err := s.store.Save(s.ctx, second)
		s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("re-saving own email is allowed", func() {
		_, err := s.store.Save(s.ctx, first)
		s.Require().NoError(err)
	})
}

// TestConcurrentDuplicateEmail verifies concurrent inserts with one email
// produce exactly one record.
func (s *StoreContractSuite) TestConcurrentDuplicateEmail() {
	const goroutines = 20
	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.store.Save(s.ctx, &models.Customer{
				Name:  fmt.Sprintf("Racer %d", i),
				Email: "race@x.com",
				Age:   30,
			})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflictCount.Add(1)
			}
		}(i)
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load(), "exactly one save should succeed")
	s.Equal(int32(goroutines-1), conflictCount.Load())

	all, err := s.store.FindAll(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *StoreContractSuite) TestDelete() {
	saved := s.mustSave("Ada", "ada@x.com", 30)

	s.Require().NoError(s.store.DeleteByID(s.ctx, saved.ID))

	_, err := s.store.FindByID(s.ctx, saved.ID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	ok, err := s.store.ExistsByEmail(s.ctx, "ada@x.com")
	s.Require().NoError(err)
	s.False(ok)

	s.Run("second delete returns ErrNotFound", func() {
		s.Require().ErrorIs(s.store.DeleteByID(s.ctx, saved.ID), sentinel.ErrNotFound)
	})

	s.Run("email is reusable after delete", func() {
		again := s.mustSave("Ada", "ada@x.com", 31)
		s.NotEqual(saved.ID, again.ID)
	})
}
