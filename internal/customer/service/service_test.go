package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks CustomerStore,EventPublisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"customers/internal/customer/events"
	"customers/internal/customer/metrics"
	"customers/internal/customer/models"
	"customers/internal/customer/service/mocks"
	id "customers/pkg/domain"
	dErrors "customers/pkg/domain-errors"
	"customers/pkg/platform/sentinel"
	"customers/pkg/requestcontext"
)

// =============================================================================
// Customer Service Test Suite
// =============================================================================
// Unit tests pin the store call sequence of each operation: which calls happen,
// which never happen on a failed check, and how store errors are translated.
// Behaviour against a real store is covered in lifecycle_test.go.

type ServiceSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	mockStore     *mocks.MockCustomerStore
	mockPublisher *mocks.MockEventPublisher
	metrics       *metrics.Metrics
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockStore = mocks.NewMockCustomerStore(s.ctrl)
	s.mockPublisher = mocks.NewMockEventPublisher(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())

	svc, err := New(
		s.mockStore,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithPublisher(s.mockPublisher),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func strPtr(v string) *string { return &v }
func intPtr(v int) *int       { return &v }

func ada() *models.Customer {
	return &models.Customer{ID: 1, Name: "Ada", Email: "ada@x.io", Age: 36}
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil)
		s.Require().Error(err)
		s.Contains(err.Error(), "customer store is required")
	})

	s.Run("store only is enough", func() {
		svc, err := New(s.mockStore)
		s.Require().NoError(err)
		s.NotNil(svc)
	})
}

func (s *ServiceSuite) TestListAll() {
	ctx := context.Background()

	s.Run("returns store order", func() {
		all := []*models.Customer{ada(), {ID: 2, Name: "Bob", Email: "bob@x.io", Age: 40}}
		s.mockStore.EXPECT().FindAll(gomock.Any()).Return(all, nil)

		got, err := s.service.ListAll(ctx)
		s.Require().NoError(err)
		s.Equal(all, got)
	})

	s.Run("nil from store becomes empty slice", func() {
		s.mockStore.EXPECT().FindAll(gomock.Any()).Return(nil, nil)

		got, err := s.service.ListAll(ctx)
		s.Require().NoError(err)
		s.NotNil(got)
		s.Empty(got)
	})

	s.Run("store failure is internal", func() {
		s.mockStore.EXPECT().FindAll(gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := s.service.ListAll(ctx)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})
}

func (s *ServiceSuite) TestGetByID() {
	ctx := context.Background()

	s.Run("found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)

		got, err := s.service.GetByID(ctx, 1)
		s.Require().NoError(err)
		s.Equal("Ada", got.Name)
	})

	s.Run("missing is not found", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(99)).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.GetByID(ctx, 99)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("deadline is timeout", func() {
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(nil, context.DeadlineExceeded)

		_, err := s.service.GetByID(ctx, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})
}

func (s *ServiceSuite) TestRegister() {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := requestcontext.WithTime(requestcontext.WithRequestID(context.Background(), "req-1"), fixed)

	s.Run("saves trimmed customer with zero id and publishes", func() {
		req := &models.RegistrationRequest{Name: strPtr("  Ada "), Email: strPtr(" ada@x.io "), Age: intPtr(36)}

		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "ada@x.io").Return(false, nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, c *models.Customer) (*models.Customer, error) {
				s.True(c.ID.IsZero())
				s.Equal("Ada", c.Name)
				s.Equal("ada@x.io", c.Email)
				s.Equal(36, c.Age)
				saved := c.Clone()
				saved.ID = 7
				return saved, nil
			})
		s.mockPublisher.EXPECT().Publish(gomock.Any(), events.Event{
			Type:       events.TypeRegistered,
			CustomerID: 7,
			RequestID:  "req-1",
			OccurredAt: fixed,
		}).Return(nil)

		s.Require().NoError(s.service.Register(ctx, req))
		s.Equal(float64(1), testutil.ToFloat64(s.metrics.CustomersRegistered))
	})

	s.Run("missing field is validation error without store calls", func() {
		err := s.service.Register(ctx, &models.RegistrationRequest{Name: strPtr("Ada"), Age: intPtr(36)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("age out of range is validation error", func() {
		for _, age := range []int{0, 100, -3} {
			err := s.service.Register(ctx, &models.RegistrationRequest{
				Name: strPtr("Ada"), Email: strPtr("ada@x.io"), Age: intPtr(age),
			})
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), "age %d", age)
		}
	})

	s.Run("taken email is duplicate and never saves", func() {
		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "ada@x.io").Return(true, nil)

		err := s.service.Register(ctx, &models.RegistrationRequest{
			Name: strPtr("Other"), Email: strPtr("ada@x.io"), Age: intPtr(20),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEmail))
	})

	s.Run("store-level clash is duplicate", func() {
		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "ada@x.io").Return(false, nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrAlreadyUsed)

		err := s.service.Register(ctx, &models.RegistrationRequest{
			Name: strPtr("Ada"), Email: strPtr("ada@x.io"), Age: intPtr(36),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEmail))
	})

	s.Run("publish failure does not fail the write", func() {
		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "bob@x.io").Return(false, nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(&models.Customer{ID: 8, Name: "Bob", Email: "bob@x.io", Age: 40}, nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		err := s.service.Register(ctx, &models.RegistrationRequest{
			Name: strPtr("Bob"), Email: strPtr("bob@x.io"), Age: intPtr(40),
		})
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestUpdate() {
	ctx := context.Background()

	s.Run("absent id is not found and nothing is loaded", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(99)).Return(false, nil)

		err := s.service.Update(ctx, 99, &models.UpdateRequest{Name: strPtr("X")})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("name only changes name", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)
		s.mockStore.EXPECT().Save(gomock.Any(), &models.Customer{ID: 1, Name: "Ada L.", Email: "ada@x.io", Age: 36}).
			DoAndReturn(func(_ context.Context, c *models.Customer) (*models.Customer, error) { return c, nil })
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				s.Equal(events.TypeUpdated, e.Type)
				s.Equal([]string{"name"}, e.ChangedFields)
				return nil
			})

		s.Require().NoError(s.service.Update(ctx, 1, &models.UpdateRequest{Name: strPtr("Ada L.")}))
	})

	s.Run("empty update performs no write", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)
		before := testutil.ToFloat64(s.metrics.NoOpUpdates)

		s.Require().NoError(s.service.Update(ctx, 1, &models.UpdateRequest{}))
		s.Equal(before+1, testutil.ToFloat64(s.metrics.NoOpUpdates))
	})

	s.Run("same values perform no write", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)

		s.Require().NoError(s.service.Update(ctx, 1, &models.UpdateRequest{
			Name: strPtr("Ada"), Email: strPtr("ada@x.io"), Age: intPtr(36),
		}))
	})

	s.Run("invalid present field is validation error", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)

		err := s.service.Update(ctx, 1, &models.UpdateRequest{Age: intPtr(100)})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("email taken by another customer is duplicate", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)
		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "bob@x.io").Return(true, nil)

		err := s.service.Update(ctx, 1, &models.UpdateRequest{Email: strPtr("bob@x.io")})
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateEmail))
	})

	s.Run("row vanished before save is not found", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).Return(ada(), nil)
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrNotFound)

		err := s.service.Update(ctx, 1, &models.UpdateRequest{Age: intPtr(37)})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestDelete() {
	ctx := context.Background()

	s.Run("existing customer is deleted and published", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().DeleteByID(gomock.Any(), id.CustomerID(1)).Return(nil)
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		s.Require().NoError(s.service.Delete(ctx, 1))
	})

	s.Run("absent id is not found and nothing is deleted", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(99)).Return(false, nil)

		err := s.service.Delete(ctx, 99)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("row vanished between check and delete is not found", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().DeleteByID(gomock.Any(), id.CustomerID(1)).Return(sentinel.ErrNotFound)

		err := s.service.Delete(ctx, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestExistsPropagatesStoreFailure() {
	ctx := context.Background()
	boom := errors.New("boom")

	s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "a@x.io").Return(false, boom)
	_, err := s.service.ExistsByEmail(ctx, "a@x.io")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	s.ErrorIs(err, boom)

	s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(3)).Return(false, boom)
	_, err = s.service.ExistsByID(ctx, 3)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

type txMarkerKey struct{}

func inTx(ctx context.Context) bool {
	return ctx.Value(txMarkerKey{}) != nil
}

func (s *ServiceSuite) TestWritesRunInsideTransactor() {
	ctx := context.Background()
	var commitErr error
	svc, err := New(s.mockStore,
		WithPublisher(s.mockPublisher),
		WithTransactor(func(ctx context.Context, fn func(ctx context.Context) error) error {
			if err := fn(context.WithValue(ctx, txMarkerKey{}, true)); err != nil {
				return err
			}
			return commitErr
		}),
	)
	s.Require().NoError(err)

	publishedOutsideTx := func(ctx context.Context, _ events.Event) error {
		s.False(inTx(ctx))
		return nil
	}

	s.Run("register checks and saves in one transaction", func() {
		s.mockStore.EXPECT().ExistsByEmail(gomock.Any(), "ada@x.io").DoAndReturn(
			func(ctx context.Context, _ string) (bool, error) {
				s.True(inTx(ctx))
				return false, nil
			})
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, c *models.Customer) (*models.Customer, error) {
				s.True(inTx(ctx))
				saved := c.Clone()
				saved.ID = 1
				return saved, nil
			})
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(publishedOutsideTx)

		s.Require().NoError(svc.Register(ctx, &models.RegistrationRequest{
			Name: strPtr("Ada"), Email: strPtr("ada@x.io"), Age: intPtr(36),
		}))
	})

	s.Run("update loads and saves in one transaction", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).DoAndReturn(
			func(ctx context.Context, _ id.CustomerID) (bool, error) {
				s.True(inTx(ctx))
				return true, nil
			})
		s.mockStore.EXPECT().FindByID(gomock.Any(), id.CustomerID(1)).DoAndReturn(
			func(ctx context.Context, _ id.CustomerID) (*models.Customer, error) {
				s.True(inTx(ctx))
				return ada(), nil
			})
		s.mockStore.EXPECT().Save(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, c *models.Customer) (*models.Customer, error) {
				s.True(inTx(ctx))
				return c, nil
			})
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(publishedOutsideTx)

		s.Require().NoError(svc.Update(ctx, 1, &models.UpdateRequest{Age: intPtr(37)}))
	})

	s.Run("delete checks and deletes in one transaction", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).DoAndReturn(
			func(ctx context.Context, _ id.CustomerID) (bool, error) {
				s.True(inTx(ctx))
				return true, nil
			})
		s.mockStore.EXPECT().DeleteByID(gomock.Any(), id.CustomerID(1)).DoAndReturn(
			func(ctx context.Context, _ id.CustomerID) error {
				s.True(inTx(ctx))
				return nil
			})
		s.mockPublisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(publishedOutsideTx)

		s.Require().NoError(svc.Delete(ctx, 1))
	})

	s.Run("domain errors pass through the transactor unchanged", func() {
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(99)).Return(false, nil)

		err := svc.Delete(ctx, 99)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("commit failure is internal and publishes nothing", func() {
		commitErr = errors.New("commit tx: database is locked")
		defer func() { commitErr = nil }()
		s.mockStore.EXPECT().ExistsByID(gomock.Any(), id.CustomerID(1)).Return(true, nil)
		s.mockStore.EXPECT().DeleteByID(gomock.Any(), id.CustomerID(1)).Return(nil)

		err := svc.Delete(ctx, 1)
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
		s.ErrorIs(err, commitErr)
	})
}
