package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"customers/internal/customer/events"
	"customers/internal/customer/metrics"
	"customers/internal/customer/models"
	id "customers/pkg/domain"
	dErrors "customers/pkg/domain-errors"
	"customers/pkg/platform/sentinel"
	"customers/pkg/requestcontext"
)

const tracerName = "customers/internal/customer/service"

// CustomerStore persists customer records.
//
// Save inserts when the customer's ID is zero and replaces otherwise. It
// returns sentinel.ErrAlreadyUsed when another record holds the email and
// sentinel.ErrNotFound when replacing an id that does not exist.
type CustomerStore interface {
	FindAll(ctx context.Context) ([]*models.Customer, error)
	FindByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error)
	Save(ctx context.Context, customer *models.Customer) (*models.Customer, error)
	DeleteByID(ctx context.Context, customerID id.CustomerID) error
}

// EventPublisher delivers lifecycle events once a change has been committed.
type EventPublisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Transactor runs fn atomically. Stores join the transaction carried by the
// context passed to fn.
type Transactor func(ctx context.Context, fn func(ctx context.Context) error) error

// Service is the customer directory: it validates and orchestrates every read
// and mutation of customer records.
type Service struct {
	customers CustomerStore
	publisher EventPublisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	transact  Transactor
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(s *Service) {
		s.publisher = publisher
	}
}

// WithTransactor runs each check-then-write sequence inside one transaction.
func WithTransactor(t Transactor) Option {
	return func(s *Service) {
		if t != nil {
			s.transact = t
		}
	}
}

// New constructs a Service.
func New(customers CustomerStore, opts ...Option) (*Service, error) {
	if customers == nil {
		return nil, errors.New("customer store is required")
	}
	s := &Service{
		customers: customers,
		tracer:    otel.Tracer(tracerName),
		transact: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return fn(ctx)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ListAll returns every customer in store order.
func (s *Service) ListAll(ctx context.Context) (customers []*models.Customer, err error) {
	ctx, span := s.tracer.Start(ctx, "customer.ListAll")
	defer func() { endSpan(span, err) }()
	defer s.observe("list_all", time.Now())

	found, err := s.customers.FindAll(ctx)
	if err != nil {
		return nil, storeError(err, "failed to list customers")
	}
	if found == nil {
		found = []*models.Customer{}
	}
	span.SetAttributes(attribute.Int("customer.count", len(found)))
	return found, nil
}

// GetByID returns a single customer.
func (s *Service) GetByID(ctx context.Context, customerID id.CustomerID) (customer *models.Customer, err error) {
	ctx, span := s.tracer.Start(ctx, "customer.GetByID",
		trace.WithAttributes(attribute.Int64("customer.id", int64(customerID))))
	defer func() { endSpan(span, err) }()
	defer s.observe("get_by_id", time.Now())

	customer, err = s.customers.FindByID(ctx, customerID)
	if err != nil {
		return nil, storeError(err, "failed to load customer")
	}
	return customer, nil
}

// Register creates a customer from a registration request. The email must not
// be held by any existing customer.
func (s *Service) Register(ctx context.Context, req *models.RegistrationRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "customer.Register")
	defer func() { endSpan(span, err) }()
	defer s.observe("register", time.Now())

	req.Normalize()
	if err := req.Validate(); err != nil {
		return err
	}

	customer, err := models.NewCustomer(*req.Name, *req.Email, *req.Age)
	if err != nil {
		return toValidation(err)
	}

	var saved *models.Customer
	err = s.inTx(ctx, func(ctx context.Context) error {
		taken, err := s.customers.ExistsByEmail(ctx, customer.Email)
		if err != nil {
			return storeError(err, "failed to check email")
		}
		if taken {
			return s.duplicateEmail(ctx, customer.Email)
		}

		saved, err = s.customers.Save(ctx, customer)
		if err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return s.duplicateEmail(ctx, customer.Email)
			}
			return storeError(err, "failed to save customer")
		}
		return nil
	})
	if err != nil {
		return err
	}

	span.SetAttributes(attribute.Int64("customer.id", int64(saved.ID)))
	s.logAudit(ctx, string(events.TypeRegistered), "customer_id", saved.ID)
	s.incrementRegistered()
	s.publish(ctx, events.TypeRegistered, saved.ID, nil)
	return nil
}

// ExistsByEmail reports whether any customer holds email exactly as given.
func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	exists, err := s.customers.ExistsByEmail(ctx, email)
	if err != nil {
		return false, storeError(err, "failed to check email")
	}
	return exists, nil
}

// ExistsByID reports whether a customer with the id exists.
func (s *Service) ExistsByID(ctx context.Context, customerID id.CustomerID) (bool, error) {
	exists, err := s.customers.ExistsByID(ctx, customerID)
	if err != nil {
		return false, storeError(err, "failed to check customer")
	}
	return exists, nil
}

// Update applies the present fields of req over the stored customer. When no
// field differs from the stored value nothing is written.
func (s *Service) Update(ctx context.Context, customerID id.CustomerID, req *models.UpdateRequest) (err error) {
	ctx, span := s.tracer.Start(ctx, "customer.Update",
		trace.WithAttributes(attribute.Int64("customer.id", int64(customerID))))
	defer func() { endSpan(span, err) }()
	defer s.observe("update", time.Now())

	var changed []string
	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.requireExists(ctx, customerID); err != nil {
			return err
		}

		current, err := s.customers.FindByID(ctx, customerID)
		if err != nil {
			return storeError(err, "failed to load customer")
		}

		req.Normalize()
		if err := req.Validate(); err != nil {
			return err
		}

		merged, diff := current.Merge(req.ToUpdate())
		if len(diff) == 0 {
			return nil
		}

		if merged.Email != current.Email {
			taken, err := s.customers.ExistsByEmail(ctx, merged.Email)
			if err != nil {
				return storeError(err, "failed to check email")
			}
			if taken {
				return s.duplicateEmail(ctx, merged.Email)
			}
		}

		if _, err := s.customers.Save(ctx, merged); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return s.duplicateEmail(ctx, merged.Email)
			}
			return storeError(err, "failed to save customer")
		}
		changed = diff
		return nil
	})
	if err != nil {
		return err
	}
	if len(changed) == 0 {
		span.SetAttributes(attribute.Bool("customer.noop", true))
		s.incrementNoOp()
		return nil
	}

	s.logAudit(ctx, string(events.TypeUpdated),
		"customer_id", customerID,
		"changed_fields", changed,
	)
	s.incrementUpdated()
	s.publish(ctx, events.TypeUpdated, customerID, changed)
	return nil
}

// Delete removes a customer. Deleting an absent id fails with not_found.
func (s *Service) Delete(ctx context.Context, customerID id.CustomerID) (err error) {
	ctx, span := s.tracer.Start(ctx, "customer.Delete",
		trace.WithAttributes(attribute.Int64("customer.id", int64(customerID))))
	defer func() { endSpan(span, err) }()
	defer s.observe("delete", time.Now())

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.requireExists(ctx, customerID); err != nil {
			return err
		}
		if err := s.customers.DeleteByID(ctx, customerID); err != nil {
			return storeError(err, "failed to delete customer")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logAudit(ctx, string(events.TypeDeleted), "customer_id", customerID)
	s.incrementDeleted()
	s.publish(ctx, events.TypeDeleted, customerID, nil)
	return nil
}

// inTx runs fn through the transactor. Errors from fn are already domain
// errors; anything else came from begin or commit.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	err := s.transact(ctx, fn)
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return storeError(err, "failed to commit customer change")
}

func (s *Service) requireExists(ctx context.Context, customerID id.CustomerID) error {
	exists, err := s.customers.ExistsByID(ctx, customerID)
	if err != nil {
		return storeError(err, "failed to check customer")
	}
	if !exists {
		return notFound(customerID)
	}
	return nil
}

func (s *Service) duplicateEmail(ctx context.Context, email string) error {
	if s.logger != nil {
		s.logger.InfoContext(ctx, "duplicate email rejected",
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	if s.metrics != nil {
		s.metrics.DuplicateEmails.Inc()
	}
	return dErrors.New(dErrors.CodeDuplicateEmail, "email "+email+" is already in use")
}

// publish runs after the write has landed; a delivery failure is logged and
// never fails the operation.
func (s *Service) publish(ctx context.Context, eventType events.Type, customerID id.CustomerID, changed []string) {
	if s.publisher == nil {
		return
	}
	event := events.Event{
		Type:          eventType,
		CustomerID:    customerID,
		ChangedFields: changed,
		RequestID:     requestcontext.RequestID(ctx),
		OccurredAt:    requestcontext.Now(ctx),
	}
	if err := s.publisher.Publish(ctx, event); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to publish customer event",
			"event", string(eventType),
			"customer_id", customerID,
			"request_id", event.RequestID,
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if s.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", event, "log_type", "audit")
	s.logger.InfoContext(ctx, event, args...)
}

func (s *Service) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveOperation(op, start)
	}
}

func (s *Service) incrementRegistered() {
	if s.metrics != nil {
		s.metrics.CustomersRegistered.Inc()
	}
}

func (s *Service) incrementUpdated() {
	if s.metrics != nil {
		s.metrics.CustomersUpdated.Inc()
	}
}

func (s *Service) incrementDeleted() {
	if s.metrics != nil {
		s.metrics.CustomersDeleted.Inc()
	}
}

func (s *Service) incrementNoOp() {
	if s.metrics != nil {
		s.metrics.NoOpUpdates.Inc()
	}
}

// storeError translates store failures into domain errors.
func storeError(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "customer not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeDuplicateEmail, "email is already in use")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "request timed out")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}

func notFound(customerID id.CustomerID) error {
	return dErrors.New(dErrors.CodeNotFound, "customer "+customerID.String()+" not found")
}

// toValidation converts model invariant violations into validation errors for
// the API response.
func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return err
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
