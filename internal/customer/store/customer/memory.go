package customer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"customers/internal/customer/models"
	id "customers/pkg/domain"
	"customers/pkg/platform/sentinel"
)

// InMemory is a mutex-guarded customer store. Email uniqueness is checked
// under the same lock as the write, so concurrent saves cannot both claim an
// email.
type InMemory struct {
	mu        sync.RWMutex
	customers map[id.CustomerID]*models.Customer
	byEmail   map[string]id.CustomerID
	nextID    id.CustomerID
}

// NewInMemory constructs an empty store. IDs start at 1.
func NewInMemory() *InMemory {
	return &InMemory{
		customers: make(map[id.CustomerID]*models.Customer),
		byEmail:   make(map[string]id.CustomerID),
		nextID:    1,
	}
}

// FindAll returns every customer in ascending id order.
func (s *InMemory) FindAll(_ context.Context) ([]*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		out = append(out, c.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, customerID id.CustomerID) (*models.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[customerID]
	if !ok {
		return nil, fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	return c.Clone(), nil
}

func (s *InMemory) ExistsByEmail(_ context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.byEmail[email]
	return ok, nil
}

func (s *InMemory) ExistsByID(_ context.Context, customerID id.CustomerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.customers[customerID]
	return ok, nil
}

// Save inserts the customer when its ID is zero and replaces it otherwise.
// Returns sentinel.ErrAlreadyUsed when another customer holds the email and
// sentinel.ErrNotFound when replacing an id that does not exist.
func (s *InMemory) Save(_ context.Context, c *models.Customer) (*models.Customer, error) {
	if c == nil {
		return nil, fmt.Errorf("customer is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byEmail[c.Email]; ok && owner != c.ID {
		return nil, fmt.Errorf("email %q: %w", c.Email, sentinel.ErrAlreadyUsed)
	}

	saved := c.Clone()
	if saved.ID.IsZero() {
		saved.ID = s.nextID
		s.nextID++
	} else {
		previous, ok := s.customers[saved.ID]
		if !ok {
			return nil, fmt.Errorf("customer %s: %w", saved.ID, sentinel.ErrNotFound)
		}
		if previous.Email != saved.Email {
			delete(s.byEmail, previous.Email)
		}
	}

	s.customers[saved.ID] = saved
	s.byEmail[saved.Email] = saved.ID
	return saved.Clone(), nil
}

func (s *InMemory) DeleteByID(_ context.Context, customerID id.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[customerID]
	if !ok {
		return fmt.Errorf("customer %s: %w", customerID, sentinel.ErrNotFound)
	}
	delete(s.byEmail, c.Email)
	delete(s.customers, customerID)
	return nil
}
