package models

import (
	"strings"

	id "customers/pkg/domain"
	dErrors "customers/pkg/domain-errors"
)

const (
	MaxNameLength  = 128
	MaxEmailLength = 254

	// MinAge and MaxAge bound Age as [MinAge, MaxAge).
	MinAge = 1
	MaxAge = 100
)

// Customer is the aggregate root for a directory entry.
//
// Invariants:
//   - ID is assigned by the store on first save and never changes
//   - Name is non-empty and at most 128 characters
//   - Email is non-empty and unique across all customers (exact match)
//   - Age lies in [1, 100)
type Customer struct {
	ID    id.CustomerID `json:"id"`
	Name  string        `json:"name"`
	Email string        `json:"email"`
	Age   int           `json:"age"`
}

// NewCustomer builds an unsaved customer (zero ID) after checking invariants.
func NewCustomer(name, email string, age int) (*Customer, error) {
	c := &Customer{
		Name:  strings.TrimSpace(name),
		Email: strings.TrimSpace(email),
		Age:   age,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the field invariants. Email uniqueness is a cross-record
// rule and is enforced by the service and stores, not here.
func (c *Customer) Validate() error {
	if err := validateName(c.Name); err != nil {
		return err
	}
	if err := validateEmail(c.Email); err != nil {
		return err
	}
	return validateAge(c.Age)
}

// Clone returns a copy that can be mutated without touching c.
func (c *Customer) Clone() *Customer {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// Merge applies the present fields of an update over c and returns the merged
// copy together with the names of the fields whose values actually changed.
// c itself is left untouched.
func (c *Customer) Merge(update CustomerUpdate) (*Customer, []string) {
	merged := c.Clone()
	var changed []string

	if update.Name != nil && *update.Name != c.Name {
		merged.Name = *update.Name
		changed = append(changed, "name")
	}
	if update.Email != nil && *update.Email != c.Email {
		merged.Email = *update.Email
		changed = append(changed, "email")
	}
	if update.Age != nil && *update.Age != c.Age {
		merged.Age = *update.Age
		changed = append(changed, "age")
	}
	return merged, changed
}

// CustomerUpdate carries the optional fields of a partial update. A nil field
// means "leave unchanged".
type CustomerUpdate struct {
	Name  *string
	Email *string
	Age   *int
}

// Validate checks every present field against the customer invariants.
func (u CustomerUpdate) Validate() error {
	if u.Name != nil {
		if err := validateName(*u.Name); err != nil {
			return err
		}
	}
	if u.Email != nil {
		if err := validateEmail(*u.Email); err != nil {
			return err
		}
	}
	if u.Age != nil {
		if err := validateAge(*u.Age); err != nil {
			return err
		}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "name must be 128 characters or less")
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "email must be 254 characters or less")
	}
	return nil
}

func validateAge(age int) error {
	if age < MinAge || age >= MaxAge {
		return dErrors.New(dErrors.CodeInvariantViolation, "age must be between 1 and 99")
	}
	return nil
}
