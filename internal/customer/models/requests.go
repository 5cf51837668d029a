package models

import (
	"strings"

	dErrors "customers/pkg/domain-errors"
)

// RegistrationRequest is the input for creating a customer. All fields are
// required; pointers let Validate tell "missing" apart from zero values.
type RegistrationRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Age   *int    `json:"age"`
}

// Normalize trims surrounding whitespace. Email case is preserved.
func (r *RegistrationRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = trimPtr(r.Name)
	r.Email = trimPtr(r.Email)
}

// Validate checks that every required field is present. Field-level
// invariants are checked by NewCustomer.
func (r *RegistrationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if r.Name == nil || *r.Name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if r.Email == nil || *r.Email == "" {
		return dErrors.New(dErrors.CodeValidation, "email is required")
	}
	if r.Age == nil {
		return dErrors.New(dErrors.CodeValidation, "age is required")
	}
	return nil
}

// UpdateRequest is the input for a partial update. Absent or null fields
// leave the stored value unchanged.
type UpdateRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Age   *int    `json:"age"`
}

// Normalize trims surrounding whitespace. Email case is preserved.
func (r *UpdateRequest) Normalize() {
	if r == nil {
		return
	}
	r.Name = trimPtr(r.Name)
	r.Email = trimPtr(r.Email)
}

// Validate checks every present field. An update with no fields is valid and
// results in a no-op.
func (r *UpdateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := r.ToUpdate().Validate(); err != nil {
		return dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
	}
	return nil
}

// ToUpdate converts the request into the domain update value.
func (r *UpdateRequest) ToUpdate() CustomerUpdate {
	if r == nil {
		return CustomerUpdate{}
	}
	return CustomerUpdate{Name: r.Name, Email: r.Email, Age: r.Age}
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
