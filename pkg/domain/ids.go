package domain

import (
	"strconv"
	"strings"

	dErrors "customers/pkg/domain-errors"
)

// CustomerID identifies a customer record. Stores assign it on first save;
// the zero value means "not yet persisted".
type CustomerID int64

func (id CustomerID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsZero reports whether the id has not been assigned by a store.
func (id CustomerID) IsZero() bool {
	return id == 0
}

// ParseCustomerID parses a path or query value into a CustomerID.
// Only positive base-10 integers are accepted.
func ParseCustomerID(s string) (CustomerID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeBadRequest, "customer id is required")
	}
	if len(s) > 19 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "customer id is too long")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, "customer id must be an integer")
	}
	if n <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "customer id must be positive")
	}
	return CustomerID(n), nil
}
