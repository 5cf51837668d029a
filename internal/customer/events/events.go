// Package events defines the customer lifecycle events emitted after a
// successful write, and the publishers that deliver them.
package events

import (
	"time"

	id "customers/pkg/domain"
)

// Type names a lifecycle transition.
type Type string

const (
	TypeRegistered Type = "customer.registered"
	TypeUpdated    Type = "customer.updated"
	TypeDeleted    Type = "customer.deleted"
)

// Event describes one committed change to a customer record.
type Event struct {
	Type          Type          `json:"type"`
	CustomerID    id.CustomerID `json:"customer_id"`
	ChangedFields []string      `json:"changed_fields,omitempty"`
	RequestID     string        `json:"request_id,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}
