package customer

import (
	"log/slog"

	"customers/internal/customer/handler"
	"customers/internal/customer/service"
)

// Service exposes the customer directory.
type Service = service.Service

// Handler wires HTTP endpoints to the customer directory.
type Handler = handler.Handler

// NewService constructs the directory over a record store.
func NewService(customers service.CustomerStore, opts ...service.Option) (*Service, error) {
	return service.New(customers, opts...)
}

// NewHandler constructs the HTTP handler for the /api/v1/customers routes.
func NewHandler(s *Service, logger *slog.Logger) *Handler {
	return handler.New(s, logger)
}
