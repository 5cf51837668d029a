package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"customers/internal/customer/models"
	"customers/internal/platform/middleware"
	id "customers/pkg/domain"
	dErrors "customers/pkg/domain-errors"
	"customers/pkg/platform/httputil"
)

// BasePath is where the customer routes are mounted.
const BasePath = "/api/v1/customers"

// Service defines the interface for customer directory operations.
type Service interface {
	ListAll(ctx context.Context) ([]*models.Customer, error)
	GetByID(ctx context.Context, customerID id.CustomerID) (*models.Customer, error)
	Register(ctx context.Context, req *models.RegistrationRequest) error
	Update(ctx context.Context, customerID id.CustomerID, req *models.UpdateRequest) error
	Delete(ctx context.Context, customerID id.CustomerID) error
}

// Handler handles the customer endpoints.
type Handler struct {
	customers Service
	logger    *slog.Logger
}

// New creates a new customer Handler.
func New(customers Service, logger *slog.Logger) *Handler {
	return &Handler{
		customers: customers,
		logger:    logger,
	}
}

// Register registers the customer routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route(BasePath, func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Post("/", h.HandleRegister)
		r.Get("/{id}", h.HandleGet)
		r.Put("/{id}", h.HandleUpdate)
		r.Delete("/{id}", h.HandleDelete)
	})
}

// HandleList returns every customer.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	customers, err := h.customers.ListAll(ctx)
	if err != nil {
		h.fail(ctx, w, "failed to list customers", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, customers)
}

// HandleGet returns one customer by id.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	customerID, ok := h.customerID(w, r, requestID)
	if !ok {
		return
	}

	customer, err := h.customers.GetByID(ctx, customerID)
	if err != nil {
		h.fail(ctx, w, "failed to get customer", requestID, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, customer)
}

// HandleRegister creates a customer from the JSON body.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[models.RegistrationRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.customers.Register(ctx, req); err != nil {
		h.fail(ctx, w, "failed to register customer", requestID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleUpdate applies a partial update to a customer.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	customerID, ok := h.customerID(w, r, requestID)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	if err := h.customers.Update(ctx, customerID, req); err != nil {
		h.fail(ctx, w, "failed to update customer", requestID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// HandleDelete removes a customer.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	customerID, ok := h.customerID(w, r, requestID)
	if !ok {
		return
	}

	if err := h.customers.Delete(ctx, customerID); err != nil {
		h.fail(ctx, w, "failed to delete customer", requestID, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) customerID(w http.ResponseWriter, r *http.Request, requestID string) (id.CustomerID, bool) {
	customerID, err := id.ParseCustomerID(chi.URLParam(r, "id"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "invalid customer id",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return 0, false
	}
	return customerID, true
}

// fail logs client errors at warn and everything else at error, then writes
// the error response.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg, requestID string, err error) {
	code := dErrors.CodeOf(err)
	if httputil.StatusForCode(code) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"request_id", requestID,
			"error", err,
		)
	} else {
		h.logger.WarnContext(ctx, msg,
			"request_id", requestID,
			"error_code", string(code),
		)
	}
	httputil.WriteError(w, err)
}
