package reconcile

import (
	"encoding/json"
	"net/http"
)

// Handlers adapts the reconciliation service to the HTTP surface.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

var _ ServerInterface = (*Handlers)(nil)

// Register an expected donation (POST /api/v1/orders).
func (h *Handlers) CreateOrder(w http.ResponseWriter, r *http.Request, params CreateOrderParams) {
	o, err := h.service.CreateOrder(r.Context(), params.JarID, params.Amount, params.Comment)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)

	if err = json.NewEncoder(w).Encode(o); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Get order by id (GET /api/v1/orders/{id}).
func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam) {
	o, err := h.service.GetOrder(r.Context(), params.OrderID)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(o); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Reconcile order against the payment register (PATCH /api/v1/orders/{id}/confirm).
func (h *Handlers) ConfirmOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam) {
	o, err := h.service.Confirm(r.Context(), params.OrderID)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(o); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Delete order (DELETE /api/v1/orders/{id}).
func (h *Handlers) DeleteOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam) {
	if err := h.service.DeleteOrder(r.Context(), params.OrderID); err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Pull the jar ledger into the register (POST /api/v1/payments/ingest).
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request, params IngestParams) {
	result, err := h.service.Ingest(r.Context(), params.JarID, params.Token)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if result.Count > 0 {
		w.WriteHeader(http.StatusCreated)
	}

	if err = json.NewEncoder(w).Encode(result); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}

// Fingerprint lookup (GET /api/v1/payments/search).
func (h *Handlers) SearchPayment(w http.ResponseWriter, r *http.Request, params SearchPaymentParams) {
	signed, err := h.service.SearchPayment(r.Context(), params.JarID, params.Amount, params.Comment)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(signed); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}
