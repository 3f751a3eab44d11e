package system

import (
	"encoding/json"
	"net/http"
)

// Handlers adapts the service to the HTTP surface.
type Handlers struct {
	service *Service
}

func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

var _ ServerInterface = (*Handlers)(nil)

// List donation jars (GET /api/v1/system/jars).
func (h *Handlers) Jars(w http.ResponseWriter, r *http.Request, token string) {
	jars, err := h.service.Jars(r.Context(), token)
	if err != nil {
		ErrorHandlerFunc(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if err = json.NewEncoder(w).Encode(jars); err != nil {
		ErrorHandlerFunc(w, r, err)
	}
}
