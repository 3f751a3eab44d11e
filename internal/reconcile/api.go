package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/podilnyk/monojar/internal/models/errs"
)

// Maximum length of the order comment used as a matching fingerprint.
const maxCommentLen = 200

// CreateOrderParams defines parameters for CreateOrder.
type CreateOrderParams struct {
	JarID   string `json:"jar_id"`
	Comment string `json:"comment"`
	Amount  int64  `json:"amount"`
}

// OrderIDParam defines parameters for operations addressing one order.
type OrderIDParam struct {
	OrderID int
}

// IngestParams defines parameters for Ingest.
type IngestParams struct {
	JarID string
	Token string
}

// SearchPaymentParams defines parameters for SearchPayment.
type SearchPaymentParams struct {
	JarID   string
	Comment string
	Amount  int64
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Register an expected donation (POST /api/v1/orders).
	CreateOrder(w http.ResponseWriter, r *http.Request, params CreateOrderParams)
	// Get order by id (GET /api/v1/orders/{id}).
	GetOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam)
	// Reconcile order against the payment register (PATCH /api/v1/orders/{id}/confirm).
	ConfirmOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam)
	// Delete order (DELETE /api/v1/orders/{id}).
	DeleteOrder(w http.ResponseWriter, r *http.Request, params OrderIDParam)
	// Pull the jar ledger into the register (POST /api/v1/payments/ingest).
	Ingest(w http.ResponseWriter, r *http.Request, params IngestParams)
	// Fingerprint lookup (GET /api/v1/payments/search).
	SearchPayment(w http.ResponseWriter, r *http.Request, params SearchPaymentParams)
}

// ServerInterfaceWrapper converts payloads to parameters.
type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// CreateOrder operation middleware.
func (siw *ServerInterfaceWrapper) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var params CreateOrderParams

	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	if err = json.Unmarshal(data, &params); err != nil {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: %s", errs.ErrInvalidPayload, err))
		return
	}

	// ------------- Required JSON body parameter "jar_id" ------------

	if params.JarID == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: jar_id", errs.ErrRequiredBodyParam))
		return
	}

	// ------------- Amount in minor units, strictly positive ---------

	if params.Amount <= 0 {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: amount must be positive", errs.ErrInvalidRequest))
		return
	}

	// ------------- Comment is the matching fingerprint --------------

	if params.Comment == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: comment", errs.ErrRequiredBodyParam))
		return
	}
	if len([]rune(params.Comment)) > maxCommentLen {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: comment exceeds %d characters",
			errs.ErrInvalidRequest, maxCommentLen))
		return
	}

	siw.Handler.CreateOrder(w, r, params)
}

// GetOrder operation middleware.
func (siw *ServerInterfaceWrapper) GetOrder(w http.ResponseWriter, r *http.Request) {
	params, err := orderIDFromURL(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.GetOrder(w, r, params)
}

// ConfirmOrder operation middleware.
func (siw *ServerInterfaceWrapper) ConfirmOrder(w http.ResponseWriter, r *http.Request) {
	params, err := orderIDFromURL(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.ConfirmOrder(w, r, params)
}

// DeleteOrder operation middleware.
func (siw *ServerInterfaceWrapper) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	params, err := orderIDFromURL(r)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, err)
		return
	}

	siw.Handler.DeleteOrder(w, r, params)
}

// Ingest operation middleware.
func (siw *ServerInterfaceWrapper) Ingest(w http.ResponseWriter, r *http.Request) {
	var params IngestParams

	// ------------- Required query parameter "jar_id" ----------------

	params.JarID = r.URL.Query().Get("jar_id")
	if params.JarID == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: jar_id", errs.ErrRequiredBodyParam))
		return
	}

	// ------------- Required header "X-Token" ------------------------

	params.Token = r.Header.Get("X-Token")
	if params.Token == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: X-Token header", errs.ErrRequiredBodyParam))
		return
	}

	siw.Handler.Ingest(w, r, params)
}

// SearchPayment operation middleware.
func (siw *ServerInterfaceWrapper) SearchPayment(w http.ResponseWriter, r *http.Request) {
	var params SearchPaymentParams

	query := r.URL.Query()

	params.JarID = query.Get("jar_id")
	if params.JarID == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: jar_id", errs.ErrRequiredBodyParam))
		return
	}

	params.Comment = query.Get("comment")
	if params.Comment == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: comment", errs.ErrRequiredBodyParam))
		return
	}

	amount, err := strconv.ParseInt(query.Get("amount"), 10, 64)
	if err != nil || amount <= 0 {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf("%w: amount must be a positive integer",
			errs.ErrInvalidRequest))
		return
	}
	params.Amount = amount

	siw.Handler.SearchPayment(w, r, params)
}

func orderIDFromURL(r *http.Request) (OrderIDParam, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return OrderIDParam{}, fmt.Errorf("%w: order id must be an integer", errs.ErrInvalidRequest)
	}
	return OrderIDParam{OrderID: id}, nil
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
	// Middlewares applied to order mutation routes only
	// (create/delete require capabilities).
	OrderWriteMiddlewares []MiddlewareFunc
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:          si,
		ErrorHandlerFunc: options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		for _, middleware := range options.Middlewares {
			r.Use(middleware)
		}

		r.Get(options.BaseURL+"/orders/{id}", wrapper.GetOrder)
		r.Patch(options.BaseURL+"/orders/{id}/confirm", wrapper.ConfirmOrder)
		r.Post(options.BaseURL+"/payments/ingest", wrapper.Ingest)
		r.Get(options.BaseURL+"/payments/search", wrapper.SearchPayment)

		r.Group(func(r chi.Router) {
			for _, middleware := range options.OrderWriteMiddlewares {
				r.Use(middleware)
			}
			r.Post(options.BaseURL+"/orders", wrapper.CreateOrder)
			r.Delete(options.BaseURL+"/orders/{id}", wrapper.DeleteOrder)
		})
	})

	return r
}

// ErrorHandlerFunc handles sending of an error in the JSON format,
// writing appropriate status code and handling the failure to marshal that.
func ErrorHandlerFunc(w http.ResponseWriter, _ *http.Request, err error) {
	errJSON := errs.JSON{Error: err.Error()}
	code := http.StatusInternalServerError

	var upstreamErr *errs.UpstreamError

	switch {
	// Status Bad Request (400).
	case errors.Is(err, errs.ErrInvalidRequest) ||
		errors.Is(err, errs.ErrRequiredBodyParam) ||
		errors.Is(err, errs.ErrInvalidPayload) ||
		errors.Is(err, errs.ErrInvalidRange) ||
		errors.Is(err, errs.ErrPaymentPredatesOrder) ||
		errors.Is(err, io.EOF):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound) ||
		errors.Is(err, errs.ErrNoMatchingPayment):
		code = http.StatusNotFound

	// Status Conflict (409).
	case errors.Is(err, errs.ErrAlreadyFinalized) ||
		errors.Is(err, errs.ErrAlreadyLinked) ||
		errors.Is(err, errs.ErrDataConflict):
		code = http.StatusConflict

	// Status Too Many Requests (429).
	case errors.Is(err, errs.ErrRateLimit):
		code = http.StatusTooManyRequests

	// Status Bad Gateway (502).
	case errors.As(err, &upstreamErr) ||
		errors.Is(err, errs.ErrUpstreamUnavailable):
		code = http.StatusBadGateway
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err = json.NewEncoder(w).Encode(errJSON); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
