package system

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/podilnyk/monojar/internal/models/errs"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// List donation jars (GET /api/v1/system/jars)
	Jars(w http.ResponseWriter, r *http.Request, token string)
}

type ServerInterfaceWrapper struct {
	Handler          ServerInterface
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// Jars operation middleware.
func (siw *ServerInterfaceWrapper) Jars(w http.ResponseWriter, r *http.Request) {
	// ------------- Required header parameter "X-Token" --------------

	token := r.Header.Get("X-Token")
	if token == "" {
		siw.ErrorHandlerFunc(w, r, fmt.Errorf(
			"%w: X-Token header", errs.ErrRequiredBodyParam))
		return
	}

	siw.Handler.Jars(w, r, token)
}

type ChiServerOptions struct {
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
	BaseRouter       chi.Router
	BaseURL          string
	Middlewares      []MiddlewareFunc
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
		r.Get(options.BaseURL+"/system/jars", wrapper.Jars)
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
	case errors.Is(err, errs.ErrRequiredBodyParam):
		code = http.StatusBadRequest

	// Status Not Found (404).
	case errors.Is(err, errs.ErrNotFound):
		code = http.StatusNotFound

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
